package app

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"edulearn-connect/internal/bootstrap"
	"edulearn-connect/internal/config"
	"edulearn-connect/internal/logging"
	"edulearn-connect/internal/middleware"
	"edulearn-connect/internal/routes"
	"edulearn-connect/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testServer(t *testing.T, primary *sql.DB) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		AppEnv:           "test",
		AppName:          "EduLearn Connect",
		DBDriver:         config.DriverSQLite,
		UploadDir:        t.TempDir(),
		LogLevel:         "info",
		CORSAllowOrigins: "*",
		CORSAllowMethods: "GET,POST,HEAD",
		CORSAllowHeaders: "Origin,Content-Type,Accept",
	}
	loggers := &logging.AppLoggers{File: zap.NewNop(), SQLite: zap.NewNop()}
	components, err := bootstrap.InitializeAppComponents(cfg, zap.NewNop(), primary, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, components.LogProcessor)

	return NewServer(cfg, loggers, components, routes.Dependencies{PrimaryDB: primary})
}

func TestHealth(t *testing.T) {
	app := testServer(t, testutil.OpenInMemoryDB(t, "app_health"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "healthy", out.Status)
	assert.Equal(t, "connected", out.Dependencies["primary"])
	assert.Equal(t, "disabled", out.Dependencies["sqlite"])
	assert.Equal(t, "disabled", out.Dependencies["redis"])
}

func TestHealth_PrimaryDown(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:app_health_down?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	app := testServer(t, db)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	app := testServer(t, testutil.OpenInMemoryDB(t, "app_request_id"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	const incoming = "7f0c1a6e-6a9e-4f8e-9d7c-0b3c1e2a4d55"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, incoming)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, incoming, resp.Header.Get(middleware.RequestIDHeader))
}

func TestUnknownRoute(t *testing.T) {
	app := testServer(t, testutil.OpenInMemoryDB(t, "app_not_found"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
