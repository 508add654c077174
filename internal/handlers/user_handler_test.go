package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"edulearn-connect/internal/database"
	"edulearn-connect/internal/models"
	"edulearn-connect/internal/repositories"
	"edulearn-connect/internal/services"
	"edulearn-connect/internal/storage"
	"edulearn-connect/internal/testutil"
	"edulearn-connect/internal/views"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T, svc services.UserService, uploadDir string) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		Views:        views.NewEngine(),
		ErrorHandler: NewErrorHandler(false),
	})
	app.Static(storage.PublicPrefix, uploadDir)
	NewUserHandler(svc, "EduLearn Connect").SetupUserRoutes(app)
	return app
}

func newSQLiteApp(t *testing.T, name string) (*fiber.App, *sql.DB, string) {
	t.Helper()
	db := testutil.OpenInMemoryDB(t, name)
	dir := t.TempDir()
	repo := repositories.NewUserRepository(db, database.SQLite, nil)
	svc := services.NewUserService(repo, storage.NewStore(dir, nil), nil)
	return newTestApp(t, svc, dir), db, dir
}

func postUser(t *testing.T, app *fiber.App, fields map[string]string, fileName string, content []byte) *http.Response {
	t.Helper()
	body, contentType := testutil.MultipartForm(t, fields, "profile_pic", fileName, content)
	req := httptest.NewRequest(http.MethodPost, "/add", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, app *fiber.App, target string) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func storedPictures(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT profile_pic FROM users ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		require.NoError(t, rows.Scan(&p))
		paths = append(paths, p)
	}
	require.NoError(t, rows.Err())
	return paths
}

func TestAddUser_ValidSubmission(t *testing.T) {
	app, db, _ := newSQLiteApp(t, "handler_valid")

	resp := postUser(t, app, map[string]string{"name": "Siti Aminah", "email": "siti@example.com"}, "cropped.jpg", []byte("jpeg-bytes"))

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/?success=true", resp.Header.Get("Location"))
	assert.Equal(t, 1, testutil.CountUsers(t, db))

	paths := storedPictures(t, db)
	require.Len(t, paths, 1)
	info, err := os.Stat(paths[0])
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	assert.True(t, strings.HasSuffix(paths[0], "-cropped.jpg"))
}

func TestAddUser_MissingFieldsFail(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		fileName string
	}{
		{"missing email", map[string]string{"name": "Tanpa Email"}, "a.jpg"},
		{"missing name", map[string]string{"email": "noname@example.com"}, "a.jpg"},
		{"missing file", map[string]string{"name": "Tanpa Foto", "email": "nofoto@example.com"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, db, dir := newSQLiteApp(t, "handler_missing_"+strings.ReplaceAll(tt.name, " ", "_"))

			resp := postUser(t, app, tt.fields, tt.fileName, []byte("x"))
			assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
			assert.Equal(t, SaveFailedMessage, readBody(t, resp))
			assert.Equal(t, 0, testutil.CountUsers(t, db))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)

			_, body := get(t, app, "/")
			assert.NotContains(t, body, "user-card")
		})
	}
}

func TestHome_EmptyState(t *testing.T) {
	app, _, _ := newSQLiteApp(t, "handler_empty")

	resp, body := get(t, app, "/")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, `id="emptyState"`)
	assert.Contains(t, body, "Belum ada data pengguna.")
	assert.NotContains(t, body, "user-card")
	assert.NotContains(t, body, "successBanner")
}

func TestHome_NewestFirst(t *testing.T) {
	app, _, _ := newSQLiteApp(t, "handler_order")

	for _, name := range []string{"Alpha", "Bravo", "Charlie"} {
		resp := postUser(t, app, map[string]string{"name": name, "email": strings.ToLower(name) + "@example.com"}, name+".png", []byte(name))
		require.Equal(t, fiber.StatusFound, resp.StatusCode)
	}

	_, body := get(t, app, "/")
	assert.Equal(t, 3, strings.Count(body, "user-card"))
	c, b, a := strings.Index(body, "Charlie"), strings.Index(body, "Bravo"), strings.Index(body, "Alpha")
	require.True(t, c >= 0 && b >= 0 && a >= 0)
	assert.Less(t, c, b)
	assert.Less(t, b, a)
}

func TestHome_SuccessBanner(t *testing.T) {
	app, _, _ := newSQLiteApp(t, "handler_banner")

	_, body := get(t, app, "/?success=true")
	assert.Contains(t, body, `id="successBanner"`)

	_, body = get(t, app, "/?success=false")
	assert.NotContains(t, body, `id="successBanner"`)
}

func TestHome_EscapesUserInput(t *testing.T) {
	app, _, _ := newSQLiteApp(t, "handler_escape")

	resp := postUser(t, app, map[string]string{"name": "<script>alert(1)</script>", "email": "x@example.com"}, "x.png", []byte("x"))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	_, body := get(t, app, "/")
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "&lt;script&gt;alert(1)&lt;/script&gt;")
}

func TestUploads_RoundTrip(t *testing.T) {
	app, db, _ := newSQLiteApp(t, "handler_static")
	content := []byte("\xff\xd8\xff\xe0 fake jpeg payload")

	resp := postUser(t, app, map[string]string{"name": "Dewi", "email": "dewi@example.com"}, "dewi.jpg", content)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	paths := storedPictures(t, db)
	require.Len(t, paths, 1)
	url := storage.PublicURL(paths[0])

	_, home := get(t, app, "/")
	assert.Contains(t, home, `src="`+url+`"`)

	staticResp, body := get(t, app, url)
	assert.Equal(t, fiber.StatusOK, staticResp.StatusCode)
	assert.Equal(t, content, []byte(body))
}

func TestAddUser_RapidSubmissionsDoNotCollide(t *testing.T) {
	app, db, dir := newSQLiteApp(t, "handler_rapid")

	first := postUser(t, app, map[string]string{"name": "Satu", "email": "satu@example.com"}, "one.jpg", []byte("one"))
	second := postUser(t, app, map[string]string{"name": "Dua", "email": "dua@example.com"}, "two.jpg", []byte("two"))
	require.Equal(t, fiber.StatusFound, first.StatusCode)
	require.Equal(t, fiber.StatusFound, second.StatusCode)

	paths := storedPictures(t, db)
	require.Len(t, paths, 2)
	assert.NotEqual(t, paths[0], paths[1])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, body := get(t, app, "/")
	assert.Contains(t, body, "Satu")
	assert.Contains(t, body, "Dua")
}

func TestListUsersJSON(t *testing.T) {
	app, _, _ := newSQLiteApp(t, "handler_json")

	resp := postUser(t, app, map[string]string{"name": "Rina", "email": "rina@example.com"}, "rina.png", []byte("png"))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	jsonResp, body := get(t, app, "/api/v1/users")
	require.Equal(t, fiber.StatusOK, jsonResp.StatusCode)

	var out struct {
		Users []struct {
			ID       int64  `json:"id"`
			Name     string `json:"name"`
			Email    string `json:"email"`
			ImageURL string `json:"image_url"`
		} `json:"users"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Users, 1)
	assert.Equal(t, "Rina", out.Users[0].Name)
	assert.True(t, strings.HasPrefix(out.Users[0].ImageURL, storage.PublicPrefix+"/"))
	assert.True(t, strings.HasSuffix(out.Users[0].ImageURL, "-rina.png"))
}

// brokenService fails every call, as a service over an unreachable database would.
type brokenService struct{}

func (brokenService) ListUsers(context.Context, *zap.Logger) ([]models.User, error) {
	return nil, errors.New("connection refused")
}

func (brokenService) RegisterUser(context.Context, *zap.Logger, services.RegisterInput, *multipart.FileHeader) (*models.User, error) {
	return nil, services.ErrSaveFailed
}

func TestHome_DatabaseFailure(t *testing.T) {
	app := newTestApp(t, brokenService{}, t.TempDir())

	resp, body := get(t, app, "/")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "An unexpected error occurred")

	apiResp, apiBody := get(t, app, "/api/v1/users")
	assert.Equal(t, fiber.StatusInternalServerError, apiResp.StatusCode)
	assert.Contains(t, apiBody, `"error"`)
}

func TestAddUser_DatabaseFailure(t *testing.T) {
	app := newTestApp(t, brokenService{}, t.TempDir())

	resp := postUser(t, app, map[string]string{"name": "Budi", "email": "budi@example.com"}, "b.jpg", []byte("b"))
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, SaveFailedMessage, readBody(t, resp))
}

func TestErrorHandler_HidesDetailInProduction(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(true)})
	app.Get("/api/v1/boom", func(c *fiber.Ctx) error { return errors.New("secret dsn leaked") })

	resp, body := get(t, app, "/api/v1/boom")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, body, "secret dsn leaked")

	notFound, _ := get(t, app, "/missing")
	assert.Equal(t, fiber.StatusNotFound, notFound.StatusCode)
}
