package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"edulearn-connect/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDialectPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", Postgres.Placeholders(1, 3))
	assert.Equal(t, ":2, :3", Oracle.Placeholders(2, 2))
	assert.Equal(t, "?, ?, ?, ?", SQLite.Placeholders(1, 4))

	assert.Equal(t, Oracle, DialectFor(config.DriverOracle))
	assert.Equal(t, SQLite, DialectFor(config.DriverSQLite))
	assert.Equal(t, Postgres, DialectFor("something-else"))
}

func TestEnsureSchema_SQLiteIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:schema_test?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db, SQLite))
	require.NoError(t, EnsureSchema(ctx, db, SQLite))

	_, err = db.Exec(`INSERT INTO users (name, email, profile_pic) VALUES (?, ?, ?)`, "Ana", "ana@example.com", "uploads/1-a.png")
	require.NoError(t, err)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM app_log`).Scan(&n))
	assert.Zero(t, n)
}

func TestOracleTableName(t *testing.T) {
	assert.Equal(t, "USERS", oracleTableName(schemaDDL[Oracle][0]))
	assert.Equal(t, "APP_LOG", oracleTableName(schemaDDL[Oracle][1]))
}

func TestInitSQLite_CreatesDirectory(t *testing.T) {
	cfg := &config.Config{SQLiteDBPath: filepath.Join(t.TempDir(), "logs", "buffer.db")}
	db, err := InitSQLite(cfg, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO tbl_log (level, message, fields) VALUES ('info', 'hello', '{}')`)
	assert.NoError(t, err)
}

func TestInitPrimary_SQLite(t *testing.T) {
	cfg := &config.Config{
		DBDriver:                 config.DriverSQLite,
		DatabaseURL:              filepath.Join(t.TempDir(), "users.db"),
		DBMaxOpenConns:           4,
		DBMaxIdleConns:           1,
		DBConnMaxLifetimeMinutes: 1,
		DBConnMaxIdleTimeMinutes: 1,
	}
	db, err := InitPrimary(cfg, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
	assert.NoError(t, db.Ping())
}
