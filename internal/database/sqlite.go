package database

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"edulearn-connect/internal/config"

	"go.uber.org/zap"
)

const createLogTableSQL = `
CREATE TABLE IF NOT EXISTS tbl_log (
id INTEGER PRIMARY KEY AUTOINCREMENT,
timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
level TEXT NOT NULL,
message TEXT NOT NULL,
fields TEXT -- Store additional zap fields as JSON string
);
`

// InitSQLite opens the local SQLite log buffer and ensures the log table exists.
// The directory holding the database file is created when missing.
func InitSQLite(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	logger.Info("Initializing SQLite log buffer...", zap.String("requested_path", cfg.SQLiteDBPath))

	dbDir := filepath.Dir(cfg.SQLiteDBPath)
	if dbDir != "." && dbDir != "/" {
		if err := config.EnsureDir(dbDir, logger); err != nil {
			return nil, fmt.Errorf("failed to prepare sqlite db directory: %w", err)
		}
	}

	db, err := OpenSQLiteBuffer(cfg.SQLiteDBPath + "?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		logger.Error("Failed to open SQLite log buffer", zap.String("path", cfg.SQLiteDBPath), zap.Error(err))
		return nil, err
	}

	logger.Info("SQLite log buffer initialized successfully", zap.String("path", cfg.SQLiteDBPath))
	return db, nil
}

// OpenSQLiteBuffer opens dsn with the sqlite3 driver, verifies it and creates tbl_log.
func OpenSQLiteBuffer(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// One connection is enough for log writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := db.Exec(createLogTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite table tbl_log: %w", err)
	}
	return db, nil
}
