package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"edulearn-connect/internal/config"

	_ "github.com/godror/godror"       // Oracle driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
	"go.uber.org/zap"
)

// InitPrimary initializes the connection pool for the users database.
// It returns the pool handle immediately and relies on database/sql
// for lazy connection establishment and reconnection.
func InitPrimary(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	logger.Info("Initializing primary database connection pool...", zap.String("driver", cfg.DBDriver))

	db, err := sql.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to open primary connection pool", zap.Error(err))
		return nil, fmt.Errorf("failed to configure %s connection pool: %w", cfg.DBDriver, err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeMinutes) * time.Minute)
	db.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeMinutes) * time.Minute)
	if cfg.DBDriver == config.DriverSQLite {
		// A single writer avoids SQLITE_BUSY on the users table
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(ctx)
	cancel()
	if err != nil {
		// Pool stays usable; connections are established on demand.
		logger.Warn("Initial primary DB ping failed, pool created but connection may establish later", zap.Error(err))
		return db, nil
	}

	logger.Info("Primary database pool initialized and initial ping successful.")
	return db, nil
}
