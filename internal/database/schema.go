package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Table DDL per dialect. Oracle has no IF NOT EXISTS so it is checked separately.
var schemaDDL = map[Dialect][]string{
	Postgres: {
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			profile_pic TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS app_log (
			id BIGSERIAL PRIMARY KEY,
			log_timestamp TIMESTAMPTZ NOT NULL,
			log_level TEXT NOT NULL,
			log_message TEXT NOT NULL,
			log_details TEXT
		)`,
	},
	SQLite: {
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			profile_pic TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS app_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			log_timestamp DATETIME NOT NULL,
			log_level TEXT NOT NULL,
			log_message TEXT NOT NULL,
			log_details TEXT
		)`,
	},
	Oracle: {
		`CREATE TABLE users (
			id NUMBER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			name VARCHAR2(4000) NOT NULL,
			email VARCHAR2(4000) NOT NULL,
			profile_pic VARCHAR2(4000) NOT NULL
		)`,
		`CREATE TABLE app_log (
			id NUMBER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			log_timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
			log_level VARCHAR2(20) NOT NULL,
			log_message VARCHAR2(4000) NOT NULL,
			log_details CLOB
		)`,
	},
}

// EnsureSchema creates the users and app_log tables when they are missing.
// It never alters existing tables.
func EnsureSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, ddl := range schemaDDL[d] {
		if d == Oracle {
			name := oracleTableName(ddl)
			var n int
			err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_tables WHERE table_name = :1`, name).Scan(&n)
			if err != nil {
				return fmt.Errorf("check table %s: %w", name, err)
			}
			if n > 0 {
				continue
			}
		}
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// oracleTableName extracts the upper-cased table name from a CREATE TABLE statement.
func oracleTableName(ddl string) string {
	fields := strings.Fields(ddl)
	if len(fields) < 3 {
		return ""
	}
	return strings.ToUpper(fields[2])
}
