package database

import (
	"fmt"
	"strings"

	"edulearn-connect/internal/config"
)

// Dialect captures the few SQL differences between the supported drivers.
type Dialect string

const (
	Postgres Dialect = config.DriverPostgres
	Oracle   Dialect = config.DriverOracle
	SQLite   Dialect = config.DriverSQLite
)

// DialectFor maps a DB_DRIVER value to its Dialect. Unknown drivers get Postgres.
func DialectFor(driver string) Dialect {
	switch Dialect(driver) {
	case Oracle:
		return Oracle
	case SQLite:
		return SQLite
	default:
		return Postgres
	}
}

// Placeholder returns the n-th (1-based) bind parameter marker.
func (d Dialect) Placeholder(n int) string {
	switch d {
	case Oracle:
		return fmt.Sprintf(":%d", n)
	case SQLite:
		return "?"
	default:
		return fmt.Sprintf("$%d", n)
	}
}

// Placeholders returns a comma separated list of markers for params first..first+count-1.
func (d Dialect) Placeholders(first, count int) string {
	marks := make([]string, count)
	for i := range marks {
		marks[i] = d.Placeholder(first + i)
	}
	return strings.Join(marks, ", ")
}
