// Package dbpkg provides helpers to make db initialization and testing easier.
package dbpkg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverSQLite   = "sqlite3"
)

// SQLInterface provides neccessary db methods to perform queries.
//
// Both *sql.DB and *sql.Tx satisfy it.
type SQLInterface interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Setup sets up connection with database.
//
// SQLite databases are opened through SetupSQLite so the schema is always present.
func Setup(driver, source string) (*sql.DB, error) {
	if driver == DriverSQLite {
		return SetupSQLite(source)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

// IsPostgres reports whether the driver talks to PostgreSQL.
func IsPostgres(driver string) bool {
	return driver == DriverPostgres || driver == DriverPGX
}

// ConstraintViolation returns the name of the violated constraint if err was caused by one.
//
// PostgreSQL errors carry the constraint name as is. SQLite reports named CHECK constraints
// by name, UNIQUE constraints as "table.column" and foreign keys as "FOREIGN KEY".
func ConstraintViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint, pqErr.Constraint != ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName, pgErr.ConstraintName != ""
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return "FOREIGN KEY", true
		}

		msg := sqliteErr.Error()
		if i := strings.LastIndex(msg, ": "); i >= 0 {
			return msg[i+2:], true
		}

		return msg, true
	}

	return "", false
}
