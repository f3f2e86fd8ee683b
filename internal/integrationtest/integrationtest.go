// Package integrationtest provides db helpers used in integration tests.
package integrationtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/go-petr/minutes-ledger/pkg/configpkg"
	"github.com/go-petr/minutes-ledger/pkg/dbpkg"
)

// SetupSQLite creates a fresh SQLite database in a temporary directory.
//
// The database is closed and removed once the test is complete.
func SetupSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := dbpkg.SetupSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("db initialization failed. err: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("db.Close() failed: %v", err)
		}
	})

	return db
}

// LoadConfig loads the application configuration relative to a package directory.
func LoadConfig(t *testing.T) configpkg.Config {
	t.Helper()

	config, err := configpkg.Load("../../configs")
	if err != nil {
		t.Fatalf(`configpkg.Load("../../configs") returned error: %v`, err)
	}

	return config
}

// SetupPostgres connects to the configured PostgreSQL database and flushes it after the test.
// The test is skipped when DB_DRIVER is not a PostgreSQL driver.
func SetupPostgres(t *testing.T) *sql.DB {
	t.Helper()

	config := LoadConfig(t)

	if !dbpkg.IsPostgres(config.DBDriver) {
		t.Skipf("DB_DRIVER=%q, PostgreSQL tests skipped", config.DBDriver)
	}

	return SetupDB(t, config.DBDriver, config.DBSource)
}

// Flush flushes all db tables without droping.
func Flush(t *testing.T, db *sql.DB) {
	t.Helper()

	var tables string

	const query = `
	SELECT string_agg(table_name, ', ')
	FROM information_schema.tables 
	WHERE table_schema='public' AND table_name <> 'schema_migrations';`

	row := db.QueryRow(query)

	err := row.Scan(&tables)
	if err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}

	if _, err := db.Exec(`TRUNCATE TABLE ` + tables + " CASCADE"); err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}
}

// SetupDB sets up connection with database for testing and then cleans it.
func SetupDB(t *testing.T, driver, source string) *sql.DB {
	t.Helper()

	db, err := dbpkg.Setup(driver, source)
	if err != nil {
		t.Fatalf("db initialization failed. err: %v", err)
	}

	t.Cleanup(func() {
		Flush(t, db)

		if err := db.Close(); err != nil {
			t.Fatalf("db cleanup failed. err: %v", err)
		}
	})

	return db
}
