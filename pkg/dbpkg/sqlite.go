package dbpkg

import (
	"database/sql"
	_ "embed"
	"strings"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// sqliteParams make every transaction take the write lock up front (BEGIN IMMEDIATE),
// so a read-check-write sequence cannot interleave with another writer.
const sqliteParams = "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"

// SetupSQLite opens the SQLite database at source and creates missing tables.
func SetupSQLite(source string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(source, "?") {
		sep = "&"
	}

	db, err := sql.Open(DriverSQLite, source+sep+sqliteParams)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	if _, err = db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
