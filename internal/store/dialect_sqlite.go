package store

import (
	"database/sql"
	"strings"
)

// SQLiteDialect targets modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string { return "sqlite" }

// Rebind is the identity: SQLite takes ? as written.
func (d *SQLiteDialect) Rebind(query string) string { return query }

func (d *SQLiteDialect) InsertID(db *sql.DB, insert string, args ...any) (int64, error) {
	result, err := db.Exec(insert, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *SQLiteDialect) InitStatements() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
}

func (d *SQLiteDialect) IsDuplicateKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (d *SQLiteDialect) SerialPrimaryKey() string {
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d *SQLiteDialect) CaseInsensitiveText() string { return "TEXT COLLATE NOCASE" }
