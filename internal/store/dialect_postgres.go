package store

import (
	"database/sql"
	"strings"
)

// PostgresDialect targets github.com/lib/pq.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string { return "postgres" }

func (d *PostgresDialect) Rebind(query string) string { return numberPlaceholders(query) }

// InsertID appends RETURNING id; lib/pq does not implement LastInsertId.
func (d *PostgresDialect) InsertID(db *sql.DB, insert string, args ...any) (int64, error) {
	var id int64
	err := db.QueryRow(insert+" RETURNING id", args...).Scan(&id)
	return id, err
}

// InitStatements enables citext for case-insensitive rule set names.
func (d *PostgresDialect) InitStatements() []string {
	return []string{"CREATE EXTENSION IF NOT EXISTS citext"}
}

// IsDuplicateKeyError matches unique_violation (SQLSTATE 23505).
func (d *PostgresDialect) IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}

func (d *PostgresDialect) SerialPrimaryKey() string { return "SERIAL PRIMARY KEY" }

func (d *PostgresDialect) CaseInsensitiveText() string { return "CITEXT" }
