package store

import "database/sql"

// Dialect is everything the store does differently on SQLite and Postgres.
// Queries are written once with ? placeholders and passed through Rebind.
type Dialect interface {
	DriverName() string

	// Rebind rewrites ? placeholders into the driver's own form.
	Rebind(query string) string

	// InsertID runs an INSERT into a table with an id column and returns
	// the new row's id.
	InsertID(db *sql.DB, insert string, args ...any) (int64, error)

	// InitStatements run once after the pool is opened.
	InitStatements() []string

	IsDuplicateKeyError(err error) bool

	// Column types used by the schema
	SerialPrimaryKey() string
	CaseInsensitiveText() string
}

// DialectType names a supported backend.
type DialectType string

const (
	DialectSQLite   DialectType = "sqlite"
	DialectPostgres DialectType = "postgres"
)

// NewDialect returns the dialect for t. Anything unknown is SQLite.
func NewDialect(t DialectType) Dialect {
	if t == DialectPostgres {
		return &PostgresDialect{}
	}
	return &SQLiteDialect{}
}
