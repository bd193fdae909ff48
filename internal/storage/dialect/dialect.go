// Package dialect hides the SQL differences between the databases the
// gateway's SQL store can run on.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect represents a SQL database dialect.
type Dialect interface {
	// Name returns the dialect name (sqlite, postgres, mysql).
	Name() string

	// DriverName returns the database/sql driver name to open.
	DriverName() string

	// Rebind converts ? placeholders to the dialect's format.
	Rebind(query string) string

	// BooleanType returns the SQL type for boolean columns.
	BooleanType() string

	// TextType returns the SQL type for JSON documents and other large text.
	TextType() string

	// Upsert returns the clause turning an INSERT into an insert-or-update
	// keyed on conflictColumns.
	Upsert(conflictColumns, updateColumns []string) string

	// InitStatements run once after the connection is opened.
	InitStatements() []string

	// MaxOpenConns caps the connection pool; zero means unlimited.
	MaxOpenConns() int
}

// DialectType names a supported database.
type DialectType string

const (
	SQLite   DialectType = "sqlite"
	Postgres DialectType = "postgres"
	MySQL    DialectType = "mysql"
)

// New returns the dialect for dialectType.
func New(dialectType DialectType) (Dialect, error) {
	switch dialectType {
	case SQLite:
		return sqliteDialect{}, nil
	case Postgres:
		return postgresDialect{}, nil
	case MySQL:
		return mysqlDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialectType)
	}
}

// FromDriverName maps a driver or storage type name to its dialect.
func FromDriverName(driverName string) (Dialect, error) {
	switch strings.ToLower(driverName) {
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driverName)
	}
}

// excludedUpdates renders "col = <prefix>col" pairs shared by the
// ON CONFLICT dialects.
func excludedUpdates(updateColumns []string, format string) string {
	updates := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		updates[i] = fmt.Sprintf(format, col, col)
	}
	return strings.Join(updates, ", ")
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string               { return "sqlite" }
func (sqliteDialect) DriverName() string         { return "sqlite" }
func (sqliteDialect) Rebind(query string) string { return query }
func (sqliteDialect) BooleanType() string        { return "INTEGER" }
func (sqliteDialect) TextType() string           { return "TEXT" }

// MaxOpenConns is 1: pragmas are per connection and shared-cache memory
// databases lock tables across connections.
func (sqliteDialect) MaxOpenConns() int { return 1 }

func (sqliteDialect) Upsert(conflictColumns, updateColumns []string) string {
	target := strings.Join(conflictColumns, ", ")
	if len(updateColumns) == 0 {
		return fmt.Sprintf("ON CONFLICT(%s) DO NOTHING", target)
	}
	return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET %s", target, excludedUpdates(updateColumns, "%s=excluded.%s"))
}

func (sqliteDialect) InitStatements() []string {
	return []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string        { return "postgres" }
func (postgresDialect) DriverName() string  { return "pgx" }
func (postgresDialect) BooleanType() string { return "BOOLEAN" }
func (postgresDialect) TextType() string    { return "TEXT" }
func (postgresDialect) MaxOpenConns() int   { return 0 }

func (postgresDialect) InitStatements() []string { return nil }

func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	idx := 1
	for _, ch := range query {
		if ch == '?' {
			fmt.Fprintf(&b, "$%d", idx)
			idx++
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (postgresDialect) Upsert(conflictColumns, updateColumns []string) string {
	target := strings.Join(conflictColumns, ", ")
	if len(updateColumns) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", target)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", target, excludedUpdates(updateColumns, "%s = EXCLUDED.%s"))
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string               { return "mysql" }
func (mysqlDialect) DriverName() string         { return "mysql" }
func (mysqlDialect) Rebind(query string) string { return query }
func (mysqlDialect) BooleanType() string        { return "TINYINT(1)" }
func (mysqlDialect) TextType() string           { return "LONGTEXT" }
func (mysqlDialect) MaxOpenConns() int          { return 0 }

func (mysqlDialect) InitStatements() []string { return nil }

// Upsert ignores conflictColumns: MySQL resolves the conflict against
// whichever unique key the row violates.
func (mysqlDialect) Upsert(conflictColumns, updateColumns []string) string {
	if len(updateColumns) == 0 {
		col := "id"
		if len(conflictColumns) > 0 {
			col = conflictColumns[0]
		}
		return fmt.Sprintf("ON DUPLICATE KEY UPDATE %s = %s", col, col)
	}
	return "ON DUPLICATE KEY UPDATE " + excludedUpdates(updateColumns, "%s = VALUES(%s)")
}
