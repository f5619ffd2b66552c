package ddl

import (
	"fmt"
	"strings"
)

// Dialect captures the SQL differences between destination engines that the
// loader cares about: identifier quoting, the text column type, placeholders
// and schema creation.
type Dialect interface {
	// Name returns the storage kind the dialect belongs to.
	Name() string
	// QuoteIdent quotes a single identifier segment.
	QuoteIdent(id string) string
	// MapType maps a logical type to a column type.
	MapType(kind string) string
	// Placeholder returns the bind parameter for 1-based position n.
	Placeholder(n int) string
	// CreateSchemaSQL returns an idempotent statement creating schema s.
	CreateSchemaSQL(s string) string
}

// Postgres is the PostgreSQL dialect.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

// QuoteIdent quotes a single identifier segment, e.g.:
//
//	QuoteIdent(`orders`)     => `"orders"`
//	QuoteIdent(`weird"name`) => `"weird""name"`
func (Postgres) QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func (Postgres) MapType(string) string { return "TEXT" }

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d Postgres) CreateSchemaSQL(s string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + d.QuoteIdent(s)
}

// SQLite is the SQLite dialect. SQLite has no CREATE SCHEMA; schemas are
// attached databases and the sqlite repository attaches them itself.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func (SQLite) MapType(string) string { return "TEXT" }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) CreateSchemaSQL(string) string { return "" }

// MySQL is the MySQL/MariaDB dialect. A schema is a database in MySQL.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) QuoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

// MapType returns LONGTEXT; plain TEXT is capped at 64KiB in MySQL.
func (MySQL) MapType(string) string { return "LONGTEXT" }

func (MySQL) Placeholder(int) string { return "?" }

func (d MySQL) CreateSchemaSQL(s string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + d.QuoteIdent(s)
}

// MSSQL is the SQL Server dialect.
type MSSQL struct{}

func (MSSQL) Name() string { return "mssql" }

func (MSSQL) QuoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

func (MSSQL) MapType(string) string { return "NVARCHAR(MAX)" }

func (MSSQL) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

// CreateSchemaSQL guards CREATE SCHEMA, which SQL Server requires to be the
// only statement in its batch.
func (d MSSQL) CreateSchemaSQL(s string) string {
	lit := strings.ReplaceAll(s, "'", "''")
	stmt := strings.ReplaceAll("CREATE SCHEMA "+d.QuoteIdent(s), "'", "''")
	return fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL EXEC(N'%s')", lit, stmt)
}

// ForKind returns the dialect registered for a storage kind.
func ForKind(kind string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "mysql", "mariadb":
		return MySQL{}, nil
	case "mssql", "sqlserver":
		return MSSQL{}, nil
	default:
		return nil, fmt.Errorf("ddl: no dialect for storage kind %q", kind)
	}
}
