// Package ddl defines a small, backend-agnostic model for SQL DDL and renders
// the statements the loader needs (CREATE SCHEMA, DROP TABLE, CREATE TABLE,
// INSERT) for each supported dialect.
//
// Statements never embed user values; identifiers are quoted by the dialect
// and row values travel as bind parameters.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders a CREATE TABLE statement for t in dialect d.
//
// Rules:
//
//   - t.FQN must be non-empty; it is quoted segment by segment.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
//     where NOT NULL is added when Nullable == false or PrimaryKey == true.
//
//   - Primary-key columns are rendered as a separate PRIMARY KEY clause in
//     column order.
//
// The statement has no IF NOT EXISTS: callers replace tables by dropping them
// first, so an existing table here is an error worth surfacing.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}

		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.QuoteIdent(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n)",
		QuoteFQN(d, fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

// DropTableSQL renders DROP TABLE IF EXISTS for fqn.
func DropTableSQL(d Dialect, fqn string) string {
	return "DROP TABLE IF EXISTS " + QuoteFQN(d, fqn)
}

// SelectAllSQL renders a full-table read of a source locator such as
// "olist.orders".
func SelectAllSQL(d Dialect, locator string) string {
	return "SELECT * FROM " + QuoteFQN(d, locator)
}

// InsertSQL renders a parameterised INSERT of nrows rows of len(columns)
// values each. nrows must be >= 1.
func InsertSQL(d Dialect, fqn string, columns []string, nrows int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(QuoteFQN(d, fqn))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(QuoteColumns(d, columns), ", "))
	sb.WriteString(") VALUES ")

	n := 1
	for r := 0; r < nrows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range columns {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Placeholder(n))
			n++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}
