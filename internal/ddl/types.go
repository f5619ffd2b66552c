package ddl

import (
	"strings"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/schema"
)

// ColumnDef describes a single column in a table definition. It uses simple,
// database-agnostic fields.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, NVARCHAR(MAX))
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., 'anon', CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the fully-qualified table name (FQN) and an ordered list of
// columns. The FQN is expected in dotted form (e.g., "raw.olist_orders") and is
// quoted per dialect at render time.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// FromInferred maps an inferred schema onto a table definition for dialect d.
// Every column is nullable and typed with the dialect's unbounded text type.
func FromInferred(fqn string, s schema.Inferred, d Dialect) TableDef {
	cols := make([]ColumnDef, 0, s.Len())
	for _, c := range s.Columns {
		cols = append(cols, ColumnDef{
			Name:     c.Name,
			SQLType:  d.MapType(c.Type),
			Nullable: true,
		})
	}
	return TableDef{FQN: fqn, Columns: cols}
}

// QuoteFQN quotes a possibly schema-qualified name like "raw.orders" segment by
// segment using d. Empty segments are ignored.
func QuoteFQN(d Dialect, fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, d.QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

// QuoteColumns maps column names to their quoted forms.
func QuoteColumns(d Dialect, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = d.QuoteIdent(c)
	}
	return out
}
