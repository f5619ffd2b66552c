package ddl

import (
	"strings"
	"testing"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/schema"
)

// TestBuildCreateTableSQL verifies the rendered CREATE TABLE statements and
// the errors surfaced for invalid definitions.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		dialect     Dialect
		def         TableDef
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			dialect:     Postgres{},
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "TEXT"}}},
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			dialect:     Postgres{},
			def:         TableDef{FQN: "raw.t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			dialect:     Postgres{},
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: " ", SQLType: "TEXT"}}},
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			dialect:     Postgres{},
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			errContains: "missing SQLType",
		},
		{
			name:    "postgres nullable text columns",
			dialect: Postgres{},
			def: TableDef{FQN: "raw.olist_orders", Columns: []ColumnDef{
				{Name: "order_id", SQLType: "TEXT", Nullable: true},
				{Name: "order_status", SQLType: "TEXT", Nullable: true},
			}},
			wantSQL: "CREATE TABLE \"raw\".\"olist_orders\" (\n  \"order_id\" TEXT,\n  \"order_status\" TEXT\n)",
		},
		{
			name:    "primary key forces NOT NULL",
			dialect: Postgres{},
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "id", SQLType: "TEXT", Nullable: true, PrimaryKey: true},
				{Name: "v", SQLType: "TEXT", Nullable: false, Default: "'x'"},
			}},
			wantSQL: "CREATE TABLE \"t\" (\n  \"id\" TEXT NOT NULL,\n  \"v\" TEXT NOT NULL DEFAULT 'x',\n  PRIMARY KEY (\"id\")\n)",
		},
		{
			name:    "mssql brackets",
			dialect: MSSQL{},
			def:     TableDef{FQN: "raw.t", Columns: []ColumnDef{{Name: "a]b", SQLType: "NVARCHAR(MAX)", Nullable: true}}},
			wantSQL: "CREATE TABLE [raw].[t] (\n  [a]]b] NVARCHAR(MAX)\n)",
		},
		{
			name:    "mysql backticks",
			dialect: MySQL{},
			def:     TableDef{FQN: "raw.t", Columns: []ColumnDef{{Name: "a", SQLType: "LONGTEXT", Nullable: true}}},
			wantSQL: "CREATE TABLE `raw`.`t` (\n  `a` LONGTEXT\n)",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildCreateTableSQL(tc.dialect, tc.def)
			if tc.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("err = %v, want containing %q", err, tc.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.wantSQL {
				t.Fatalf("SQL mismatch\n got: %q\nwant: %q", got, tc.wantSQL)
			}
		})
	}
}

func TestFromInferred(t *testing.T) {
	t.Parallel()

	s, err := schema.FromHeader([]string{"Order ID", "Customer Name"})
	if err != nil {
		t.Fatalf("FromHeader: %v", err)
	}
	td := FromInferred("raw.orders", s, MSSQL{})
	if td.FQN != "raw.orders" || len(td.Columns) != 2 {
		t.Fatalf("unexpected TableDef: %+v", td)
	}
	for _, c := range td.Columns {
		if c.SQLType != "NVARCHAR(MAX)" || !c.Nullable {
			t.Fatalf("column %+v: want nullable NVARCHAR(MAX)", c)
		}
	}
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		d    Dialect
		want string
	}{
		{Postgres{}, `INSERT INTO "raw"."t" ("a", "b") VALUES ($1, $2), ($3, $4)`},
		{SQLite{}, `INSERT INTO "raw"."t" ("a", "b") VALUES (?, ?), (?, ?)`},
		{MySQL{}, "INSERT INTO `raw`.`t` (`a`, `b`) VALUES (?, ?), (?, ?)"},
		{MSSQL{}, `INSERT INTO [raw].[t] ([a], [b]) VALUES (@p1, @p2), (@p3, @p4)`},
	}
	for _, tc := range cases {
		if got := InsertSQL(tc.d, "raw.t", []string{"a", "b"}, 2); got != tc.want {
			t.Errorf("%s: InsertSQL = %q, want %q", tc.d.Name(), got, tc.want)
		}
	}
}

func TestSchemaAndDropSQL(t *testing.T) {
	t.Parallel()

	if got, want := (Postgres{}).CreateSchemaSQL("raw"), `CREATE SCHEMA IF NOT EXISTS "raw"`; got != want {
		t.Errorf("postgres CreateSchemaSQL = %q, want %q", got, want)
	}
	if got := (SQLite{}).CreateSchemaSQL("raw"); got != "" {
		t.Errorf("sqlite CreateSchemaSQL = %q, want empty", got)
	}
	if got, want := (MSSQL{}).CreateSchemaSQL("raw"), `IF SCHEMA_ID(N'raw') IS NULL EXEC(N'CREATE SCHEMA [raw]')`; got != want {
		t.Errorf("mssql CreateSchemaSQL = %q, want %q", got, want)
	}
	if got, want := DropTableSQL(Postgres{}, "raw.olist_orders"), `DROP TABLE IF EXISTS "raw"."olist_orders"`; got != want {
		t.Errorf("DropTableSQL = %q, want %q", got, want)
	}
	if got, want := SelectAllSQL(Postgres{}, "olist.orders"), `SELECT * FROM "olist"."orders"`; got != want {
		t.Errorf("SelectAllSQL = %q, want %q", got, want)
	}
}

func TestForKind(t *testing.T) {
	t.Parallel()

	for kind, want := range map[string]string{
		"postgres": "postgres", "sqlite": "sqlite", "mysql": "mysql", "sqlserver": "mssql",
	} {
		d, err := ForKind(kind)
		if err != nil {
			t.Fatalf("ForKind(%q): %v", kind, err)
		}
		if d.Name() != want {
			t.Fatalf("ForKind(%q).Name() = %q, want %q", kind, d.Name(), want)
		}
	}
	if _, err := ForKind("oracle"); err == nil {
		t.Fatalf("ForKind(oracle): expected error")
	}
}
