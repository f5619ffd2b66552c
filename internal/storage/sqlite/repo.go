// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc driver. Rows are written with batched
// multi-row INSERTs inside the caller's transaction.
//
// SQLite has no CREATE SCHEMA. A schema is an attached database file named
// <schema>.db next to the main database (or an in-memory database when the
// main database is in memory). The pool is pinned to a single connection so
// attachments stay visible to every statement.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/ddl"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage/sqlstore"

	_ "modernc.org/sqlite"
)

// maxParams is SQLITE_MAX_VARIABLE_NUMBER for SQLite >= 3.32.
const maxParams = 32766

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:elt.db?_pragma=busy_timeout(5000)"
	//   "elt.db"
	//   ":memory:"
	DSN string

	ConnectTimeout time.Duration
}

// Repository is a SQLite-backed storage repository.
type Repository struct {
	*sqlstore.Repository
	dir    string // directory holding attached schema files; "" for in-memory
	memory bool
}

// NewRepository opens the database and returns a Repository plus a close
// function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sqlstore.Open(ctx, "sqlite", cfg.DSN, cfg.ConnectTimeout)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	path, memory := dbPath(cfg.DSN)
	r := &Repository{memory: memory}
	if !memory {
		r.dir = filepath.Dir(path)
	}
	r.Repository = sqlstore.New(db, sqlstore.Options{
		Kind:         "sqlite",
		Dialect:      ddl.SQLite{},
		MaxParams:    maxParams,
		EnsureSchema: r.attach,
	})

	closeFn := func() { _ = db.Close() }
	return r, closeFn, nil
}

// attach attaches schema name unless it is already attached.
func (r *Repository) attach(ctx context.Context, db *sql.DB, name string) error {
	if strings.EqualFold(name, "main") || strings.EqualFold(name, "temp") {
		return nil
	}
	attached, err := attachedSchemas(ctx, db)
	if err != nil {
		return err
	}
	if _, ok := attached[strings.ToLower(name)]; ok {
		return nil
	}

	file := ":memory:"
	if !r.memory {
		file = filepath.Join(r.dir, name+".db")
	}
	stmt := "ATTACH DATABASE ? AS " + (ddl.SQLite{}).QuoteIdent(name)
	if _, err := db.ExecContext(ctx, stmt, file); err != nil {
		return fmt.Errorf("sqlite: attach %s: %w", name, err)
	}
	return nil
}

func attachedSchemas(ctx context.Context, db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, fmt.Errorf("sqlite: database_list: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var (
			seq  int
			name string
			file sql.NullString
		)
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, fmt.Errorf("sqlite: database_list: %w", err)
		}
		out[strings.ToLower(name)] = struct{}{}
	}
	return out, rows.Err()
}

// dbPath extracts the main database file from a DSN and reports whether the
// database lives in memory.
func dbPath(dsn string) (string, bool) {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		if strings.Contains(p[i:], "mode=memory") {
			return "", true
		}
		p = p[:i]
	}
	if p == "" || p == ":memory:" {
		return "", true
	}
	return p, false
}
