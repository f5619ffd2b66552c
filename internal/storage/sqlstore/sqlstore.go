// Package sqlstore implements the storage contracts on top of database/sql for
// the backends that ship a database/sql driver (SQLite, MySQL, SQL Server).
// Backends supply a dialect and, where they have one, a faster bulk-copy
// primitive; the default copy is a parameterised multi-row INSERT.
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/ddl"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/records"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage"
)

// DefaultPingTimeout bounds the initial ping when no connect timeout is set.
const DefaultPingTimeout = 5 * time.Second

// CopyFunc bulk-inserts rows into target within tx.
type CopyFunc func(ctx context.Context, tx *sql.Tx, target storage.Target, columns []string, rows [][]any) (int64, error)

// Options configure a Repository.
type Options struct {
	Kind    string
	Dialect ddl.Dialect

	// MaxParams caps bind parameters per INSERT; larger chunks are split
	// across several statements in the same transaction.
	MaxParams int

	// Copy replaces the default multi-row INSERT.
	Copy CopyFunc

	// EnsureSchema replaces the default dialect CREATE SCHEMA.
	EnsureSchema func(ctx context.Context, db *sql.DB, name string) error

	// Convert, when set, rewrites each fetched value given its column's
	// database type name (e.g. "UNIQUEIDENTIFIER").
	Convert ConvertFunc
}

// ConvertFunc maps a driver value of a column with database type dbType.
type ConvertFunc func(dbType string, v any) any

// Repository is a database/sql backed handle. It satisfies every method of
// storage.Repository except Close, which the backend adapters provide.
type Repository struct {
	db   *sql.DB
	opts Options
}

// New wraps an open pool.
func New(db *sql.DB, opts Options) *Repository {
	if opts.Copy == nil {
		opts.Copy = InsertCopy(opts.Dialect, opts.MaxParams)
	}
	return &Repository{db: db, opts: opts}
}

// Open opens a pool for driverName and pings it within timeout. Ping failures
// are connectivity failures.
func Open(ctx context.Context, driverName, dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driverName, err)
	}
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s: ping: %w", storage.ErrConnectivity, driverName, err)
	}
	return db, nil
}

// DB exposes the underlying pool.
func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) Kind() string { return r.opts.Kind }

func (r *Repository) Dialect() ddl.Dialect { return r.opts.Dialect }

// EnsureSchema creates schema name if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context, name string) error {
	if r.opts.EnsureSchema != nil {
		return Classify(r.opts.EnsureSchema(ctx, r.db, name))
	}
	stmt := r.opts.Dialect.CreateSchemaSQL(name)
	if stmt == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return Classify(err)
	}
	return nil
}

// Query runs query and materialises the result as a records.Set.
func (r *Repository) Query(ctx context.Context, query string, args ...any) (records.Set, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return records.Set{}, Classify(err)
	}
	defer rows.Close()
	return ScanSet(rows, r.opts.Convert)
}

// ScanSet drains rows into a Set. Values are taken as the driver returns them
// unless convert is set.
func ScanSet(rows *sql.Rows, convert ConvertFunc) (records.Set, error) {
	cols, err := rows.Columns()
	if err != nil {
		return records.Set{}, err
	}
	var dbTypes []string
	if convert != nil {
		cts, err := rows.ColumnTypes()
		if err != nil {
			return records.Set{}, err
		}
		dbTypes = make([]string, len(cts))
		for i, ct := range cts {
			dbTypes[i] = ct.DatabaseTypeName()
		}
	}
	set := records.Set{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return records.Set{}, err
		}
		for i := range dbTypes {
			vals[i] = convert(dbTypes[i], vals[i])
		}
		set.Rows = append(set.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return records.Set{}, Classify(err)
	}
	return set, nil
}

// Begin opens a transaction.
func (r *Repository) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, Classify(err)
	}
	return &sqlTx{tx: tx, copy: r.opts.Copy}, nil
}

type sqlTx struct {
	tx   *sql.Tx
	copy CopyFunc
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return Classify(err)
	}
	return nil
}

func (t *sqlTx) CopyFrom(ctx context.Context, target storage.Target, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("copy into %s: columns must not be empty", target)
	}
	n, err := t.copy(ctx, t.tx, target, columns, rows)
	return n, Classify(err)
}

func (t *sqlTx) Commit(context.Context) error { return Classify(t.tx.Commit()) }

func (t *sqlTx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Classify marks broken-connection and network errors as
// storage.ErrConnectivity. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, storage.ErrConnectivity) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", storage.ErrConnectivity, err)
	}
	return err
}
