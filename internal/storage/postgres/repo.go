// Package postgres implements the storage contracts for PostgreSQL using pgx
// v5. Chunks are written with the COPY protocol inside the caller's
// transaction, so a failed unit rolls back its DDL and rows together.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/ddl"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/records"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN            string // connection string for pgxpool
	ConnectTimeout time.Duration
	MaxConns       int32
}

// Repository is a Postgres-backed storage repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository and returns a Close function for
// cleanup. The pool is pinged before returning; failure to reach the server
// is reported as storage.ErrConnectivity.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: parse config: %w", err)
	}
	if cfg.ConnectTimeout > 0 {
		pcfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pgxpool: %w", storage.ErrConnectivity, err)
	}
	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("%w: ping: %w", storage.ErrConnectivity, err)
	}

	closeFn := func() { pool.Close() }
	return &Repository{pool: pool}, closeFn, nil
}

func (r *Repository) Kind() string { return "postgres" }

func (r *Repository) Dialect() ddl.Dialect { return ddl.Postgres{} }

// EnsureSchema runs CREATE SCHEMA IF NOT EXISTS.
func (r *Repository) EnsureSchema(ctx context.Context, name string) error {
	if _, err := r.pool.Exec(ctx, (ddl.Postgres{}).CreateSchemaSQL(name)); err != nil {
		return wrapErr("create schema", err)
	}
	return nil
}

// Query runs a read and converts every row to []any via pgx's value decoding.
func (r *Repository) Query(ctx context.Context, query string, args ...any) (records.Set, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return records.Set{}, wrapErr("query", err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	set := records.Set{Columns: make([]string, len(fds))}
	for i, fd := range fds {
		set.Columns[i] = fd.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return records.Set{}, wrapErr("scan", err)
		}
		set.Rows = append(set.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return records.Set{}, wrapErr("query", err)
	}
	return set, nil
}

// Begin opens a transaction on a pooled connection.
func (r *Repository) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, wrapErr("begin", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Exec(ctx context.Context, sql string, args ...any) error {
	if _, err := t.tx.Exec(ctx, sql, args...); err != nil {
		return wrapErr("exec", err)
	}
	return nil
}

// CopyFrom streams rows with COPY FROM STDIN into target.
func (t *pgTx) CopyFrom(ctx context.Context, target storage.Target, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := t.tx.CopyFrom(ctx, splitFQN(target.FQN()), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, wrapErr("copy into "+target.FQN(), err)
	}
	return n, nil
}

func (t *pgTx) Commit(ctx context.Context) error { return wrapErr("commit", t.tx.Commit(ctx)) }

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return wrapErr("rollback", err)
	}
	return nil
}

// wrapErr adds context, surfaces PgError details and classifies connection
// failures as storage.ErrConnectivity.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Detail != "" {
			return fmt.Errorf("%s: %s (%s): %w", op, pgErr.Detail, pgErr.SQLState(), err)
		}
		return fmt.Errorf("%s (%s): %w", op, pgErr.SQLState(), err)
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %s: %w", storage.ErrConnectivity, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

// BuildDSN renders a postgres:// URL from discrete connection parameters.
func BuildDSN(host string, port int, database, user, password, sslmode string, timeout time.Duration) string {
	if port == 0 {
		port = 5432
	}
	q := url.Values{}
	if sslmode != "" {
		q.Set("sslmode", sslmode)
	}
	if timeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(timeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + database,
		RawQuery: q.Encode(),
	}
	return u.String()
}
