// Package mssql implements a Microsoft SQL Server repository using
// go-mssqldb. Chunks are written with the driver's bulk copy API inside the
// caller's transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/ddl"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage/sqlstore"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN            string
	ConnectTimeout time.Duration
	MaxConns       int
}

// Repository is an MSSQL-backed storage repository.
type Repository struct {
	*sqlstore.Repository
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sqlstore.Open(ctx, "sqlserver", cfg.DSN, cfg.ConnectTimeout)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	r := &Repository{Repository: sqlstore.New(db, sqlstore.Options{
		Kind:    "mssql",
		Dialect: ddl.MSSQL{},
		Copy:    bulkCopy,
		Convert: convertValue,
	})}
	closeFn := func() { _ = db.Close() }
	return r, closeFn, nil
}

// convertValue renders uniqueidentifier columns, which the driver returns as
// 16 raw bytes in SQL Server's mixed-endian order, as canonical GUID text.
func convertValue(dbType string, v any) any {
	b, ok := v.([]byte)
	if !ok || dbType != "UNIQUEIDENTIFIER" {
		return v
	}
	var id mssql.UniqueIdentifier
	if err := id.Scan(b); err != nil {
		return v
	}
	return id.String()
}

// bulkCopy streams rows through mssql.CopyIn on tx and returns the rows the
// server reports as copied.
func bulkCopy(ctx context.Context, tx *sql.Tx, target storage.Target, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(msFQN(target.FQN()), mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if len(rows[i]) != len(columns) {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: has %d values, want %d", i+1, len(rows[i]), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i+1, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// BuildDSN renders a sqlserver:// URL from discrete connection parameters.
func BuildDSN(host string, port int, database, user, password string, timeout time.Duration) string {
	if port == 0 {
		port = 1433
	}
	q := url.Values{}
	if database != "" {
		q.Set("database", database)
	}
	if timeout > 0 {
		q.Set("dial timeout", strconv.Itoa(int(timeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return (ddl.MSSQL{}).QuoteIdent(id) }

// msFQN quotes a possibly schema-qualified name like "raw.olist_orders" to
// "[raw].[olist_orders]".
func msFQN(name string) string { return ddl.QuoteFQN(ddl.MSSQL{}, name) }
