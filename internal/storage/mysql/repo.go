// Package mysql implements a MySQL/MariaDB-backed storage.Repository using
// go-sql-driver/mysql. A schema is a MySQL database; rows are written with
// multi-row INSERTs.
//
// MySQL commits DDL implicitly, so DROP/CREATE inside a transaction is not
// rolled back on this backend; only the inserted rows are.
package mysql

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/ddl"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage/sqlstore"

	driver "github.com/go-sql-driver/mysql"
)

// maxParams is the prepared-statement placeholder limit of the protocol.
const maxParams = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN            string
	ConnectTimeout time.Duration
	MaxConns       int
}

// Repository is a MySQL-backed storage repository.
type Repository struct {
	*sqlstore.Repository
}

// NewRepository validates the DSN, opens a pool and returns a Repository plus
// a close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := driver.ParseDSN(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sqlstore.Open(ctx, "mysql", cfg.DSN, cfg.ConnectTimeout)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	r := &Repository{Repository: sqlstore.New(db, sqlstore.Options{
		Kind:      "mysql",
		Dialect:   ddl.MySQL{},
		MaxParams: maxParams,
	})}
	closeFn := func() { _ = db.Close() }
	return r, closeFn, nil
}

// BuildDSN renders a go-sql-driver DSN from discrete connection parameters.
func BuildDSN(host string, port int, database, user, password string, timeout time.Duration) string {
	c := driver.NewConfig()
	c.User = user
	c.Passwd = password
	c.Net = "tcp"
	if port == 0 {
		port = 3306
	}
	c.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	c.DBName = database
	c.Timeout = timeout
	return c.FormatDSN()
}
