// Package storage contains the storage-agnostic contracts of the loader: the
// Repository and Tx interfaces every backend implements, a registry of
// backend factories keyed by kind, transaction scoping, table replacement and
// the chunked writers.
//
// Backends live in subpackages and register themselves from init(); import
// internal/storage/all to link every backend into a binary.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/ddl"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/records"
)

// ErrConnectivity marks failures to reach a database: refused connections,
// timeouts and broken handles. Runs abort on it instead of failing one unit.
var ErrConnectivity = errors.New("storage: connectivity failure")

// IsConnectivity reports whether err is a connectivity failure.
func IsConnectivity(err error) bool { return errors.Is(err, ErrConnectivity) }

// Config carries the connection parameters for one handle. It is passed by
// value and never stored in package state.
type Config struct {
	// Kind selects the backend: postgres, sqlite, mysql or mssql.
	Kind string

	// DSN, when set, is used verbatim and the discrete fields are ignored.
	DSN string

	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// ConnectTimeout bounds opening and pinging the handle.
	ConnectTimeout time.Duration

	// MaxConns caps the pool; 0 leaves the backend default.
	MaxConns int
}

// Target is a destination table.
type Target struct {
	Schema string
	Table  string
}

// FQN returns "schema.table", or just the table when Schema is empty.
func (t Target) FQN() string {
	if t.Schema == "" {
		return t.Table
	}
	return t.Schema + "." + t.Table
}

func (t Target) String() string { return t.FQN() }

// Execer runs a statement that returns no rows.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// Tx is an open destination transaction.
type Tx interface {
	Execer
	// CopyFrom bulk-inserts rows (aligned to columns) into target and returns
	// the number of rows inserted.
	CopyFrom(ctx context.Context, target Target, columns []string, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner opens transactions.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// Repository is a handle on one database, used as a source, a destination or
// both. Implementations own a connection pool; Close releases it.
type Repository interface {
	Beginner

	// Kind returns the backend kind the repository was built for.
	Kind() string
	// Dialect returns the SQL dialect of the backend.
	Dialect() ddl.Dialect
	// EnsureSchema makes sure schema name exists.
	EnsureSchema(ctx context.Context, name string) error
	// Query runs a read and converts the result into a records.Set before
	// returning; no driver cursor outlives the call.
	Query(ctx context.Context, query string, args ...any) (records.Set, error)
	// Close releases the underlying pool.
	Close()
}

// Factory builds a Repository from a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register binds a factory to kind. Re-registering a kind replaces the
// previous factory.
func Register(kind string, f Factory) {
	kind = normalizeKind(kind)
	if kind == "" || f == nil {
		panic("storage: Register requires a kind and a factory")
	}
	registryMu.Lock()
	registry[kind] = f
	registryMu.Unlock()
}

// New opens a repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	kind := normalizeKind(cfg.Kind)
	registryMu.RLock()
	f, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	cfg.Kind = kind
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds in sorted order.
func ListKinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// normalizeKind folds backend aliases onto their registered names.
func normalizeKind(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	switch k {
	case "postgresql", "pgx":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	case "mariadb":
		return "mysql"
	case "sqlserver":
		return "mssql"
	}
	return k
}
