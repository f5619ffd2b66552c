package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/ddl"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/records"
)

// fakeTx records statements and copies, and can be told to fail.
type fakeTx struct {
	mu sync.Mutex

	stmts     []string
	copied    [][]any
	execErr   error
	commitErr error
	rbErr     error
	commits   int
	rollbacks int
}

func (f *fakeTx) Exec(_ context.Context, query string, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stmts = append(f.stmts, query)
	return f.execErr
}

func (f *fakeTx) CopyFrom(_ context.Context, _ Target, _ []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copied = append(f.copied, rows...)
	return int64(len(rows)), nil
}

func (f *fakeTx) Commit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	return f.commitErr
}

func (f *fakeTx) Rollback(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks++
	return f.rbErr
}

// fakeRepo is a minimal Repository implementation for tests.
type fakeRepo struct {
	tx       *fakeTx
	beginErr error
	schemas  []string
	closed   bool
}

func (f *fakeRepo) Begin(context.Context) (Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func (f *fakeRepo) Kind() string         { return "fake" }
func (f *fakeRepo) Dialect() ddl.Dialect { return ddl.Postgres{} }

func (f *fakeRepo) EnsureSchema(_ context.Context, name string) error {
	if name == "broken" {
		return errors.New("permission denied")
	}
	f.schemas = append(f.schemas, name)
	return nil
}

func (f *fakeRepo) Query(context.Context, string, ...any) (records.Set, error) {
	return records.Set{}, nil
}

func (f *fakeRepo) Close() { f.closed = true }
