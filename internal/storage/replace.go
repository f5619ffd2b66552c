package storage

import (
	"context"
	"fmt"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/ddl"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/schema"
)

// ReplaceTable drops target if it exists and recreates it with one text column
// per entry of s, in order. Both statements run on ex, normally the unit's
// transaction, so a later failure rolls the replacement back too.
func ReplaceTable(ctx context.Context, ex Execer, d ddl.Dialect, target Target, s schema.Inferred) error {
	fqn := target.FQN()
	if err := ex.Exec(ctx, ddl.DropTableSQL(d, fqn)); err != nil {
		return fmt.Errorf("drop table %s: %w", fqn, err)
	}

	stmt, err := ddl.BuildCreateTableSQL(d, ddl.FromInferred(fqn, s, d))
	if err != nil {
		return err
	}
	if err := ex.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", fqn, err)
	}
	return nil
}

// EnsureSchemas creates every named schema on repo, skipping blanks and
// repeats. A failure here is returned as-is; callers treat it as fatal.
func EnsureSchemas(ctx context.Context, repo Repository, names ...string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		if err := repo.EnsureSchema(ctx, n); err != nil {
			return fmt.Errorf("ensure schema %s: %w", n, err)
		}
	}
	return nil
}
