package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/ddl"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage"
)

// DefaultMaxParams is the bind-parameter budget used when a backend does not
// declare one. It is SQL Server's limit minus one, the lowest of the
// supported engines.
const DefaultMaxParams = 2099

// InsertCopy returns a CopyFunc issuing multi-row INSERT statements, each
// holding as many rows as fit in maxParams bind parameters.
func InsertCopy(d ddl.Dialect, maxParams int) CopyFunc {
	if maxParams <= 0 {
		maxParams = DefaultMaxParams
	}
	return func(ctx context.Context, tx *sql.Tx, target storage.Target, columns []string, rows [][]any) (int64, error) {
		perStmt := max(1, maxParams/len(columns))

		var (
			inserted int64
			stmt     *sql.Stmt
			stmtRows int
		)
		defer func() {
			if stmt != nil {
				_ = stmt.Close()
			}
		}()

		args := make([]any, 0, perStmt*len(columns))
		for start := 0; start < len(rows); start += perStmt {
			part := rows[start:min(start+perStmt, len(rows))]

			// Reuse the prepared statement while the row count is unchanged;
			// only the trailing statement of a chunk differs.
			if stmt == nil || stmtRows != len(part) {
				if stmt != nil {
					_ = stmt.Close()
				}
				var err error
				stmt, err = tx.PrepareContext(ctx, ddl.InsertSQL(d, target.FQN(), columns, len(part)))
				if err != nil {
					return inserted, fmt.Errorf("prepare insert into %s: %w", target, err)
				}
				stmtRows = len(part)
			}

			args = args[:0]
			for i, row := range part {
				if len(row) != len(columns) {
					return inserted, fmt.Errorf("insert into %s: row %d has %d values, want %d",
						target, start+i+1, len(row), len(columns))
				}
				args = append(args, row...)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return inserted, fmt.Errorf("insert into %s: %w", target, err)
			}
			inserted += int64(len(part))
		}
		return inserted, nil
	}
}
