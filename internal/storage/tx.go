package storage

import (
	"context"
	"errors"
	"fmt"
)

// WithTx runs fn inside a transaction opened on b. The transaction is
// committed when fn returns nil and rolled back when fn returns an error or
// panics; exactly one of the two happens. fn's error is returned unchanged
// (joined with the rollback error, if any); a panic is re-raised after the
// rollback.
func WithTx(ctx context.Context, b Beginner, fn func(Tx) error) (err error) {
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	// Rollback must run even when ctx is already cancelled.
	rbCtx := context.WithoutCancel(ctx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(rbCtx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(rbCtx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
