// This file implements the chunked writers. Both cut their input into
// consecutive chunks of at most chunkSize rows and hand each chunk to a
// backend CopyFn; chunk N completes before chunk N+1 is attempted.
//
// Backends implement CopyFn with their fastest primitive (Postgres COPY,
// SQL Server bulk copy, multi-row INSERT elsewhere).

package storage

import (
	"context"
	"fmt"
	"time"
)

// DefaultChunkSize is used when a non-positive chunk size is supplied.
const DefaultChunkSize = 1000

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// rows (aligned to columns) and return the number of rows inserted. They
// should cancel promptly when ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// Progress describes one successfully written chunk.
type Progress struct {
	Chunk     int           // 1-based chunk number
	Rows      int64         // rows inserted by this chunk
	Total     int64         // rows inserted so far
	Elapsed   time.Duration // since the first chunk started
	SinceLast time.Duration // since the previous chunk completed
}

// RowsPerSec is the instantaneous insert rate of this chunk.
func (p Progress) RowsPerSec() float64 {
	if p.SinceLast <= 0 {
		return 0
	}
	return float64(p.Rows) / p.SinceLast.Seconds()
}

// ProgressFn observes chunk completion. It must not block for long.
type ProgressFn func(Progress)

// tracker counts chunks and emits Progress after each flush.
type tracker struct {
	fn     ProgressFn
	chunks int
	total  int64
	start  time.Time
	last   time.Time
}

func newTracker(fn ProgressFn) *tracker {
	now := time.Now()
	return &tracker{fn: fn, start: now, last: now}
}

func (t *tracker) done(n int64) {
	t.chunks++
	t.total += n
	now := time.Now()
	if t.fn != nil {
		t.fn(Progress{
			Chunk:     t.chunks,
			Rows:      n,
			Total:     t.total,
			Elapsed:   now.Sub(t.start),
			SinceLast: now.Sub(t.last),
		})
	}
	t.last = now
}

// WriteChunks writes an in-memory row slice in chunks. It returns the rows
// inserted, including whatever a failing CopyFn call reported, and the first
// error. Empty input is a no-op.
func WriteChunks(
	ctx context.Context,
	columns []string,
	rows [][]any,
	chunkSize int,
	copyFn CopyFn,
	progress ProgressFn,
) (int64, error) {
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	tr := newTracker(progress)
	for start := 0; start < len(rows); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return tr.total, err
		}
		end := min(start+chunkSize, len(rows))

		n, err := copyFn(ctx, columns, rows[start:end])
		if err != nil {
			return tr.total + n, fmt.Errorf("chunk %d (rows %d-%d): %w", tr.chunks+1, start+1, end, err)
		}
		tr.done(n)
	}
	return tr.total, nil
}

// LoadBatches drains rows from in, groups them into chunks of chunkSize and
// calls copyFn for each non-empty chunk. At most one chunk is buffered. It
// returns the total rows inserted and the first error; when ctx is cancelled
// it returns ctx.Err().
func LoadBatches(
	ctx context.Context,
	columns []string,
	in <-chan []any,
	chunkSize int,
	copyFn CopyFn,
	progress ProgressFn,
) (int64, error) {
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var (
		tr    = newTracker(progress)
		batch = make([][]any, 0, chunkSize)
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		// copyFn must not retain rows; the backing array is reused.
		batch = batch[:0]
		if err != nil {
			return fmt.Errorf("chunk %d: %w", tr.chunks+1, err)
		}
		tr.done(n)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return tr.total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return tr.total, err
				}
				return tr.total, nil
			}
			batch = append(batch, row)
			if len(batch) >= chunkSize {
				if err := flush(); err != nil {
					return tr.total, err
				}
			}
		}
	}
}
