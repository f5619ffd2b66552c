// Package csv reads comma-separated files with a header row for the file
// loader. Rows are streamed, never buffered whole.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// ErrEmpty is returned by Header when the input has no rows at all.
var ErrEmpty = errors.New("csv: empty input")

// Options configures the reader. Zero values are the defaults.
type Options struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune
	// LazyQuotes relaxes quote handling (encoding/csv LazyQuotes).
	LazyQuotes bool
}

// Reader reads a header and then data rows.
type Reader struct {
	cr *csv.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader, opt Options) *Reader {
	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1 // widths are checked against the header below
	cr.ReuseRecord = true
	return &Reader{cr: cr}
}

// Header reads the first record and returns it with a leading BOM removed.
func (r *Reader) Header() ([]string, error) {
	rec, err := r.cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	out := append([]string(nil), rec...)
	if len(out) > 0 {
		out[0] = strings.TrimPrefix(out[0], utf8BOM)
	}
	return out, nil
}

// Stream sends every remaining record to out as a row of width values.
// Empty fields become nil (NULL). Short records are padded with nil; a
// record wider than width is an error naming the physical line it starts on
// (quoted fields may span lines). Stream returns nil at
// end of input and ctx.Err() when ctx is done. It does not close out.
func (r *Reader) Stream(ctx context.Context, width int, out chan<- []any) error {
	for {
		rec, err := r.cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// *csv.ParseError carries its own line and column.
			return fmt.Errorf("read csv: %w", err)
		}
		if len(rec) > width {
			line, _ := r.cr.FieldPos(0)
			return fmt.Errorf("csv line %d: %d fields, header has %d", line, len(rec), width)
		}

		row := make([]any, width)
		for i, v := range rec {
			if v != "" {
				row[i] = v
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- row:
		}
	}
}
