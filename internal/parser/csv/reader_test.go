package csv

import (
	"context"
	stdcsv "encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, r *Reader, width int) ([][]any, error) {
	t.Helper()
	out := make(chan []any, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Stream(context.Background(), width, out)
		close(out)
	}()
	var rows [][]any
	for row := range out {
		rows = append(rows, row)
	}
	return rows, <-errCh
}

func TestHeader_StripsBOMAndKeepsSpacing(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("\uFEFFOrder ID, Customer Name\n1,Ana\n"), Options{})
	h, err := r.Header()
	require.NoError(t, err)
	assert.Equal(t, []string{"Order ID", " Customer Name"}, h)
}

func TestHeader_Empty(t *testing.T) {
	t.Parallel()

	_, err := NewReader(strings.NewReader(""), Options{}).Header()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestStream_NullsPaddingAndOrder(t *testing.T) {
	t.Parallel()

	in := "a,b,c\n1,,x\n2,y\n\"3\",\"q,uoted\",z\n"
	r := NewReader(strings.NewReader(in), Options{})
	h, err := r.Header()
	require.NoError(t, err)

	rows, err := drain(t, r, len(h))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"1", nil, "x"}, rows[0])
	assert.Equal(t, []any{"2", "y", nil}, rows[1])
	assert.Equal(t, []any{"3", "q,uoted", "z"}, rows[2])
}

func TestStream_TooWide(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("a,b\n1,2\n1,2,3\n"), Options{})
	h, err := r.Header()
	require.NoError(t, err)

	rows, err := drain(t, r, len(h))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Len(t, rows, 1)
}

func TestStream_TooWideAfterMultilineField(t *testing.T) {
	t.Parallel()

	// The quoted field spans lines 2-3, so the wide record starts on line 4.
	r := NewReader(strings.NewReader("a,b\n\"x\ny\",1\n1,2,3\n"), Options{})
	h, err := r.Header()
	require.NoError(t, err)

	rows, err := drain(t, r, len(h))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv line 4:")
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"x\ny", "1"}, rows[0])
}

func TestStream_ParseErrorKeepsPosition(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("a,b\n1,2\n3,\"bad\"x\n"), Options{})
	h, err := r.Header()
	require.NoError(t, err)

	_, err = drain(t, r, len(h))
	var pe *stdcsv.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Line)
}

func TestStream_Semicolon(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("a;b\n1;2\n"), Options{Comma: ';'})
	h, err := r.Header()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, h)

	rows, err := drain(t, r, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"1", "2"}}, rows)
}

func TestStream_Cancelled(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("a\n1\n2\n"), Options{})
	_, err := r.Header()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = r.Stream(ctx, 1, make(chan []any)) // unbuffered, never read
	assert.True(t, errors.Is(err, context.Canceled))
}
