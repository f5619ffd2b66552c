// Package probe samples the head of a CSV file and reports what the file
// loader would do with it: the detected delimiter, the normalized column
// names and a suggested load entry. It never touches a database.
package probe

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/datasource/file"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/schema"
)

// DefaultMaxBytes is the sample size used when Options.MaxBytes is unset.
const DefaultMaxBytes = 64 << 10

// candidates are the delimiters considered by detection, in tie-break order.
var candidates = []rune{',', ';', '\t', '|'}

// Options control sampling.
type Options struct {
	// MaxBytes to sample from the start of the file.
	MaxBytes int
	// Delimiter forces the delimiter; zero detects it from the header line.
	Delimiter rune
}

// Column pairs a raw header cell with the name it loads as.
type Column struct {
	Header string `json:"header"`
	Name   string `json:"name"`
}

// Suggestion is a load entry ready to paste into the config file.
type Suggestion struct {
	File  string `json:"file"`
	Table string `json:"table"`
}

// Result is the probe report for one file.
type Result struct {
	Path       string     `json:"path"`
	Delimiter  string     `json:"delimiter"`
	Columns    []Column   `json:"columns"`
	SampleRows int        `json:"sample_rows"`
	Misaligned int        `json:"misaligned_rows"`
	Suggestion Suggestion `json:"suggestion"`
	// Problem is set when the file would fail to load, e.g. duplicate
	// columns after normalization.
	Problem string `json:"problem,omitempty"`
}

// Probe samples path and builds its report.
func Probe(ctx context.Context, path string, opt Options) (Result, error) {
	res := Result{Path: path, Suggestion: Suggestion{File: filepath.Base(path), Table: TableName(path)}}

	n := opt.MaxBytes
	if n <= 0 {
		n = DefaultMaxBytes
	}
	data, err := peek(ctx, path, n)
	if err != nil {
		return res, err
	}
	// Cut to the last newline so a partial record does not count as misaligned.
	if i := bytes.LastIndexByte(data, '\n'); i > 0 {
		data = data[:i+1]
	}

	delim := opt.Delimiter
	if delim == 0 {
		delim = DetectDelimiter(data)
	}
	res.Delimiter = string(delim)

	header, rows, misaligned, err := readSample(data, delim)
	if err != nil {
		return res, err
	}
	res.SampleRows = rows
	res.Misaligned = misaligned

	res.Columns = make([]Column, len(header))
	for i, h := range header {
		res.Columns[i] = Column{Header: h, Name: schema.NormalizeName(h)}
	}
	if _, err := schema.FromHeader(header); err != nil {
		res.Problem = err.Error()
	}
	return res, nil
}

func peek(ctx context.Context, path string, n int) ([]byte, error) {
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(rc, int64(n))); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// DetectDelimiter picks the candidate that occurs most often on the first
// line of data, outside quotes. Comma wins ties and empty input.
func DetectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	counts := make(map[rune]int, len(candidates))
	inQuotes := false
	for _, r := range string(line) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// readSample reads the header and counts data rows. Malformed lines and
// rows whose width differs from the header are counted as misaligned
// instead of failing the probe.
func readSample(data []byte, delim rune) (header []string, rows, misaligned int, err error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err = r.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, 0, schema.ErrNoData
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil || len(rec) != len(header) {
			misaligned++
			continue
		}
		rows++
	}
	return header, rows, misaligned, nil
}

// TableName derives a table name from a file name: the base name without
// extension, normalized, with the dataset's "olist_" prefix and "_dataset"
// suffix removed.
func TableName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := schema.NormalizeName(base)
	name = strings.TrimPrefix(name, "olist_")
	name = strings.TrimSuffix(name, "_dataset")
	return name
}
