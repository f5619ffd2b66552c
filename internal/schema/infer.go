// Package schema derives destination column sets from fetched rows or from a
// flat file's header.
//
// Inference is deliberately shallow: every column is TEXT. Only the names
// carry information, and those are normalised the same way on both the table
// copy and the file load paths.
package schema

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/records"
)

// TypeText is the logical type assigned to every inferred column.
const TypeText = "text"

const utf8BOM = "\uFEFF"

var (
	// ErrNoData signals an empty row-set or header. It is not a failure:
	// callers skip table creation for the unit.
	ErrNoData = errors.New("schema: no data")

	// ErrDuplicateColumn is returned when two input names normalise to the
	// same column name.
	ErrDuplicateColumn = errors.New("schema: duplicate column")
)

// Column is one inferred destination column.
type Column struct {
	Name string
	Type string
}

// Inferred is the ordered column set of one unit.
type Inferred struct {
	Columns []Column
}

// Names returns the column names in order.
func (s Inferred) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Len returns the number of columns.
func (s Inferred) Len() int { return len(s.Columns) }

// FromRecords infers the schema of a fetched row-set from its field names.
// An empty set yields ErrNoData.
func FromRecords(set records.Set) (Inferred, error) {
	if set.Empty() {
		return Inferred{}, ErrNoData
	}
	return fromNames(set.Columns)
}

// FromHeader infers the schema of a flat file from its header row. A UTF-8
// BOM on the first cell is dropped.
func FromHeader(header []string) (Inferred, error) {
	if len(header) == 0 {
		return Inferred{}, ErrNoData
	}
	h := append([]string(nil), header...)
	h[0] = strings.TrimPrefix(h[0], utf8BOM)
	return fromNames(h)
}

func fromNames(names []string) (Inferred, error) {
	if len(names) == 0 {
		return Inferred{}, ErrNoData
	}
	cols := make([]Column, len(names))
	seen := make(map[string]int, len(names))
	for i, raw := range names {
		name := NormalizeName(raw)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if j, dup := seen[name]; dup {
			return Inferred{}, fmt.Errorf("%w: %q (positions %d and %d)", ErrDuplicateColumn, name, j+1, i+1)
		}
		seen[name] = i
		cols[i] = Column{Name: name, Type: TypeText}
	}
	return Inferred{Columns: cols}, nil
}

// NormalizeName lower-cases a field name and replaces interior whitespace
// with underscores. Leading and trailing whitespace is dropped and runs of
// whitespace collapse to a single underscore:
//
//	"Order ID"         => "order_id"
//	" Customer  Name " => "customer_name"
func NormalizeName(s string) string {
	s = norm.NFC.String(s)
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.ToLower(strings.Join(fields, "_"))
}
