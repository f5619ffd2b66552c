// Package records defines the row model shared by every stage of the loader.
//
// Driver-specific row representations (pgx rows, *sql.Rows, CSV records) are
// converted into a Set as soon as they are read; nothing downstream of a
// repository ever sees a driver cursor.
package records

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// timeLayout mirrors the Postgres text output of timestamptz values.
const timeLayout = "2006-01-02 15:04:05.999999Z07:00"

// Record is a single row addressed by column name.
type Record map[string]any

// Set is an ordered row-set. Every row in Rows is aligned with Columns.
type Set struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows in the set.
func (s Set) Len() int { return len(s.Rows) }

// Empty reports whether the set holds no rows.
func (s Set) Empty() bool { return len(s.Rows) == 0 }

// Record returns row i as a column-name keyed map.
func (s Set) Record(i int) Record {
	row := s.Rows[i]
	rec := make(Record, len(s.Columns))
	for j, c := range s.Columns {
		if j < len(row) {
			rec[c] = row[j]
		}
	}
	return rec
}

// Append adds a row. The row length must match the column count.
func (s *Set) Append(row []any) error {
	if len(row) != len(s.Columns) {
		return fmt.Errorf("records: row has %d values, want %d", len(row), len(s.Columns))
	}
	s.Rows = append(s.Rows, row)
	return nil
}

// FromRecords builds a Set from map rows using the given column order.
// Missing keys become nil.
func FromRecords(columns []string, recs []Record) Set {
	s := Set{Columns: append([]string(nil), columns...), Rows: make([][]any, 0, len(recs))}
	for _, r := range recs {
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = r[c]
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

// TextValue converts a value to the representation stored in TEXT columns.
// nil stays nil so that NULLs survive the copy. Values follow the Postgres
// text output where one exists:
//
//   - []byte holding UTF-8 is taken as text, other bytes as "\x<hex>"
//   - [16]byte (pgx uuid) is the canonical UUID form
//   - maps, slices and arrays (pgx json/jsonb and array columns) are JSON
func TextValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case []byte:
		if utf8.Valid(t) {
			return string(t)
		}
		return `\x` + hex.EncodeToString(t)
	case [16]byte:
		return uuid.UUID(t).String()
	case time.Time:
		return t.Format(timeLayout)
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return fmt.Sprint(t)
		}
		if dv == nil {
			return nil
		}
		if _, again := dv.(driver.Valuer); again {
			return fmt.Sprint(dv)
		}
		return TextValue(dv)
	case fmt.Stringer:
		return t.String()
	default:
		switch reflect.ValueOf(t).Kind() {
		case reflect.Map, reflect.Slice, reflect.Array:
			if b, err := json.Marshal(t); err == nil {
				return string(b)
			}
		}
		return fmt.Sprint(t)
	}
}

// TextRow applies TextValue to every value of row in place and returns it.
func TextRow(row []any) []any {
	for i, v := range row {
		row[i] = TextValue(v)
	}
	return row
}
