package records

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

// Checksum returns an order-sensitive xxh3 digest of columns and rows.
//
// Two copies of the same table content hash to the same value, which makes a
// rerun's result directly comparable with the previous one. Values are hashed
// by their text form; NULL is distinguished from the empty string.
func Checksum(columns []string, rows [][]any) uint64 {
	h := xxh3.New()
	var lenBuf [8]byte

	writeField := func(s string, null bool) {
		if null {
			_, _ = h.Write([]byte{0})
			return
		}
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
		_, _ = h.Write([]byte{1})
		_, _ = h.Write(lenBuf[:])
		_, _ = h.WriteString(s)
	}

	for _, c := range columns {
		writeField(c, false)
	}
	for _, row := range rows {
		_, _ = h.Write([]byte{'\n'})
		for _, v := range row {
			switch t := TextValue(v).(type) {
			case nil:
				writeField("", true)
			case string:
				writeField(t, false)
			default:
				writeField(fmt.Sprint(t), false)
			}
		}
	}
	return h.Sum64()
}
