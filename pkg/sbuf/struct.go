package sbuf

import (
	"bytes"
	"encoding/binary"
)

// ReadStruct decodes a fixed-size structure at off, returning ok=false
// when the structure does not fit entirely within the buffer or T is
// not a fixed-size type. Callers routinely probe for tentative
// structures, so a miss is an absent result, not an error.
func ReadStruct[T any](b *Buffer, off int, bo ByteOrder) (T, bool) {
	var v T
	n := binary.Size(v)
	if n < 0 {
		return v, false
	}
	p, err := b.ReadBytes(off, n)
	if err != nil {
		return v, false
	}
	order := binary.ByteOrder(binary.LittleEndian)
	if bo == BigEndian {
		order = binary.BigEndian
	}
	if err := binary.Read(bytes.NewReader(p), order, &v); err != nil {
		return v, false
	}
	return v, true
}
