package sbuf

import (
	"golang.org/x/text/encoding/unicode"
)

// ReadUTF16 decodes n UTF-16 code units at off in the given byte order
// and returns the result as UTF-8. Reads that would run past the buffer
// return a BoundsError.
func (b *Buffer) ReadUTF16(off, n int, bo ByteOrder) (string, error) {
	p, err := b.ReadBytes(off, n*2)
	if err != nil {
		return "", err
	}
	endian := unicode.LittleEndian
	if bo == BigEndian {
		endian = unicode.BigEndian
	}
	dec := unicode.UTF16(endian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(p)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// LooksLikeUTF16 applies a cheap NUL-alternation heuristic to the page:
// ASCII text stored as UTF-16 has a zero byte in every other position.
// It reports whether the page resembles UTF-16 and, if so, whether it
// is little-endian.
func (b *Buffer) LooksLikeUTF16() (is bool, littleEndian bool) {
	if b.pageSize < 4 || b.pageSize%2 != 0 {
		return false, false
	}
	evenNul, oddNul := 0, 0
	for i := 0; i < b.pageSize; i++ {
		if b.data[i] == 0 {
			if i%2 == 0 {
				evenNul++
			} else {
				oddNul++
			}
		}
	}
	half := b.pageSize / 2
	switch {
	case oddNul > half*3/4 && evenNul == 0:
		return true, true
	case evenNul > half*3/4 && oddNul == 0:
		return true, false
	}
	return false, false
}
