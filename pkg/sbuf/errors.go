package sbuf

import "fmt"

// BoundsError reports an attempted read outside a buffer's declared
// extent. It is always recoverable: the buffer is unchanged and the
// caller may probe elsewhere.
type BoundsError struct {
	Off  int // requested offset
	N    int // requested length
	Size int // buffer size
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("sbuf: read of %d bytes at offset %d past end of %d-byte buffer", e.N, e.Off, e.Size)
}

// check returns a BoundsError unless n bytes at off lie entirely within
// the buffer.
func (b *Buffer) check(off, n int) error {
	if off < 0 || n < 0 || off+n > len(b.data) {
		return &BoundsError{Off: off, N: n, Size: len(b.data)}
	}
	return nil
}
