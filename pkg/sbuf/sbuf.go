package sbuf

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

// Buffer is an immutable, bounds-known view of bytes. The region
// [0,PageSize) is the page: canonical data that belongs to this buffer
// and may produce features. The region [PageSize,Size) is the margin:
// lookahead context for features that straddle the page boundary; it is
// never itself reported, because it becomes page data on the next
// overlapping read.
//
// A Buffer either owns its backing storage (mapped file, private
// allocation, literal) or borrows it from exactly one owning ancestor.
// Borrowers register with the topmost owner; the owner's storage cannot
// be released while registrations are live. Buffers must therefore be
// closed children-first, and Close fails loudly when the invariant is
// violated. Forensic images are large and recursive decoding nests
// deeply, so views never copy; the registration is what makes the
// zero-copy slicing safe.
type Buffer struct {
	addr     Address
	data     []byte
	pageSize int

	// parent is the topmost owning ancestor for a borrowed view, nil
	// for an owning buffer.
	parent   *Buffer
	children atomic.Int32
	release  func() error // owning buffers only: unmap etc.
	closed   atomic.Bool

	hashOnce sync.Once
	hash     string
}

// New returns an owning buffer over data. The buffer takes ownership of
// the slice; callers must not retain or mutate it. pageSize is clamped
// to len(data).
func New(addr Address, data []byte, pageSize int) *Buffer {
	if pageSize > len(data) {
		pageSize = len(data)
	}
	return &Buffer{addr: addr, data: data, pageSize: pageSize}
}

// NewFromBytes returns an owning buffer holding a private copy of data,
// with the page spanning the whole buffer.
func NewFromBytes(addr Address, data []byte) *Buffer {
	cp := make([]byte, len(data))
	copy(cp, data)
	return New(addr, cp, len(cp))
}

// NewLiteral returns a buffer over the bytes of s at offset 0 with an
// empty path. Used in tests and debugging.
func NewLiteral(s string) *Buffer {
	return NewFromBytes(Address{}, []byte(s))
}

// Addr returns the forensic address of byte 0.
func (b *Buffer) Addr() Address { return b.addr }

// Size returns the total number of bytes, page plus margin.
func (b *Buffer) Size() int { return len(b.data) }

// PageSize returns the number of canonical page bytes.
func (b *Buffer) PageSize() int { return b.pageSize }

// Depth returns the recursion depth derived from the address.
func (b *Buffer) Depth() int { return b.addr.Depth() }

// Left returns how many bytes remain at offset n.
func (b *Buffer) Left(n int) int {
	if n >= len(b.data) {
		return 0
	}
	return len(b.data) - n
}

// owner returns the buffer whose storage backs this view.
func (b *Buffer) owner() *Buffer {
	if b.parent != nil {
		return b.parent
	}
	return b
}

// Children returns the number of live views borrowing this buffer's
// storage. Only meaningful on owning buffers.
func (b *Buffer) Children() int { return int(b.owner().children.Load()) }

// Slice returns a zero-copy view of n bytes starting at off, clipped to
// the buffer's bounds, with the address advanced by off. The entire
// slice is page data. The view borrows this buffer's storage and must
// be closed before it.
func (b *Buffer) Slice(off, n int) *Buffer {
	if off > len(b.data) {
		off = len(b.data)
	}
	if off+n > len(b.data) {
		n = len(b.data) - off
	}
	own := b.owner()
	own.children.Add(1)
	return &Buffer{
		addr:     b.addr.Advance(uint64(off)),
		data:     b.data[off : off+n],
		pageSize: n,
		parent:   own,
	}
}

// SliceFrom returns a zero-copy view starting at off and running to the
// end of the buffer, preserving the page/margin split. Offsets at or
// past the page boundary yield a view that is all margin.
func (b *Buffer) SliceFrom(off int) *Buffer {
	if off > len(b.data) {
		off = len(b.data)
	}
	page := b.pageSize - off
	if page < 0 {
		page = 0
	}
	own := b.owner()
	own.children.Add(1)
	return &Buffer{
		addr:     b.addr.Advance(uint64(off)),
		data:     b.data[off:],
		pageSize: page,
		parent:   own,
	}
}

// Window returns a zero-copy view of pageSize bytes at off plus up to
// margin lookahead bytes, with the page/margin split set accordingly.
// The image reader uses it to produce overlapping scan pages. Both the
// page and the margin are clipped to the buffer's end.
func (b *Buffer) Window(off, pageSize, margin int) *Buffer {
	if off > len(b.data) {
		off = len(b.data)
	}
	end := off + pageSize + margin
	if end > len(b.data) {
		end = len(b.data)
	}
	page := pageSize
	if off+page > len(b.data) {
		page = len(b.data) - off
	}
	own := b.owner()
	own.children.Add(1)
	return &Buffer{
		addr:     b.addr.Advance(uint64(off)),
		data:     b.data[off:end],
		pageSize: page,
		parent:   own,
	}
}

// WithAddress returns a view of the same bytes under a different
// provenance path. Scanners use it to assert that a region is an
// instance of some format reached by another route.
func (b *Buffer) WithAddress(addr Address) *Buffer {
	own := b.owner()
	own.children.Add(1)
	return &Buffer{
		addr:     addr,
		data:     b.data,
		pageSize: b.pageSize,
		parent:   own,
	}
}

// NewChild returns an owning buffer over decoded output derived from
// the region at off, addressed under the decoder label. The child owns
// its own storage (the decoder's output), so it does not borrow from
// this buffer and may outlive it.
func (b *Buffer) NewChild(off int, label string, decoded []byte) *Buffer {
	return New(b.addr.Advance(uint64(off)).WithPath(label), decoded, len(decoded))
}

// Close releases the buffer. Closing a buffer whose storage still has
// live borrowed views is an error; views must be closed before their
// owner. Close is idempotent per buffer.
func (b *Buffer) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	if b.parent != nil {
		if n := b.parent.children.Add(-1); n < 0 {
			return fmt.Errorf("sbuf %s: child registration underflow", b.addr)
		}
		return nil
	}
	if n := b.children.Load(); n != 0 {
		b.closed.Store(false)
		return fmt.Errorf("sbuf %s: close with %d live child buffers", b.addr, n)
	}
	if b.release != nil {
		return b.release()
	}
	return nil
}

// At returns the byte at i, or 0 when i is out of range. Hot scanning
// loops routinely run off the end of the buffer; they get zeros rather
// than errors.
func (b *Buffer) At(i int) byte {
	if i < 0 || i >= len(b.data) {
		return 0
	}
	return b.data[i]
}

// ByteOrder selects the interpretation of multi-byte integer reads.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// ReadUint8 returns the byte at off.
func (b *Buffer) ReadUint8(off int) (uint8, error) {
	if err := b.check(off, 1); err != nil {
		return 0, err
	}
	return b.data[off], nil
}

// ReadUint16LE returns the little-endian uint16 at off.
func (b *Buffer) ReadUint16LE(off int) (uint16, error) {
	if err := b.check(off, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b.data[off:]), nil
}

// ReadUint32LE returns the little-endian uint32 at off.
func (b *Buffer) ReadUint32LE(off int) (uint32, error) {
	if err := b.check(off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b.data[off:]), nil
}

// ReadUint64LE returns the little-endian uint64 at off.
func (b *Buffer) ReadUint64LE(off int) (uint64, error) {
	if err := b.check(off, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b.data[off:]), nil
}

// ReadUint16BE returns the big-endian uint16 at off.
func (b *Buffer) ReadUint16BE(off int) (uint16, error) {
	if err := b.check(off, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b.data[off:]), nil
}

// ReadUint32BE returns the big-endian uint32 at off.
func (b *Buffer) ReadUint32BE(off int) (uint32, error) {
	if err := b.check(off, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b.data[off:]), nil
}

// ReadUint64BE returns the big-endian uint64 at off.
func (b *Buffer) ReadUint64BE(off int) (uint64, error) {
	if err := b.check(off, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b.data[off:]), nil
}

// ReadUint16 returns the uint16 at off in the given byte order.
func (b *Buffer) ReadUint16(off int, bo ByteOrder) (uint16, error) {
	if bo == BigEndian {
		return b.ReadUint16BE(off)
	}
	return b.ReadUint16LE(off)
}

// ReadUint32 returns the uint32 at off in the given byte order.
func (b *Buffer) ReadUint32(off int, bo ByteOrder) (uint32, error) {
	if bo == BigEndian {
		return b.ReadUint32BE(off)
	}
	return b.ReadUint32LE(off)
}

// ReadUint64 returns the uint64 at off in the given byte order.
func (b *Buffer) ReadUint64(off int, bo ByteOrder) (uint64, error) {
	if bo == BigEndian {
		return b.ReadUint64BE(off)
	}
	return b.ReadUint64LE(off)
}

// ReadBytes returns n bytes at off without copying. The returned slice
// aliases the buffer's storage and must be treated as read-only.
func (b *Buffer) ReadBytes(off, n int) ([]byte, error) {
	if err := b.check(off, n); err != nil {
		return nil, err
	}
	return b.data[off : off+n], nil
}

// ReadString returns n bytes at off as a string.
func (b *Buffer) ReadString(off, n int) (string, error) {
	p, err := b.ReadBytes(off, n)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// Equal reports whether the bytes at off match p. A comparison that
// would run past the buffer returns a BoundsError.
func (b *Buffer) Equal(off int, p []byte) (bool, error) {
	q, err := b.ReadBytes(off, len(p))
	if err != nil {
		return false, err
	}
	return string(q) == string(p), nil
}

// String returns the entire buffer as a string. Debugging aid.
func (b *Buffer) String() string { return string(b.data) }

// Hash returns the lazily computed xxh3-128 hex digest of the full
// buffer. It keys the dispatcher's duplicate-content set; it is not a
// forensic digest.
func (b *Buffer) Hash() string {
	b.hashOnce.Do(func() {
		s := xxh3.Hash128(b.data)
		var p [16]byte
		binary.BigEndian.PutUint64(p[:8], s.Hi)
		binary.BigEndian.PutUint64(p[8:], s.Lo)
		b.hash = hex.EncodeToString(p[:])
	})
	return b.hash
}

// WriteTo writes the buffer's raw bytes to w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.data)
	return int64(n), err
}

// WriteRange writes n raw bytes starting at off to w.
func (b *Buffer) WriteRange(w io.Writer, off, n int) (int, error) {
	if err := b.check(off, n); err != nil {
		return 0, err
	}
	return w.Write(b.data[off : off+n])
}
