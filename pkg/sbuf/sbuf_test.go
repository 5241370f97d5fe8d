package sbuf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hello = "Hello world!"

func helloBuffer() *Buffer {
	return NewFromBytes(NewAddress("hello", 0), []byte(hello))
}

func TestBufferBasics(t *testing.T) {
	b := helloBuffer()
	assert.Equal(t, len(hello), b.Size())
	assert.Equal(t, len(hello), b.PageSize())
	assert.Equal(t, hello, b.String())
	assert.Equal(t, 0, b.Depth())
	assert.Equal(t, len(hello)-4, b.Left(4))
	assert.Equal(t, 0, b.Left(1000))
}

func TestBufferIndexedAccessReturnsZeroOutOfRange(t *testing.T) {
	b := helloBuffer()
	assert.Equal(t, byte('H'), b.At(0))
	assert.Equal(t, byte('!'), b.At(len(hello)-1))
	assert.Equal(t, byte(0), b.At(len(hello)))
	assert.Equal(t, byte(0), b.At(1000))
	assert.Equal(t, byte(0), b.At(-1))
}

func TestBufferIntegerReads(t *testing.T) {
	b := NewFromBytes(Address{}, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	v8, err := b.ReadUint8(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), v8)

	v16, err := b.ReadUint16LE(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0201), v16)

	v16be, err := b.ReadUint16BE(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), v16be)

	v32, err := b.ReadUint32(0, LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x04030201), v32)

	v64, err := b.ReadUint64(0, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v64)
}

func TestBufferReadsPastEndFailWithBoundsError(t *testing.T) {
	b := NewFromBytes(Address{}, []byte{0x01, 0x02, 0x03})

	_, err := b.ReadUint32LE(0)
	var be *BoundsError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 4, be.N)
	assert.Equal(t, 3, be.Size)

	_, err = b.ReadUint16BE(2)
	assert.ErrorAs(t, err, &be)

	_, err = b.ReadBytes(1, 3)
	assert.ErrorAs(t, err, &be)

	// Reads that fit exactly succeed.
	_, err = b.ReadBytes(1, 2)
	assert.NoError(t, err)
}

func TestBufferSliceIsZeroCopyAndAddressConsistent(t *testing.T) {
	parent := helloBuffer()
	child := parent.Slice(6, 5)

	assert.Equal(t, parent.Addr().Advance(6), child.Addr())
	assert.Equal(t, "world", child.String())
	assert.Equal(t, 5, child.PageSize())

	// Zero-copy: the child aliases the parent's storage.
	pb, err := parent.ReadBytes(6, 5)
	require.NoError(t, err)
	cb, err := child.ReadBytes(0, 5)
	require.NoError(t, err)
	assert.Same(t, &pb[0], &cb[0])

	require.NoError(t, child.Close())
	require.NoError(t, parent.Close())
}

func TestBufferSliceClipsToParentBounds(t *testing.T) {
	parent := helloBuffer()
	defer parent.Close()

	child := parent.Slice(6, 1000)
	defer child.Close()
	assert.Equal(t, len(hello)-6, child.Size())

	empty := parent.Slice(1000, 10)
	defer empty.Close()
	assert.Equal(t, 0, empty.Size())
}

func TestBufferSliceFromPreservesMargin(t *testing.T) {
	b := New(Address{}, []byte("0123456789ABCDEF"), 10) // page 10, margin 6
	defer b.Close()

	v := b.SliceFrom(4)
	defer v.Close()
	assert.Equal(t, 12, v.Size())
	assert.Equal(t, 6, v.PageSize())

	// A view starting in the margin has no page data.
	m := b.SliceFrom(12)
	defer m.Close()
	assert.Equal(t, 0, m.PageSize())
	assert.Equal(t, 4, m.Size())
}

func TestBufferWindow(t *testing.T) {
	b := NewFromBytes(Address{}, []byte("0123456789ABCDEF"))
	defer b.Close()

	w := b.Window(4, 4, 3)
	defer w.Close()
	assert.Equal(t, 4, w.PageSize())
	assert.Equal(t, 7, w.Size())
	assert.Equal(t, "456789A", w.String())
	assert.Equal(t, uint64(4), w.Addr().Offset)

	// The final window is clipped at the buffer's end.
	last := b.Window(14, 4, 3)
	defer last.Close()
	assert.Equal(t, 2, last.PageSize())
	assert.Equal(t, 2, last.Size())
}

func TestBufferCloseWithLiveChildrenFails(t *testing.T) {
	parent := helloBuffer()
	child := parent.Slice(0, 5)
	grandchild := child.Slice(1, 2) // registers with parent, the topmost owner

	require.Error(t, parent.Close())
	assert.Equal(t, 2, parent.Children())

	require.NoError(t, grandchild.Close())
	require.NoError(t, child.Close())
	require.NoError(t, parent.Close())
}

func TestBufferWithAddress(t *testing.T) {
	parent := helloBuffer()
	alias := parent.WithAddress(NewAddress("0-RAW", 0))

	assert.Equal(t, parent.String(), alias.String())
	assert.Equal(t, 1, alias.Depth())
	require.Error(t, parent.Close())
	require.NoError(t, alias.Close())
	require.NoError(t, parent.Close())
}

func TestBufferNewChildOwnsItsStorage(t *testing.T) {
	parent := helloBuffer()
	child := parent.NewChild(3, "GZIP", []byte("decoded output"))

	assert.Equal(t, "hello-3-GZIP", child.Addr().Path)
	assert.Equal(t, 1, child.Depth())
	assert.Equal(t, 0, parent.Children())

	// The child owns a private copy; the parent may be closed first.
	require.NoError(t, parent.Close())
	assert.Equal(t, "decoded output", child.String())
	require.NoError(t, child.Close())
}

func TestBufferFind(t *testing.T) {
	b := helloBuffer()
	defer b.Close()

	assert.Equal(t, 4, b.Find('o', 0))
	assert.Equal(t, 7, b.Find('o', 5))
	assert.Equal(t, -1, b.Find('z', 0))
	assert.Equal(t, 6, b.FindString("world", 0))
	assert.Equal(t, -1, b.FindString("world", 7))
	assert.Equal(t, -1, b.FindString("", 0))
}

func TestBufferFindStraddlesMargin(t *testing.T) {
	b := New(Address{}, []byte("....needle.."), 6) // "needle" starts in page, ends in margin
	defer b.Close()
	assert.Equal(t, 4, b.FindString("needle", 0))

	// Matches that begin in the margin are not reported.
	m := New(Address{}, []byte("......needle"), 6)
	defer m.Close()
	assert.Equal(t, -1, m.FindString("needle", 0))
}

func TestBufferLine(t *testing.T) {
	b := NewFromBytes(Address{}, []byte("alpha\nbeta\n\ngamma"))
	defer b.Close()

	var lines []string
	pos := 0
	for {
		start, n, next, ok := b.Line(pos)
		if !ok {
			break
		}
		s, err := b.ReadString(start, n)
		require.NoError(t, err)
		lines = append(lines, s)
		pos = next
	}
	assert.Equal(t, []string{"alpha", "beta", "", "gamma"}, lines)
}

func TestBufferNgramSize(t *testing.T) {
	tests := []struct {
		name string
		data string
		max  int
		want int
	}{
		{"constant", "\x00\x00\x00\x00\x00\x00\x00\x00", 10, 1},
		{"two byte period", "abababab", 10, 2},
		{"three byte period", "xyzxyzxyzxyz", 10, 3},
		{"not degenerate", "Hello world!", 10, 0},
		{"period above max", "abcdabcdabcd", 3, 0},
		{"empty", "", 10, 0},
		{"single repetition only", "abcdef", 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewFromBytes(Address{}, []byte(tt.data))
			defer b.Close()
			assert.Equal(t, tt.want, b.NgramSize(tt.max))
		})
	}
}

func TestBufferHashIsStableAndContentKeyed(t *testing.T) {
	b1 := NewFromBytes(NewAddress("", 0), []byte(hello))
	b2 := NewFromBytes(NewAddress("500-GZIP", 9), []byte(hello))
	defer b1.Close()
	defer b2.Close()

	// Same content at different addresses hashes identically.
	assert.Equal(t, b1.Hash(), b2.Hash())
	assert.Equal(t, b1.Hash(), b1.Hash())
	assert.Len(t, b1.Hash(), 32)
}

func TestReadStruct(t *testing.T) {
	type header struct {
		Magic uint16
		Size  uint32
	}
	b := NewFromBytes(Address{}, []byte{0x1f, 0x8b, 0x10, 0x00, 0x00, 0x00})
	defer b.Close()

	h, ok := ReadStruct[header](b, 0, LittleEndian)
	require.True(t, ok)
	assert.Equal(t, uint16(0x8b1f), h.Magic)
	assert.Equal(t, uint32(0x10), h.Size)

	// A structure that does not fit is absent, not an error.
	_, ok = ReadStruct[header](b, 2, LittleEndian)
	assert.False(t, ok)
}

func TestReadUTF16(t *testing.T) {
	le := []byte("H\x00e\x00l\x00l\x00o\x00")
	b := NewFromBytes(Address{}, le)
	defer b.Close()

	s, err := b.ReadUTF16(0, 5, LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, "Hello", s)

	_, err = b.ReadUTF16(0, 6, LittleEndian)
	var be *BoundsError
	assert.ErrorAs(t, err, &be)

	is, little := b.LooksLikeUTF16()
	assert.True(t, is)
	assert.True(t, little)

	plain := helloBuffer()
	defer plain.Close()
	is, _ = plain.LooksLikeUTF16()
	assert.False(t, is)
}

func TestMapFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte(hello), 0o644))

	b, err := MapFile(path)
	require.NoError(t, err)
	assert.Equal(t, len(hello), b.Size())
	assert.Equal(t, b.Size(), b.PageSize())
	for i := 0; i < len(hello); i++ {
		assert.Equal(t, hello[i], b.At(i))
	}
	assert.Equal(t, byte(0), b.At(1000))
	require.NoError(t, b.Close())
}

func TestMapFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	b, err := MapFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Size())
	require.NoError(t, b.Close())
}

func TestBufferWriteTo(t *testing.T) {
	b := helloBuffer()
	defer b.Close()

	var out bytes.Buffer
	n, err := b.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(len(hello)), n)
	assert.Equal(t, hello, out.String())

	out.Reset()
	_, err = b.WriteRange(&out, 6, 5)
	require.NoError(t, err)
	assert.Equal(t, "world", out.String())

	_, err = b.WriteRange(&out, 6, 1000)
	var be *BoundsError
	assert.ErrorAs(t, err, &be)
}
