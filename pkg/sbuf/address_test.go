package sbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressParts(t *testing.T) {
	a := NewAddress("10000-GZIP-200-ZIP", 300)

	assert.Equal(t, "10000-GZIP-200-ZIP", a.Path)
	assert.Equal(t, uint64(300), a.Offset)
	assert.True(t, a.IsRecursive())
	assert.Equal(t, "10000", a.FirstPart())
	assert.Equal(t, "ZIP", a.LastSegment())
	assert.Equal(t, "GZIP/ZIP", a.AlphaPart())
	assert.Equal(t, uint64(10000), a.ImageOffset())
	assert.Equal(t, 2, a.Depth())
	assert.Equal(t, "10000-GZIP-200-ZIP-300", a.String())
}

func TestAddressAdvanceAndEquality(t *testing.T) {
	a := NewAddress("10000-GZIP-200-ZIP", 300)
	b := NewAddress("10000-GZIP-200-ZIP", 310)

	assert.Equal(t, b, a.Advance(10))
	assert.NotEqual(t, a, b)
	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Zero(t, b.Compare(NewAddress("10000-GZIP-200-ZIP", 310)))
}

func TestAddressWithPath(t *testing.T) {
	root := Address{}
	assert.Equal(t, "0", root.String())
	assert.Equal(t, 0, root.Depth())
	assert.Equal(t, "", root.LastSegment())
	assert.Equal(t, uint64(42), root.Advance(42).ImageOffset())

	child := root.Advance(10000).WithPath("GZIP")
	require.Equal(t, "10000-GZIP", child.Path)
	require.Equal(t, uint64(0), child.Offset)
	assert.Equal(t, 1, child.Depth())

	grandchild := child.Advance(200).WithPath("ZIP")
	assert.Equal(t, "10000-GZIP-200-ZIP", grandchild.Path)
	assert.Equal(t, 2, grandchild.Depth())
	assert.Equal(t, "GZIP/ZIP", grandchild.AlphaPart())
}
