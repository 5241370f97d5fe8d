package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherFor(t *testing.T) {
	h, err := HasherFor("sha1")
	require.NoError(t, err)
	assert.Equal(t, "sha1", h.Name)
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", h.Sum(nil))

	h, err = HasherFor("MD5")
	require.NoError(t, err)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", h.Sum(nil))

	h, err = HasherFor("SHA-256")
	require.NoError(t, err)
	assert.Equal(t, "sha256", h.Name)
	assert.Len(t, h.Sum([]byte("x")), 64)

	h, err = HasherFor("blake3")
	require.NoError(t, err)
	assert.Len(t, h.Sum([]byte("x")), 64)
}

func TestHasherForUnknown(t *testing.T) {
	_, err := HasherFor("crc32")
	assert.ErrorIs(t, err, ErrUnknownHash)
}
