package recorder

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Hasher names a digest algorithm and computes hex digests with it.
// Carved artifacts and the forensic disk-image digest use the hasher
// selected at startup; the zero value is unusable.
type Hasher struct {
	Name string
	fn   func([]byte) []byte
}

// Sum returns the lowercase hex digest of p.
func (h Hasher) Sum(p []byte) string {
	return hex.EncodeToString(h.fn(p))
}

// HasherFor looks up a digest algorithm by name. Names are
// case-insensitive and tolerate dashes ("SHA-256"). Unknown names
// return ErrUnknownHash so a bad --hash flag fails at startup rather
// than at the first carve.
func HasherFor(name string) (Hasher, error) {
	key := strings.ReplaceAll(strings.ToLower(name), "-", "")
	switch key {
	case "md5":
		return Hasher{Name: "md5", fn: func(p []byte) []byte {
			d := md5.Sum(p)
			return d[:]
		}}, nil
	case "sha1":
		return Hasher{Name: "sha1", fn: func(p []byte) []byte {
			d := sha1.Sum(p)
			return d[:]
		}}, nil
	case "sha256":
		return Hasher{Name: "sha256", fn: func(p []byte) []byte {
			d := sha256.Sum256(p)
			return d[:]
		}}, nil
	case "blake3":
		return Hasher{Name: "blake3", fn: func(p []byte) []byte {
			d := blake3.Sum256(p)
			return d[:]
		}}, nil
	}
	return Hasher{}, fmt.Errorf("%w: %q", ErrUnknownHash, name)
}
