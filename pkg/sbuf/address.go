// Package sbuf provides the bounds-checked, ownership-tracked search
// buffer used throughout the engine, together with the forensic address
// that records how each buffer was reached.
//
// A buffer may come from a disk image, a mapped file, or the output of
// decoding another buffer. The first byte's position is tracked in the
// buffer's Address, so every feature found inside it can be traced back
// to the original evidence through any number of nested decodings.
package sbuf

import (
	"strconv"
	"strings"
)

// Address identifies the position of a buffer's first byte within the
// original evidence. Path is a "-"-separated alternation of decimal
// offsets and decoder labels, e.g. "10000-GZIP-300-ZIP": byte 10000 of
// the image began a GZIP stream, byte 300 of its decoded output began a
// ZIP entry. Offset is the byte position within the region the path
// describes.
//
// Address is an immutable value type. Two addresses are equal iff both
// path and offset are equal.
type Address struct {
	Path   string
	Offset uint64
}

// NewAddress returns an address with the given provenance path and offset.
func NewAddress(path string, offset uint64) Address {
	return Address{Path: path, Offset: offset}
}

// Advance returns an address n bytes further into the same region.
func (a Address) Advance(n uint64) Address {
	return Address{Path: a.Path, Offset: a.Offset + n}
}

// WithPath returns the child address produced by decoding the region at
// the current offset with the named decoder. The current offset becomes
// part of the path and the new offset starts at zero.
func (a Address) WithPath(label string) Address {
	var b strings.Builder
	if a.Path != "" {
		b.WriteString(a.Path)
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatUint(a.Offset, 10))
	b.WriteByte('-')
	b.WriteString(label)
	return Address{Path: b.String()}
}

// Depth returns the number of decoder labels in the path: zero for a
// buffer read directly from the evidence, one per nested decoding.
func (a Address) Depth() int {
	n := 0
	for _, seg := range strings.Split(a.Path, "-") {
		if isLabel(seg) {
			n++
		}
	}
	return n
}

// IsRecursive reports whether the address passed through at least one
// decoder.
func (a Address) IsRecursive() bool { return a.Depth() > 0 }

// LastSegment returns the terminal decoder label of the path, or "" for
// a non-recursive address. It is the tag consulted by carve-mode
// eligibility checks.
func (a Address) LastSegment() string {
	last := ""
	for _, seg := range strings.Split(a.Path, "-") {
		if isLabel(seg) {
			last = seg
		}
	}
	return last
}

// AlphaPart returns all decoder labels of the path joined by "/", e.g.
// "GZIP/ZIP" for "10000-GZIP-300-ZIP".
func (a Address) AlphaPart() string {
	var labels []string
	for _, seg := range strings.Split(a.Path, "-") {
		if isLabel(seg) {
			labels = append(labels, seg)
		}
	}
	return strings.Join(labels, "/")
}

// FirstPart returns the leading path segment, or "" when the path is
// empty.
func (a Address) FirstPart() string {
	i := strings.IndexByte(a.Path, '-')
	if i < 0 {
		return a.Path
	}
	return a.Path[:i]
}

// ImageOffset returns the byte offset within the original image: the
// leading numeric path segment for a recursive address, otherwise the
// offset itself.
func (a Address) ImageOffset() uint64 {
	if a.Path == "" {
		return a.Offset
	}
	v, err := strconv.ParseUint(a.FirstPart(), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// String renders the address in the textual form written to feature
// records: "path-offset", or the bare offset when the path is empty.
func (a Address) String() string {
	if a.Path == "" {
		return strconv.FormatUint(a.Offset, 10)
	}
	return a.Path + "-" + strconv.FormatUint(a.Offset, 10)
}

// Compare orders addresses by path, then offset.
func (a Address) Compare(b Address) int {
	if a.Path != b.Path {
		if a.Path < b.Path {
			return -1
		}
		return 1
	}
	switch {
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	}
	return 0
}

// isLabel reports whether a path segment is a decoder label rather than
// a decimal offset. Empty segments count as neither.
func isLabel(seg string) bool {
	if seg == "" {
		return false
	}
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return true
		}
	}
	return false
}
