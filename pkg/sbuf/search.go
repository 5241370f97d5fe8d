package sbuf

import "bytes"

// Find returns the offset of the first occurrence of ch at or after
// from within the page region, or -1.
func (b *Buffer) Find(ch byte, from int) int {
	if from < 0 {
		from = 0
	}
	if from >= b.pageSize {
		return -1
	}
	i := bytes.IndexByte(b.data[from:b.pageSize], ch)
	if i < 0 {
		return -1
	}
	return from + i
}

// FindString returns the offset of the first occurrence of s starting
// at or after from. The match must begin in the page region but may
// extend into the margin, so features straddling the boundary are still
// found. Returns -1 when absent or s is empty.
func (b *Buffer) FindString(s string, from int) int {
	if s == "" {
		return -1
	}
	if from < 0 {
		from = 0
	}
	for from < b.pageSize {
		i := bytes.IndexByte(b.data[from:], s[0])
		if i < 0 {
			return -1
		}
		loc := from + i
		if loc >= b.pageSize {
			return -1
		}
		if loc+len(s) <= len(b.data) && string(b.data[loc:loc+len(s)]) == s {
			return loc
		}
		from = loc + 1
	}
	return -1
}

// Line locates the next text line at or after pos within the page.
// When pos is mid-line the scan first advances to the next line start.
// It returns the line's start offset, its length excluding the trailing
// newline, the position to resume from, and whether a line was found.
func (b *Buffer) Line(pos int) (start, length, next int, ok bool) {
	if pos < 0 {
		pos = 0
	}
	if pos >= b.pageSize {
		return 0, 0, pos, false
	}
	if pos > 0 {
		for pos < b.pageSize && b.At(pos-1) != '\n' {
			pos++
		}
		if pos >= b.pageSize {
			return 0, 0, pos, false
		}
	}
	start = pos
	for pos < b.pageSize && b.data[pos] != '\n' {
		pos++
	}
	return start, pos - start, pos + 1, true
}

// NgramSize returns the period of the shortest repeating pattern that
// fills the entire page, probing periods 1 through max, or 0 when the
// page is not degenerate. A page of NUL bytes or of "abcabcabc…" is
// boring to most scanners; the dispatcher uses this to skip them.
func (b *Buffer) NgramSize(max int) int {
	if b.pageSize == 0 {
		return 0
	}
	for p := 1; p <= max && p*2 <= b.pageSize; p++ {
		periodic := true
		for i := p; i < b.pageSize; i++ {
			if b.data[i] != b.data[i-p] {
				periodic = false
				break
			}
		}
		if periodic {
			return p
		}
	}
	return 0
}

// IsConstant reports whether every byte in [off,off+n) equals ch.
// Ranges extending past the buffer are clipped.
func (b *Buffer) IsConstant(off, n int, ch byte) bool {
	if off < 0 || off >= len(b.data) {
		return true
	}
	if off+n > len(b.data) {
		n = len(b.data) - off
	}
	for i := off; i < off+n; i++ {
		if b.data[i] != ch {
			return false
		}
	}
	return true
}
