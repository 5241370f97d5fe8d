package recorder

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Escape renders raw feature bytes printable for the tab-separated
// record format. Control bytes, DEL, the record delimiters, and bytes
// that do not form valid UTF-8 become \xNN escapes. Backslashes are
// escaped too unless escapeBackslash is false (XML output keeps them
// literal). The result round-trips through Unescape.
func Escape(p []byte, escapeBackslash bool) string {
	var sb strings.Builder
	sb.Grow(len(p))
	for i := 0; i < len(p); {
		r, size := utf8.DecodeRune(p[i:])
		if r == utf8.RuneError && size == 1 {
			writeHexEscape(&sb, p[i])
			i++
			continue
		}
		if size == 1 {
			b := p[i]
			switch {
			case b < 0x20 || b == 0x7f:
				writeHexEscape(&sb, b)
			case b == '\\' && escapeBackslash:
				sb.WriteString(`\x5C`)
			default:
				sb.WriteByte(b)
			}
			i++
			continue
		}
		sb.Write(p[i : i+size])
		i += size
	}
	return sb.String()
}

const hexdigits = "0123456789ABCDEF"

func writeHexEscape(sb *strings.Builder, b byte) {
	sb.WriteString(`\x`)
	sb.WriteByte(hexdigits[b>>4])
	sb.WriteByte(hexdigits[b&0xf])
}

// Unescape reverses Escape, decoding \xNN hex and \NNN octal escapes
// back to raw bytes. Malformed escapes are left as-is.
func Unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			sb.WriteByte(s[i])
			i++
			continue
		}
		if i+3 < len(s) && (s[i+1] == 'x' || s[i+1] == 'X') {
			hi, ok1 := hexval(s[i+2])
			lo, ok2 := hexval(s[i+3])
			if ok1 && ok2 {
				sb.WriteByte(hi<<4 | lo)
				i += 4
				continue
			}
		}
		if i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			v := (s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0')
			sb.WriteByte(v)
			i += 4
			continue
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}

func hexval(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }

// truncateEscaped shortens s to at most max bytes, backing off so the
// cut never lands inside a multi-byte rune or a \xNN escape produced
// by Escape.
func truncateEscaped(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := 0
	for i < len(s) {
		n := 1
		switch {
		case s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x':
			n = 4
		case s[i] >= utf8.RuneSelf:
			_, n = utf8.DecodeRuneInString(s[i:])
		}
		if i+n > max {
			break
		}
		i += n
	}
	return s[:i]
}

// canonicalUTF8 converts raw feature bytes to the canonical text used
// for histogram keying and stoplist lookup: UTF-16 payloads are decoded
// and anything else has invalid sequences replaced, so the same logical
// feature found in UTF-8 and UTF-16 counts in one histogram bucket.
func canonicalUTF8(p []byte) string {
	if s, ok := decodeUTF16(p); ok {
		return s
	}
	return string(bytes.ToValidUTF8(p, []byte("�")))
}

// decodeUTF16 attempts a UTF-16 interpretation of p when the byte
// pattern suggests one: even length and NULs in every high (or every
// low) byte of the first code units.
func decodeUTF16(p []byte) (string, bool) {
	if len(p) < 4 || len(p)%2 != 0 {
		return "", false
	}
	probe := len(p)
	if probe > 32 {
		probe = 32
	}
	littleNULs, bigNULs := 0, 0
	for i := 0; i+1 < probe; i += 2 {
		if p[i+1] == 0 && p[i] != 0 {
			littleNULs++
		}
		if p[i] == 0 && p[i+1] != 0 {
			bigNULs++
		}
	}
	pairs := probe / 2
	var endian unicode.Endianness
	switch {
	case littleNULs == pairs:
		endian = unicode.LittleEndian
	case bigNULs == pairs:
		endian = unicode.BigEndian
	default:
		return "", false
	}
	dec := unicode.UTF16(endian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(p)
	if err != nil {
		return "", false
	}
	return string(out), true
}
