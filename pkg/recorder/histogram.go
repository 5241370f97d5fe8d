package recorder

import (
	"regexp"
	"sort"
	"sync"
)

// Histogram accumulates a frequency table over one recorder's feature
// stream, in memory, keyed by the canonical feature text (optionally
// transformed by the definition's pattern and case fold).
type Histogram struct {
	def HistogramDef
	re  *regexp.Regexp

	mu      sync.Mutex
	tallies map[string]uint64
}

// newHistogram compiles the definition's pattern. An invalid pattern is
// a configuration error.
func newHistogram(def HistogramDef) (*Histogram, error) {
	re, err := def.compile()
	if err != nil {
		return nil, err
	}
	return &Histogram{def: def, re: re, tallies: make(map[string]uint64)}, nil
}

// Def returns the histogram's definition.
func (h *Histogram) Def() HistogramDef { return h.def }

// Add applies the pattern and case fold to feature and counts the
// resulting key. Features the pattern does not match are not counted.
func (h *Histogram) Add(feature string) {
	key := feature
	if h.re != nil {
		m := h.re.FindStringSubmatch(feature)
		if m == nil {
			return
		}
		if len(m) > 1 {
			key = m[1]
		} else {
			key = m[0]
		}
	}
	if h.def.Lowercase {
		key = lowerASCII(key)
	}
	h.mu.Lock()
	h.tallies[key]++
	h.mu.Unlock()
}

// Entry is one histogram row.
type Entry struct {
	Feature string
	Count   uint64
}

// Report returns the table sorted by descending count, ties broken by
// feature text.
func (h *Histogram) Report() []Entry {
	h.mu.Lock()
	out := make([]Entry, 0, len(h.tallies))
	for k, v := range h.tallies {
		out = append(out, Entry{Feature: k, Count: v})
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Feature < out[j].Feature
	})
	return out
}

// Len returns the number of distinct keys counted so far.
func (h *Histogram) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tallies)
}

// lowerASCII folds ASCII upper case only. Feature keys are typically
// hex digests, email addresses, or similar ASCII-dominated strings, and
// byte-wise folding keeps escaped sequences intact.
func lowerASCII(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
