package recorder

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/sievekit/sieve/internal/safe"
)

// maxStoplistSize caps how large a stoplist file may be (1GB). Context
// stoplists distilled from reference corpora can run to hundreds of
// megabytes.
const maxStoplistSize = 1 << 30

// Stoplist holds known-uninteresting features. Entries are either a
// bare feature, suppressing it everywhere, or a feature and context
// pair separated by a tab, suppressing only that exact sighting.
// Stopped features are diverted to a shadow recorder rather than
// dropped, so an analyst can audit what the stoplist ate.
type Stoplist struct {
	features map[string]struct{}
	pairs    map[string]struct{}
}

// LoadStoplist reads a stoplist file: one entry per line, '#' comments
// and blank lines ignored.
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := safe.ReadFile(path, &safe.ReadFileOptions{MaxSize: maxStoplistSize})
	if err != nil {
		return nil, fmt.Errorf("recorder: open stoplist: %w", err)
	}

	sl := &Stoplist{
		features: make(map[string]struct{}),
		pairs:    make(map[string]struct{}),
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '\t'); i >= 0 {
			sl.pairs[line] = struct{}{}
		} else {
			sl.features[line] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("recorder: read stoplist %s: %w", path, err)
	}
	return sl, nil
}

// Match reports whether the feature, or the exact feature and context
// pair, is stoplisted.
func (sl *Stoplist) Match(feature, context string) bool {
	if sl == nil {
		return false
	}
	if _, ok := sl.features[feature]; ok {
		return true
	}
	_, ok := sl.pairs[feature+"\t"+context]
	return ok
}

// Len returns the number of entries.
func (sl *Stoplist) Len() int {
	if sl == nil {
		return 0
	}
	return len(sl.features) + len(sl.pairs)
}
