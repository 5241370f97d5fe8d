// Package recorder implements the feature-recording pipeline: named
// feature recorders that validate, escape, deduplicate, histogram, and
// persist (address, feature, context) triples, including
// content-addressed file carving. Persistence goes through a sink
// interface with a tab-separated-file implementation and a DuckDB
// implementation behind the same contract.
package recorder

import (
	"fmt"
	"regexp"
)

// CarveMode controls whether a recorder writes carved artifacts to
// disk.
type CarveMode int

const (
	// CarveNone never carves.
	CarveNone CarveMode = iota
	// CarveEncoded carves only data whose provenance path passed
	// through a decoder other than the recorder's excluded encoding.
	// This avoids carving bare container files that were not
	// themselves found inside another encoded container.
	CarveEncoded
	// CarveAll always carves.
	CarveAll
)

// Flags adjust a recorder's output formatting.
type Flags struct {
	// NoQuote writes feature and context bytes raw, with no escaping.
	NoQuote bool
	// XML marks the output as XML: invalid sequences are still
	// escaped but backslashes are left alone.
	XML bool
	// NoContext suppresses context recording.
	NoContext bool
	// NoStoplist exempts this recorder from stoplist checks. The
	// stoplist recorder itself sets it, or writes would recurse.
	NoStoplist bool
}

// Default feature and context limits, applied when a Def leaves them
// zero.
const (
	DefaultMaxFeatureSize = 64 * 1024
	DefaultMaxContextSize = 64 * 1024
	DefaultContextWindow  = 16
)

// Def describes one named feature recorder. A Def is owned by exactly
// one recorder and is immutable after the recorder is created.
type Def struct {
	Name               string
	MaxFeatureSize     int
	MaxContextSize     int
	Flags              Flags
	CarveMode          CarveMode
	DoNotCarveEncoding string
}

// normalized returns the definition with zero limits replaced by the
// defaults.
func (d Def) normalized() Def {
	if d.MaxFeatureSize <= 0 {
		d.MaxFeatureSize = DefaultMaxFeatureSize
	}
	if d.MaxContextSize <= 0 {
		d.MaxContextSize = DefaultMaxContextSize
	}
	return d
}

// HistogramDef declares a frequency table over one recorder's feature
// stream. Pattern, when non-empty, is a regular expression whose first
// capture group (or whole match) keys the table; features that do not
// match are not counted. Suffix names the output bucket
// ({recorder}_{suffix}).
type HistogramDef struct {
	Feature   string // source recorder name
	Pattern   string
	Suffix    string
	Lowercase bool
}

// compile returns the compiled extraction pattern, or nil when the
// whole feature is the key.
func (d HistogramDef) compile() (*regexp.Regexp, error) {
	if d.Pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(d.Pattern)
	if err != nil {
		return nil, fmt.Errorf("recorder: histogram %s_%s: bad pattern %q: %w", d.Feature, d.Suffix, d.Pattern, err)
	}
	return re, nil
}
