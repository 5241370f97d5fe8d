package recorder

import "github.com/sievekit/sieve/pkg/sbuf"

// Record is one persisted feature sighting. Feature and Context are
// already escaped for the record format; FeatureUTF8 is the canonical
// decoded text used for grouping.
type Record struct {
	Addr        sbuf.Address
	Feature     string
	FeatureUTF8 string
	Context     string
}

// Sink persists feature records and histogram reports. A Set owns
// exactly one sink, chosen at construction; recorders never know which
// backend they write to. Implementations must be safe for concurrent
// WriteRecord calls from multiple scan goroutines.
type Sink interface {
	// WriteRecord appends one feature record to the named recorder's
	// output.
	WriteRecord(recorder string, rec Record) error
	// WriteHistogram persists one histogram report for the named
	// recorder. The entries are pre-sorted; a backend that can group
	// natively may ignore them for whole-feature histograms.
	WriteHistogram(recorder string, def HistogramDef, entries []Entry) error
	// Shutdown flushes and releases the backend. No writes may follow.
	Shutdown() error
}
