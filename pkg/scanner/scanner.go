// Package scanner implements the scanner registry and the recursive
// scan dispatcher. Scanners register during the init phase, are enabled
// or disabled by command, and are then dispatched over every buffer,
// including the child buffers they themselves produce by decoding.
package scanner

import (
	"context"

	"github.com/sievekit/sieve/pkg/recorder"
)

// Scanner is one feature extractor. Info is called during the init
// phase to learn what the scanner wants; Scan is called once per buffer
// while the set is in the scan phase. Scan must be safe for concurrent
// calls on distinct buffers.
type Scanner interface {
	Info() Info
	Scan(ctx context.Context, p *Params) error
}

// Initializer is implemented by scanners that need setup after their
// recorders exist, such as compiling patterns from options.
type Initializer interface {
	Init(p *Params) error
}

// Finisher is implemented by scanners that hold state to flush at
// shutdown, such as accumulated word lists.
type Finisher interface {
	Shutdown(p *Params) error
}

// Info declares a scanner's identity and requirements.
type Info struct {
	// Name is the unique registry key, also used to enable and
	// disable the scanner and to prefix its options.
	Name        string
	Author      string
	Description string
	Version     string

	// Recorders are created for the scanner before the scan phase.
	Recorders []recorder.Def
	// Histograms are declared on the named recorders before the scan
	// phase.
	Histograms []recorder.HistogramDef

	// MinSize skips buffers smaller than this.
	MinSize int

	Flags Flags
}

// Flags adjust how the dispatcher treats a scanner.
type Flags struct {
	// DefaultDisabled registers the scanner disabled; it runs only
	// when enabled by name.
	DefaultDisabled bool
	// DepthZeroOnly runs the scanner only on top-level buffers, not
	// on decoded children.
	DepthZeroOnly bool
	// ScanDegenerate runs the scanner even on buffers that are a
	// short repeating pattern, which most scanners skip.
	ScanDegenerate bool
	// ScanSeenBefore runs the scanner even on content that already
	// passed through the dispatcher at another address.
	ScanSeenBefore bool
	// NoAll excludes the scanner from "all" enable and disable
	// commands.
	NoAll bool
}
