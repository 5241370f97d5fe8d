package recorder

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by Set and Recorder configuration paths.
var (
	// ErrRecorderExists is returned by CreateRecorder when the name is
	// already taken.
	ErrRecorderExists = errors.New("feature recorder already exists")
	// ErrNoSuchRecorder is returned when a named recorder has not been
	// created.
	ErrNoSuchRecorder = errors.New("no such feature recorder")
	// ErrLateHistogram is returned when a histogram is declared after
	// the recorder has already written features.
	ErrLateHistogram = errors.New("histogram declared after features were written")
	// ErrHistogramsGenerated is returned when a write arrives after
	// histogram generation has sealed the recorder.
	ErrHistogramsGenerated = errors.New("histograms already generated")
	// ErrUnknownHash is returned for a hash algorithm name outside the
	// registry.
	ErrUnknownHash = errors.New("unknown hash algorithm")
)

// SizeError reports a feature or context that exceeded the recorder's
// configured maximum. It is only raised in pedantic mode; otherwise
// oversized values are truncated.
type SizeError struct {
	Recorder string
	Kind     string // "feature" or "context"
	Len      int
	Max      int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("recorder %s: %s length %d exceeds maximum %d", e.Recorder, e.Kind, e.Len, e.Max)
}

// FormatError reports malformed input caught in pedantic mode, such as
// a raw tab or newline inside a feature, or an empty feature.
type FormatError struct {
	Recorder string
	Reason   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("recorder %s: %s", e.Recorder, e.Reason)
}

// CarveError reports a failure to materialize a carved artifact on
// disk. Carving failures indicate an unusable output directory, so
// callers treat them as fatal.
type CarveError struct {
	Recorder string
	Path     string
	Err      error
}

func (e *CarveError) Error() string {
	return fmt.Sprintf("recorder %s: carve %s: %v", e.Recorder, e.Path, e.Err)
}

func (e *CarveError) Unwrap() error { return e.Err }
