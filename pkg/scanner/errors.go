package scanner

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateScanner is returned when two scanners register the
	// same name.
	ErrDuplicateScanner = errors.New("scanner name already registered")
	// ErrNoSuchScanner is returned by commands naming an unknown
	// scanner.
	ErrNoSuchScanner = errors.New("no such scanner")
)

// Phase is the scanner set's lifecycle stage. Transitions only move
// forward: init, enabled, scan, shutdown.
type Phase int32

const (
	// PhaseInit accepts scanner registrations.
	PhaseInit Phase = iota
	// PhaseEnabled has the final enabled set; recorders can be
	// created.
	PhaseEnabled
	// PhaseScan dispatches buffers.
	PhaseScan
	// PhaseShutdown has flushed scanners and closed the recorders.
	PhaseShutdown
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseEnabled:
		return "enabled"
	case PhaseScan:
		return "scan"
	case PhaseShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// PhaseError reports an operation attempted in the wrong lifecycle
// stage, such as registering a scanner after the scan phase began.
type PhaseError struct {
	Op   string
	Have Phase
	Want Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("scanner: %s requires phase %s, set is in %s", e.Op, e.Want, e.Have)
}
