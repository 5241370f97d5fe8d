package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sievekit/sieve/internal/atomics"
	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/sbuf"
)

// Alert features recorded by the dispatcher itself.
const (
	alertMaxDepth  = "max depth reached"
	alertDuplicate = "duplicate data suppressed"
)

// Set owns the registered scanners and dispatches buffers to them. Its
// lifecycle moves strictly forward: scanners register in the init
// phase, commands fix the enabled set, Start creates the recorders,
// and then buffers flow until Shutdown.
type Set struct {
	cfg       Config
	log       zerolog.Logger
	recorders *recorder.Set

	phase atomic.Int32

	mu      sync.Mutex
	entries []*entry
	byName  map[string]*entry

	timingNS     *atomics.CounterMap
	calls        *atomics.CounterMap
	buffers      atomic.Uint64
	bytes        atomic.Uint64
	dupCount     atomic.Uint64
	dupBytes     atomic.Uint64
	maxDepthSeen atomic.Int32
	started      time.Time
}

type entry struct {
	sc      Scanner
	info    Info
	enabled bool
}

// NewSet creates a scanner set in the init phase, recording into rs.
func NewSet(cfg Config, rs *recorder.Set, log zerolog.Logger) *Set {
	return &Set{
		cfg:       cfg.normalized(),
		log:       log.With().Str("component", "scannerset").Logger(),
		recorders: rs,
		byName:    make(map[string]*entry),
		timingNS:  atomics.NewCounterMap(),
		calls:     atomics.NewCounterMap(),
	}
}

// Phase returns the current lifecycle stage.
func (s *Set) Phase() Phase { return Phase(s.phase.Load()) }

func (s *Set) requirePhase(op string, want Phase) error {
	if have := s.Phase(); have != want {
		return &PhaseError{Op: op, Have: have, Want: want}
	}
	return nil
}

// Register adds a scanner to the registry. Only legal in the init
// phase.
func (s *Set) Register(sc Scanner) error {
	if err := s.requirePhase("register", PhaseInit); err != nil {
		return err
	}
	info := sc.Info()
	if info.Name == "" {
		return fmt.Errorf("scanner: registered scanner has no name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[info.Name]; ok {
		return fmt.Errorf("scanner %s: %w", info.Name, ErrDuplicateScanner)
	}
	e := &entry{sc: sc, info: info, enabled: !info.Flags.DefaultDisabled}
	s.entries = append(s.entries, e)
	s.byName[info.Name] = e
	s.log.Debug().Str("scanner", info.Name).Bool("enabled", e.enabled).Msg("registered scanner")
	return nil
}

// ApplyCommands applies enable and disable commands in order and moves
// the set to the enabled phase. The wildcard name "all" touches every
// scanner not flagged NoAll.
func (s *Set) ApplyCommands(cmds []Command) error {
	if err := s.requirePhase("apply commands", PhaseInit); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cmd := range cmds {
		on := cmd.Action == Enable
		if cmd.Name == CommandAll {
			for _, e := range s.entries {
				if !e.info.Flags.NoAll {
					e.enabled = on
				}
			}
			continue
		}
		e, ok := s.byName[cmd.Name]
		if !ok {
			return fmt.Errorf("scanner %s: %w", cmd.Name, ErrNoSuchScanner)
		}
		e.enabled = on
	}
	s.phase.Store(int32(PhaseEnabled))
	return nil
}

// Start creates the recorders and histograms every enabled scanner
// declared, runs their initializers, and enters the scan phase.
func (s *Set) Start() error {
	if err := s.requirePhase("start", PhaseEnabled); err != nil {
		return err
	}
	if _, err := s.recorders.AlertRecorder(); err != nil {
		return err
	}
	for _, e := range s.snapshot() {
		if !e.enabled {
			continue
		}
		for _, def := range e.info.Recorders {
			if _, err := s.recorders.EnsureRecorder(def); err != nil {
				return err
			}
		}
		for _, hd := range e.info.Histograms {
			r, err := s.recorders.Named(hd.Feature)
			if err != nil {
				return fmt.Errorf("scanner %s: histogram over %s: %w", e.info.Name, hd.Feature, err)
			}
			if err := r.AddHistogram(hd); err != nil {
				return err
			}
		}
	}
	for _, e := range s.snapshot() {
		if !e.enabled {
			continue
		}
		init, ok := e.sc.(Initializer)
		if !ok {
			continue
		}
		if err := init.Init(s.params(nil, e)); err != nil {
			return fmt.Errorf("scanner %s: init: %w", e.info.Name, err)
		}
	}
	s.started = time.Now()
	s.phase.Store(int32(PhaseScan))
	s.log.Info().Strs("enabled", s.EnabledNames()).Msg("scan phase started")
	return nil
}

// ProcessBuffer dispatches one top-level buffer to every enabled
// scanner. The caller keeps ownership of the buffer. Safe for
// concurrent calls on distinct buffers.
func (s *Set) ProcessBuffer(ctx context.Context, b *sbuf.Buffer) error {
	return s.process(ctx, b)
}

func (s *Set) process(ctx context.Context, b *sbuf.Buffer) error {
	if err := s.requirePhase("process buffer", PhaseScan); err != nil {
		return err
	}
	depth := b.Depth()
	s.noteDepth(depth)

	if depth >= s.cfg.MaxDepth {
		s.alert(b.Addr(), alertMaxDepth)
		return nil
	}
	seen := false
	if !s.cfg.Debug.NoDedup && s.recorders.PreviouslyProcessed(b) {
		seen = true
		s.dupCount.Add(1)
		s.dupBytes.Add(uint64(b.Size()))
		if s.cfg.Debug.AlertOnDup {
			s.alert(b.Addr(), alertDuplicate)
		}
	}
	if s.cfg.Debug.NoScanners {
		return nil
	}

	s.buffers.Add(1)
	s.bytes.Add(uint64(b.PageSize()))
	ngram := b.NgramSize(s.cfg.MaxNgram)

	for _, e := range s.snapshot() {
		if !e.enabled {
			continue
		}
		if seen && !e.info.Flags.ScanSeenBefore {
			continue
		}
		if ngram > 0 && !e.info.Flags.ScanDegenerate {
			continue
		}
		if depth > 0 && e.info.Flags.DepthZeroOnly {
			continue
		}
		if b.Size() < e.info.MinSize {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runScanner(ctx, e, b); err != nil {
			return err
		}
	}
	return nil
}

// runScanner times one scanner invocation and isolates its failures:
// a panic or returned error becomes an alert record, never a crashed
// run. The exception is a carve failure, which means extracted
// evidence could not be written and aborts the run.
func (s *Set) runScanner(ctx context.Context, e *entry, b *sbuf.Buffer) error {
	if s.cfg.Debug.PrintSteps {
		s.log.Info().Str("scanner", e.info.Name).Str("addr", b.Addr().String()).Msg("dispatch")
	}
	t0 := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return e.sc.Scan(ctx, s.params(b, e))
	}()
	s.timingNS.Add(e.info.Name, uint64(time.Since(t0)))
	s.calls.Add(e.info.Name, 1)
	if err != nil {
		var carveErr *recorder.CarveError
		if errors.As(err, &carveErr) {
			s.log.Error().Err(err).Str("scanner", e.info.Name).Msg("carve failed, aborting")
			return err
		}
		s.log.Error().Err(err).Str("scanner", e.info.Name).Str("addr", b.Addr().String()).Msg("scanner failed")
		s.alert(b.Addr(), fmt.Sprintf("<exception scanner='%s'>%v</exception>", e.info.Name, err))
	}
	return nil
}

// Shutdown flushes every enabled scanner, generates histograms, and
// closes the recorders. Only legal in the scan phase.
func (s *Set) Shutdown() error {
	if err := s.requirePhase("shutdown", PhaseScan); err != nil {
		return err
	}
	s.phase.Store(int32(PhaseShutdown))

	var firstErr error
	for _, e := range s.snapshot() {
		if !e.enabled {
			continue
		}
		fin, ok := e.sc.(Finisher)
		if !ok {
			continue
		}
		if err := fin.Shutdown(s.params(nil, e)); err != nil {
			s.log.Error().Err(err).Str("scanner", e.info.Name).Msg("scanner shutdown failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := s.recorders.Shutdown(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Names returns every registered scanner name in registration order.
func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.info.Name)
	}
	return out
}

// EnabledNames returns the enabled scanner names in registration
// order.
func (s *Set) EnabledNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.entries {
		if e.enabled {
			out = append(out, e.info.Name)
		}
	}
	return out
}

// InfoFor returns the Info a scanner registered under name.
func (s *Set) InfoFor(name string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byName[name]
	if !ok {
		return Info{}, fmt.Errorf("scanner %s: %w", name, ErrNoSuchScanner)
	}
	return e.info, nil
}

func (s *Set) params(b *sbuf.Buffer, e *entry) *Params {
	return &Params{
		Buf:  b,
		name: e.info.Name,
		set:  s,
		log:  s.log.With().Str("scanner", e.info.Name).Logger(),
	}
}

func (s *Set) snapshot() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Set) alert(addr sbuf.Address, msg string) {
	ar, err := s.recorders.AlertRecorder()
	if err != nil {
		s.log.Error().Err(err).Msg("alert recorder unavailable")
		return
	}
	if err := ar.WriteString(addr, msg); err != nil {
		s.log.Error().Err(err).Str("alert", msg).Msg("failed to record alert")
	}
}

func (s *Set) noteDepth(depth int) {
	for {
		cur := s.maxDepthSeen.Load()
		if int32(depth) <= cur || s.maxDepthSeen.CompareAndSwap(cur, int32(depth)) {
			return
		}
	}
}
