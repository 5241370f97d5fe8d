package recorder

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sievekit/sieve/internal/atomics"
	"github.com/sievekit/sieve/pkg/sbuf"
)

// AlertRecorderName is the reserved recorder that collects alerts:
// depth-limit hits, duplicate-data sightings, and scanner failures.
const AlertRecorderName = "alerts"

// stopRecorderName collects features diverted by the stoplist.
const stopRecorderName = "stopped"

// Backend selects the persistence sink for a Set.
type Backend string

const (
	// BackendFiles writes tab-separated feature files.
	BackendFiles Backend = "files"
	// BackendDuckDB writes a single report database.
	BackendDuckDB Backend = "duckdb"
)

// Options configures a Set.
type Options struct {
	// OutDir is the output directory; created if missing. Required
	// unless Disabled.
	OutDir string
	// InputPath names the disk image being scanned, recorded in
	// banners and run metadata.
	InputPath string
	// Hash selects the digest algorithm for carved files and
	// deduplication reporting (default sha1).
	Hash string
	// Backend selects the sink (default BackendFiles).
	Backend Backend
	// Disabled turns every write into a no-op. Used for the
	// registration pass, which runs scanners once with no output.
	Disabled bool
	// Pedantic makes malformed or oversized features hard errors
	// instead of truncating or dropping.
	Pedantic bool
	// ContextWindow is the number of context bytes captured on each
	// side of a feature (default DefaultContextWindow).
	ContextWindow int
	// StoplistPath, when set, loads a stoplist applied to every
	// recorder without the NoStoplist flag.
	StoplistPath string
	// Logger is the parent logger.
	Logger zerolog.Logger
}

// Set owns every feature recorder for one run: the sink they share,
// the hash algorithm, the stoplist, and the duplicate-data set used by
// the dispatcher. Recorders are created during scanner initialization
// and live until Shutdown.
type Set struct {
	outdir        string
	inputPath     string
	sessionID     string
	log           zerolog.Logger
	hasher        Hasher
	sink          Sink
	disabled      bool
	pedantic      bool
	contextWindow int
	stoplist      *Stoplist

	mu        sync.Mutex
	recorders map[string]*Recorder

	seen     *atomics.Set
	carveSeq atomic.Int64
	closed   atomic.Bool
}

// NewSet validates the options, prepares the output directory, and
// opens the sink.
func NewSet(opts Options) (*Set, error) {
	if opts.Hash == "" {
		opts.Hash = "sha1"
	}
	hasher, err := HasherFor(opts.Hash)
	if err != nil {
		return nil, err
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = DefaultContextWindow
	}
	if opts.Backend == "" {
		opts.Backend = BackendFiles
	}

	s := &Set{
		outdir:        opts.OutDir,
		inputPath:     opts.InputPath,
		sessionID:     uuid.NewString(),
		log:           opts.Logger.With().Str("component", "recorderset").Logger(),
		hasher:        hasher,
		disabled:      opts.Disabled,
		pedantic:      opts.Pedantic,
		contextWindow: opts.ContextWindow,
		recorders:     make(map[string]*Recorder),
		seen:          atomics.NewSet(),
	}

	if opts.StoplistPath != "" {
		sl, err := LoadStoplist(opts.StoplistPath)
		if err != nil {
			return nil, err
		}
		s.stoplist = sl
		s.log.Info().Int("entries", sl.Len()).Str("path", opts.StoplistPath).Msg("loaded stoplist")
	}

	if opts.Disabled {
		s.sink = nullSink{}
		return s, nil
	}

	if opts.OutDir == "" {
		return nil, fmt.Errorf("recorder: output directory not set")
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder: create output directory: %w", err)
	}

	switch opts.Backend {
	case BackendFiles:
		s.sink = NewFileSink(opts.OutDir, opts.InputPath, s.sessionID, opts.Logger)
	case BackendDuckDB:
		sink, err := NewDuckDBSink(opts.OutDir, opts.InputPath, s.sessionID, opts.Logger)
		if err != nil {
			return nil, err
		}
		s.sink = sink
	default:
		return nil, fmt.Errorf("recorder: unknown backend %q", opts.Backend)
	}
	return s, nil
}

// Session returns the run's session identifier.
func (s *Set) Session() string { return s.sessionID }

// OutDir returns the output directory.
func (s *Set) OutDir() string { return s.outdir }

// Hasher returns the digest algorithm selected for this run.
func (s *Set) Hasher() Hasher { return s.hasher }

// Disabled reports whether writes are suppressed.
func (s *Set) Disabled() bool { return s.disabled }

// CreateRecorder creates a named recorder. Creating the same name twice
// is an error; scanners that share a stream must coordinate through
// EnsureRecorder.
func (s *Set) CreateRecorder(def Def) (*Recorder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recorders[def.Name]; ok {
		return nil, fmt.Errorf("recorder %s: %w", def.Name, ErrRecorderExists)
	}
	r := newRecorder(s, def)
	s.recorders[def.Name] = r
	s.log.Debug().Str("recorder", def.Name).Msg("created feature recorder")
	return r, nil
}

// EnsureRecorder returns the named recorder, creating it from def if
// absent.
func (s *Set) EnsureRecorder(def Def) (*Recorder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.recorders[def.Name]; ok {
		return r, nil
	}
	r := newRecorder(s, def)
	s.recorders[def.Name] = r
	return r, nil
}

// Named returns the recorder created under name.
func (s *Set) Named(name string) (*Recorder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.recorders[name]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("recorder %s: %w", name, ErrNoSuchRecorder)
}

// AlertRecorder returns the reserved alert recorder, creating it on
// first use.
func (s *Set) AlertRecorder() (*Recorder, error) {
	return s.EnsureRecorder(Def{
		Name:  AlertRecorderName,
		Flags: Flags{XML: true, NoStoplist: true},
	})
}

func (s *Set) stopRecorder() (*Recorder, error) {
	return s.EnsureRecorder(Def{
		Name:  stopRecorderName,
		Flags: Flags{NoStoplist: true},
	})
}

// Names returns the recorder names in sorted order.
func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.recorders))
	for name := range s.recorders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NameCount pairs a recorder name with its feature count.
type NameCount struct {
	Name  string
	Count uint64
}

// FeatureCounts returns per-recorder feature counts, sorted by name.
func (s *Set) FeatureCounts() []NameCount {
	names := s.Names()
	out := make([]NameCount, 0, len(names))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		out = append(out, NameCount{Name: name, Count: s.recorders[name].Count()})
	}
	return out
}

// HistogramCount returns the total number of declared histograms.
func (s *Set) HistogramCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.recorders {
		n += len(r.Histograms())
	}
	return n
}

// PreviouslyProcessed marks the buffer's content as seen and reports
// whether identical content was seen before. The dispatcher uses this
// to scan each distinct block of data once.
func (s *Set) PreviouslyProcessed(b *sbuf.Buffer) bool {
	return s.seen.CheckAndInsert(b.Hash())
}

// Shutdown generates every histogram and closes the sink. It runs at
// most once; later calls are no-ops.
func (s *Set) Shutdown() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	names := s.Names()
	for _, name := range names {
		r, err := s.Named(name)
		if err != nil {
			continue
		}
		if err := r.generate(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.sink.Shutdown(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.log.Info().Int("recorders", len(names)).Msg("feature recorders shut down")
	return firstErr
}

// nullSink discards everything. Used when the set is disabled.
type nullSink struct{}

func (nullSink) WriteRecord(string, Record) error                   { return nil }
func (nullSink) WriteHistogram(string, HistogramDef, []Entry) error { return nil }
func (nullSink) Shutdown() error                                    { return nil }
