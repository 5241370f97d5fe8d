package recorder

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	ierrors "github.com/sievekit/sieve/internal/errors"
	"github.com/sievekit/sieve/pkg/version"
)

const featureFileVersion = "1.1"

// FileSink writes one tab-separated text file per recorder in the
// output directory, with a commented banner identifying the run. Lines
// are "address\tfeature[\tcontext]". Histograms land in sibling
// "{recorder}_{suffix}.txt" files as "count\tfeature" lines.
type FileSink struct {
	outdir    string
	inputPath string
	sessionID string
	log       zerolog.Logger

	mu    sync.Mutex
	files map[string]*featureFile
}

type featureFile struct {
	f *os.File
	w *bufio.Writer
}

// NewFileSink creates a sink rooted at outdir. sessionID stamps every
// banner so files from different runs are distinguishable.
func NewFileSink(outdir, inputPath, sessionID string, log zerolog.Logger) *FileSink {
	return &FileSink{
		outdir:    outdir,
		inputPath: inputPath,
		sessionID: sessionID,
		log:       log.With().Str("component", "filesink").Logger(),
		files:     make(map[string]*featureFile),
	}
}

// WriteRecord appends one feature line to the recorder's file, opening
// it and writing the banner on first use.
func (s *FileSink) WriteRecord(recorder string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ff, err := s.fileLocked(recorder)
	if err != nil {
		return err
	}
	if _, err := ff.w.WriteString(rec.Addr.String()); err != nil {
		return fmt.Errorf("recorder: write %s: %w", recorder, err)
	}
	ff.w.WriteByte('\t')
	ff.w.WriteString(rec.Feature)
	if rec.Context != "" {
		ff.w.WriteByte('\t')
		ff.w.WriteString(rec.Context)
	}
	if err := ff.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("recorder: write %s: %w", recorder, err)
	}
	return nil
}

// WriteHistogram writes the report to "{recorder}_{suffix}.txt". An
// empty report still produces the file with its banner, so a missing
// histogram is distinguishable from an empty one.
func (s *FileSink) WriteHistogram(recorder string, def HistogramDef, entries []Entry) error {
	suffix := def.Suffix
	if suffix == "" {
		suffix = "histogram"
	}
	name := recorder + "_" + suffix

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(filepath.Join(s.outdir, name+".txt"))
	if err != nil {
		return fmt.Errorf("recorder: create histogram %s: %w", name, err)
	}
	w := bufio.NewWriter(f)
	s.writeBanner(w, name)
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\n", e.Count, e.Feature)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("recorder: flush histogram %s: %w", name, err)
	}
	return f.Close()
}

// Shutdown flushes and closes every open feature file.
func (s *FileSink) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, ff := range s.files {
		if err := ff.w.Flush(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("recorder: flush %s: %w", name, err)
		}
		ierrors.DeferClose(s.log, ff.f, "closing feature file "+name)
	}
	s.files = make(map[string]*featureFile)
	return firstErr
}

// Paths returns the feature files opened so far, for reporting.
func (s *FileSink) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for name := range s.files {
		out = append(out, filepath.Join(s.outdir, name+".txt"))
	}
	return out
}

func (s *FileSink) fileLocked(recorder string) (*featureFile, error) {
	if ff, ok := s.files[recorder]; ok {
		return ff, nil
	}
	path := filepath.Join(s.outdir, recorder+".txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("recorder: open feature file %s: %w", path, err)
	}
	ff := &featureFile{f: f, w: bufio.NewWriter(f)}
	st, err := f.Stat()
	if err == nil && st.Size() == 0 {
		s.writeBanner(ff.w, recorder)
	}
	s.files[recorder] = ff
	s.log.Debug().Str("path", path).Msg("opened feature file")
	return ff, nil
}

func (s *FileSink) writeBanner(w *bufio.Writer, name string) {
	fmt.Fprintf(w, "# SIEVE-Version: %s\n", version.Version)
	fmt.Fprintf(w, "# Session: %s\n", s.sessionID)
	fmt.Fprintf(w, "# Feature-Recorder: %s\n", name)
	if s.inputPath != "" {
		fmt.Fprintf(w, "# Filename: %s\n", s.inputPath)
	}
	fmt.Fprintf(w, "# Feature-File-Version: %s\n", featureFileVersion)
	fmt.Fprintf(w, "# Date: %s\n", time.Now().UTC().Format(time.RFC3339))
}
