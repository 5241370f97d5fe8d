package recorder

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sievekit/sieve/internal/atomics"
	ierrors "github.com/sievekit/sieve/internal/errors"
	"github.com/sievekit/sieve/pkg/sbuf"
)

// Recorder is one named feature stream. Scanners obtain recorders by
// name and write (address, feature, context) triples through the
// validation pipeline; the recorder escapes, stoplists, histograms, and
// hands the record to the set's sink. All methods are safe for
// concurrent use.
type Recorder struct {
	set *Set
	def Def
	log zerolog.Logger

	histMu     sync.Mutex
	histograms []*Histogram

	written    atomic.Uint64
	sealed     atomic.Bool
	carveCache *atomics.Set
}

func newRecorder(set *Set, def Def) *Recorder {
	return &Recorder{
		set:        set,
		def:        def.normalized(),
		log:        set.log.With().Str("recorder", def.Name).Logger(),
		carveCache: atomics.NewSet(),
	}
}

// Name returns the recorder's name.
func (r *Recorder) Name() string { return r.def.Name }

// Def returns the recorder's definition.
func (r *Recorder) Def() Def { return r.def }

// Count returns the number of features written so far, not counting
// drops or stoplist diversions.
func (r *Recorder) Count() uint64 { return r.written.Load() }

// AddHistogram declares a histogram over this recorder's features.
// Histograms must be declared before the first write so no feature is
// silently missing from the tally.
func (r *Recorder) AddHistogram(def HistogramDef) error {
	if r.written.Load() > 0 {
		return fmt.Errorf("recorder %s: %w", r.def.Name, ErrLateHistogram)
	}
	if r.sealed.Load() {
		return fmt.Errorf("recorder %s: %w", r.def.Name, ErrHistogramsGenerated)
	}
	h, err := newHistogram(def)
	if err != nil {
		return err
	}
	r.histMu.Lock()
	r.histograms = append(r.histograms, h)
	r.histMu.Unlock()
	return nil
}

// Histograms returns the declared histograms.
func (r *Recorder) Histograms() []*Histogram {
	r.histMu.Lock()
	defer r.histMu.Unlock()
	out := make([]*Histogram, len(r.histograms))
	copy(out, r.histograms)
	return out
}

// Write records one feature sighting at addr. The pipeline: pedantic
// validation, canonical decoding, escaping, truncation to the
// configured maxima, empty-feature drop, stoplist diversion, histogram
// accumulation, then the sink append.
func (r *Recorder) Write(addr sbuf.Address, feature, context []byte) error {
	if r.set.disabled {
		return nil
	}
	if r.sealed.Load() {
		return fmt.Errorf("recorder %s: write after shutdown: %w", r.def.Name, ErrHistogramsGenerated)
	}

	if r.set.pedantic {
		if len(feature) == 0 {
			return &FormatError{Recorder: r.def.Name, Reason: "empty feature"}
		}
		if len(feature) > r.def.MaxFeatureSize {
			return &SizeError{Recorder: r.def.Name, Kind: "feature", Len: len(feature), Max: r.def.MaxFeatureSize}
		}
		if len(context) > r.def.MaxContextSize {
			return &SizeError{Recorder: r.def.Name, Kind: "context", Len: len(context), Max: r.def.MaxContextSize}
		}
		if bytes.IndexAny(feature, "\t\n\r") >= 0 {
			return &FormatError{Recorder: r.def.Name, Reason: "record delimiter in feature"}
		}
		if bytes.IndexAny(context, "\t\n\r") >= 0 {
			return &FormatError{Recorder: r.def.Name, Reason: "record delimiter in context"}
		}
	}

	canonical := canonicalUTF8(feature)
	escFeature := r.escape(feature)
	var escContext string
	if !r.def.Flags.NoContext && len(context) > 0 {
		escContext = r.escape(context)
	}
	escFeature = truncateEscaped(escFeature, r.def.MaxFeatureSize)
	escContext = truncateEscaped(escContext, r.def.MaxContextSize)

	if escFeature == "" {
		r.log.Warn().Str("addr", addr.String()).Msg("dropping empty feature")
		return nil
	}

	if !r.def.Flags.NoStoplist && r.set.stoplist.Match(canonical, escContext) {
		stop, err := r.set.stopRecorder()
		if err != nil {
			return err
		}
		return stop.Write(addr, feature, context)
	}

	r.histMu.Lock()
	hists := r.histograms
	r.histMu.Unlock()
	for _, h := range hists {
		h.Add(canonical)
	}

	rec := Record{Addr: addr, Feature: escFeature, FeatureUTF8: canonical, Context: escContext}
	if err := r.set.sink.WriteRecord(r.def.Name, rec); err != nil {
		return err
	}
	r.written.Add(1)
	r.log.Trace().Str("addr", addr.String()).Str("feature", escFeature).Msg("feature")
	return nil
}

// WriteString records a string feature with no context.
func (r *Recorder) WriteString(addr sbuf.Address, feature string) error {
	return r.Write(addr, []byte(feature), nil)
}

// WriteBuf records the n bytes at pos within b as a feature, with the
// surrounding bytes as context. Positions in the margin are silently
// ignored, so a scanner can report margin sightings without duplicating
// the next page's features. Positions beyond the buffer are a bounds
// error.
func (r *Recorder) WriteBuf(b *sbuf.Buffer, pos, n int) error {
	if pos < 0 || pos >= b.Size() {
		return &sbuf.BoundsError{Off: pos, N: n, Size: b.Size()}
	}
	if pos >= b.PageSize() {
		return nil
	}
	if pos+n > b.Size() {
		n = b.Size() - pos
	}

	feature, err := b.ReadBytes(pos, n)
	if err != nil {
		return err
	}

	var context []byte
	if w := r.set.contextWindow; w > 0 && !r.def.Flags.NoContext {
		cs := pos - w
		if cs < 0 {
			cs = 0
		}
		ce := pos + n + w
		if ce > b.Size() {
			ce = b.Size()
		}
		context, err = b.ReadBytes(cs, ce-cs)
		if err != nil {
			return err
		}
	}
	return r.Write(b.Addr().Advance(uint64(pos)), feature, context)
}

func (r *Recorder) escape(p []byte) string {
	if r.def.Flags.NoQuote {
		return string(p)
	}
	return Escape(p, !r.def.Flags.XML)
}

// CachedMarker is recorded in place of a path when a carved artifact's
// content was already written by an earlier carve.
const CachedMarker = "<CACHED>"

// Carve writes header followed by the buffer's bytes as an artifact
// file under {outdir}/{recorder}/{NNN}/, subject to the recorder's
// carve mode, and records a feature whose context is a fileobject XML
// fragment. Identical content is carved once; later sightings record
// CachedMarker. The returned path is relative to the output directory,
// empty when nothing was recorded. mtime, when nonzero, is applied to
// the carved file.
func (r *Recorder) Carve(header []byte, data *sbuf.Buffer, ext string, mtime time.Time) (string, error) {
	switch r.def.CarveMode {
	case CarveNone:
		return "", nil
	case CarveEncoded:
		if data.Addr().Path == "" {
			return "", nil
		}
		if r.def.DoNotCarveEncoding != "" && data.Addr().AlphaPart() == r.def.DoNotCarveEncoding {
			return "", nil
		}
	}

	payload, err := data.ReadBytes(0, data.Size())
	if err != nil {
		return "", err
	}
	hash := r.set.hasher.Sum(payload)
	cached := r.carveCache.CheckAndInsert(hash)

	relpath := CachedMarker
	if !cached {
		seq := r.set.carveSeq.Add(1) - 1
		bin := fmt.Sprintf("%03d", seq/carvedFilesPerDir)
		name := carveFilename(data.Addr()) + ext
		relpath = filepath.Join(r.def.Name, bin, name)
	}

	var xml strings.Builder
	xml.WriteString("<fileobject>")
	if !cached {
		fmt.Fprintf(&xml, "<filename>%s</filename>", relpath)
	}
	fmt.Fprintf(&xml, "<filesize>%d</filesize>", len(header)+len(payload))
	fmt.Fprintf(&xml, "<hashdigest type='%s'>%s</hashdigest>", strings.ToUpper(r.set.hasher.Name), hash)
	xml.WriteString("</fileobject>")

	if err := r.Write(data.Addr(), []byte(relpath), []byte(xml.String())); err != nil {
		return "", err
	}
	if cached {
		return relpath, nil
	}

	abspath := filepath.Join(r.set.outdir, relpath)
	if err := r.materialize(abspath, header, data, mtime); err != nil {
		return "", &CarveError{Recorder: r.def.Name, Path: relpath, Err: err}
	}
	r.log.Debug().Str("path", relpath).Int("size", len(header)+len(payload)).Msg("carved")
	return relpath, nil
}

const carvedFilesPerDir = 1000

func (r *Recorder) materialize(abspath string, header []byte, data *sbuf.Buffer, mtime time.Time) error {
	if err := os.MkdirAll(filepath.Dir(abspath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(abspath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if len(header) > 0 {
		if _, err := f.Write(header); err != nil {
			ierrors.DeferClose(r.log, f, "closing failed carve")
			return err
		}
	}
	if _, err := data.WriteTo(f); err != nil {
		ierrors.DeferClose(r.log, f, "closing failed carve")
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(abspath, mtime, mtime); err != nil {
			return err
		}
	}
	return nil
}

// carveFilename renders an address as a filesystem-safe name. Path
// separators and other hostile characters become underscores.
func carveFilename(addr sbuf.Address) string {
	s := addr.String()
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// generate pushes every declared histogram to the sink and seals the
// recorder against further writes.
func (r *Recorder) generate() error {
	r.sealed.Store(true)
	for _, h := range r.Histograms() {
		if err := r.set.sink.WriteHistogram(r.def.Name, h.Def(), h.Report()); err != nil {
			return err
		}
	}
	return nil
}
