// Package engine drives a scan: it maps the input evidence, cuts it
// into overlapping pages, and pushes the pages through the scanner set
// from a bounded worker pool.
package engine

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	ierrors "github.com/sievekit/sieve/internal/errors"
	"github.com/sievekit/sieve/pkg/scanner"
	"github.com/sievekit/sieve/pkg/sbuf"
)

// Default page geometry. Each page overlaps the next by the margin, so
// features that straddle a page boundary are found exactly once.
const (
	DefaultPageSize = 16 * 1024 * 1024
	DefaultMargin   = 4 * 1024 * 1024
)

// Options sets the page geometry and parallelism of a scan.
type Options struct {
	// PageSize is the number of canonical bytes per page.
	PageSize int
	// Margin is the lookahead past each page boundary.
	Margin int
	// Workers is the number of pages scanned concurrently (default
	// GOMAXPROCS).
	Workers int
}

func (o Options) normalized() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Margin < 0 {
		o.Margin = 0
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// Engine feeds evidence through a scanner set.
type Engine struct {
	set  *scanner.Set
	opts Options
	log  zerolog.Logger
}

// New returns an engine dispatching into set. The set must already be
// in the scan phase.
func New(set *scanner.Set, opts Options, log zerolog.Logger) *Engine {
	return &Engine{
		set:  set,
		opts: opts.normalized(),
		log:  log.With().Str("component", "engine").Logger(),
	}
}

// ScanFile memory-maps the file at path and scans it page by page.
// The first scanner or I/O failure cancels the remaining pages.
func (e *Engine) ScanFile(ctx context.Context, path string) error {
	img, err := sbuf.MapFile(path)
	if err != nil {
		return fmt.Errorf("engine: map %s: %w", path, err)
	}
	e.log.Info().Str("path", path).Int("size", img.Size()).
		Int("page_size", e.opts.PageSize).Int("workers", e.opts.Workers).
		Msg("scanning image")

	err = e.scan(ctx, img)
	if cerr := img.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// ScanBuffer scans an in-memory buffer page by page. The caller keeps
// ownership of the buffer.
func (e *Engine) ScanBuffer(ctx context.Context, img *sbuf.Buffer) error {
	return e.scan(ctx, img)
}

func (e *Engine) scan(ctx context.Context, img *sbuf.Buffer) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for off := 0; off < img.PageSize(); off += e.opts.PageSize {
		off := off
		g.Go(func() error {
			page := img.Window(off, e.opts.PageSize, e.opts.Margin)
			defer ierrors.DeferClose(e.log, page, "closing scan page")
			return e.set.ProcessBuffer(ctx, page)
		})
	}
	return g.Wait()
}
