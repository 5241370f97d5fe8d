package scanner

import (
	"context"

	"github.com/rs/zerolog"

	ierrors "github.com/sievekit/sieve/internal/errors"
	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/sbuf"
)

// Params is what a scanner sees on each call: the buffer under
// examination and its window back into the set for recorders, options,
// and recursion.
type Params struct {
	// Buf is the buffer to examine. The dispatcher owns it; scanners
	// must not close it.
	Buf *sbuf.Buffer

	name string
	set  *Set
	log  zerolog.Logger
}

// Logger returns a logger tagged with the scanner's name.
func (p *Params) Logger() zerolog.Logger { return p.log }

// Recorder returns the named feature recorder. Scanners may only ask
// for recorders they declared in their Info.
func (p *Params) Recorder(name string) (*recorder.Recorder, error) {
	return p.set.recorders.Named(name)
}

// AlertRecorder returns the shared alert recorder.
func (p *Params) AlertRecorder() (*recorder.Recorder, error) {
	return p.set.recorders.AlertRecorder()
}

// Hasher returns the run's digest algorithm.
func (p *Params) Hasher() recorder.Hasher { return p.set.recorders.Hasher() }

// OutDir returns the run's output directory, empty when recording is
// disabled.
func (p *Params) OutDir() string { return p.set.recorders.OutDir() }

// Option returns the scanner-scoped option value, looked up under
// "{scanner}.{name}".
func (p *Params) Option(name string) (string, bool) {
	v, ok := p.set.cfg.Options[p.name+"."+name]
	return v, ok
}

// Recurse feeds a decoded child buffer back through the dispatcher so
// every scanner examines it. The child is closed when processing
// returns; the caller keeps ownership of nothing.
func (p *Params) Recurse(ctx context.Context, child *sbuf.Buffer) error {
	defer ierrors.DeferClose(p.log, child, "closing recursed buffer")
	return p.set.process(ctx, child)
}
