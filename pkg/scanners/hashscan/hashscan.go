// Package hashscan records a digest of every buffer it sees, giving
// each page and each decoded region a stable content fingerprint in
// the feature output.
package hashscan

import (
	"context"

	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/scanner"
)

const recorderName = "hashes"

// Scanner hashes buffer pages with the run's digest algorithm.
type Scanner struct{}

// New returns the hash scanner.
func New() *Scanner { return &Scanner{} }

func (s *Scanner) Info() scanner.Info {
	return scanner.Info{
		Name:        "hash",
		Author:      "sieve authors",
		Description: "records a digest of every scanned buffer",
		Version:     "1.0",
		Recorders: []recorder.Def{
			{Name: recorderName, Flags: recorder.Flags{NoContext: true, NoStoplist: true}},
		},
		Histograms: []recorder.HistogramDef{
			{Feature: recorderName, Pattern: `^(.....)`, Suffix: "first5"},
		},
	}
}

func (s *Scanner) Scan(ctx context.Context, p *scanner.Params) error {
	b := p.Buf
	page, err := b.ReadBytes(0, b.PageSize())
	if err != nil {
		return err
	}
	r, err := p.Recorder(recorderName)
	if err != nil {
		return err
	}
	return r.WriteString(b.Addr(), p.Hasher().Sum(page))
}
