// Package wordlist extracts dictionary-attack candidate words from
// every buffer: runs of letters within a length band, recorded with
// their position and tallied into a case-folded histogram. A
// deduplicated sorted list is written at shutdown.
package wordlist

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/sievekit/sieve/internal/atomics"
	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/scanner"
)

const (
	recorderName = "words"

	defaultMinLen = 6
	defaultMaxLen = 14
)

// Scanner extracts letter runs as candidate words. Disabled by
// default; wordlist extraction is noisy and only wanted when feeding a
// password cracker.
type Scanner struct {
	minLen int
	maxLen int
	seen   *atomics.Set
}

// New returns the wordlist scanner.
func New() *Scanner {
	return &Scanner{minLen: defaultMinLen, maxLen: defaultMaxLen, seen: atomics.NewSet()}
}

func (s *Scanner) Info() scanner.Info {
	return scanner.Info{
		Name:        "wordlist",
		Author:      "sieve authors",
		Description: "extracts candidate words for dictionary attacks",
		Version:     "1.0",
		MinSize:     s.minLen,
		Recorders: []recorder.Def{
			{Name: recorderName, Flags: recorder.Flags{NoContext: true}},
		},
		Histograms: []recorder.HistogramDef{
			{Feature: recorderName, Suffix: "histogram", Lowercase: true},
		},
		Flags: scanner.Flags{DefaultDisabled: true},
	}
}

// Init honors the "min" and "max" word length options.
func (s *Scanner) Init(p *scanner.Params) error {
	if v, ok := p.Option("min"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("wordlist: bad min option %q", v)
		}
		s.minLen = n
	}
	if v, ok := p.Option("max"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < s.minLen {
			return fmt.Errorf("wordlist: bad max option %q", v)
		}
		s.maxLen = n
	}
	return nil
}

func (s *Scanner) Scan(ctx context.Context, p *scanner.Params) error {
	b := p.Buf
	r, err := p.Recorder(recorderName)
	if err != nil {
		return err
	}
	// The character scan runs through the margin so a word straddling
	// the page boundary is recorded whole, but only words beginning in
	// the page are recorded here; the next page owns the rest.
	start := -1
	pageEnd := b.PageSize()
	size := b.Size()
	for i := 0; i <= size; i++ {
		if i < size && isWordChar(b.At(i)) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n := i - start
			if start < pageEnd && n >= s.minLen && n <= s.maxLen {
				word, err := b.ReadString(start, n)
				if err != nil {
					return err
				}
				s.seen.CheckAndInsert(word)
				if err := r.WriteBuf(b, start, n); err != nil {
					return err
				}
			}
			start = -1
		}
	}
	return nil
}

// Shutdown writes the deduplicated sorted wordlist beside the feature
// files.
func (s *Scanner) Shutdown(p *scanner.Params) error {
	outdir := p.OutDir()
	if outdir == "" {
		return nil
	}
	words := s.seen.Keys()
	sort.Strings(words)

	path := filepath.Join(outdir, "wordlist_dedup.txt")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wordlist: create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, word := range words {
		w.WriteString(word)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("wordlist: flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log := p.Logger()
	log.Info().Int("words", len(words)).Str("path", path).Msg("wrote deduplicated wordlist")
	return nil
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '\''
}
