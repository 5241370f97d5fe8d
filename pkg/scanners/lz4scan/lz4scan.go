// Package lz4scan finds LZ4 frames anywhere in a buffer, decompresses
// them, and recurses into the decoded bytes.
package lz4scan

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/scanner"
)

const (
	recorderName = "lz4"
	pathLabel    = "LZ4"

	maxDecoded = 64 * 1024 * 1024
)

// LZ4 frame magic, little-endian 0x184D2204.
var lz4Magic = []byte{0x04, 0x22, 0x4d, 0x18}

// Scanner decompresses embedded LZ4 frames.
type Scanner struct {
	carve recorder.CarveMode
}

// New returns an LZ4 scanner carving decoded frames per mode.
func New(carve recorder.CarveMode) *Scanner {
	return &Scanner{carve: carve}
}

func (s *Scanner) Info() scanner.Info {
	return scanner.Info{
		Name:        "lz4",
		Author:      "sieve authors",
		Description: "decompresses embedded LZ4 frames and recurses into them",
		Version:     "1.0",
		MinSize:     len(lz4Magic) + 1,
		Recorders: []recorder.Def{
			{Name: recorderName, CarveMode: s.carve, Flags: recorder.Flags{XML: true, NoStoplist: true}},
		},
	}
}

func (s *Scanner) Scan(ctx context.Context, p *scanner.Params) error {
	b := p.Buf
	r, err := p.Recorder(recorderName)
	if err != nil {
		return err
	}
	for off := b.Find(lz4Magic[0], 0); off >= 0; off = b.Find(lz4Magic[0], off+1) {
		if b.At(off+1) != lz4Magic[1] || b.At(off+2) != lz4Magic[2] || b.At(off+3) != lz4Magic[3] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		tail, err := b.ReadBytes(off, b.Size()-off)
		if err != nil {
			return err
		}
		decoded, ok := decompress(tail)
		if !ok {
			continue
		}
		child := b.NewChild(off, pathLabel, decoded)
		if _, err := r.Carve(nil, child, ".lz4_decoded", time.Time{}); err != nil {
			child.Close()
			return err
		}
		if err := p.Recurse(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func decompress(data []byte) ([]byte, bool) {
	zr := lz4.NewReader(bytes.NewReader(data))
	var out bytes.Buffer
	_, err := io.Copy(&out, io.LimitReader(zr, maxDecoded))
	if out.Len() == 0 {
		return nil, false
	}
	if err != nil {
		// Keep the prefix that decoded cleanly.
		return out.Bytes(), true
	}
	return out.Bytes(), true
}
