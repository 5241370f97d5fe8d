// Package gzipscan finds gzip and zlib streams anywhere in a buffer,
// inflates them, and feeds the decoded bytes back through the
// dispatcher so every scanner examines the hidden content. Decoded
// streams can be carved to disk.
package gzipscan

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/scanner"
)

const (
	recorderName     = "gzip"
	zlibRecorderName = "zlib"
	pathLabel        = "GZIP"
	zlibPathLabel    = "ZLIB"

	// defaultMaxDecoded bounds a single inflated stream. A gzip bomb
	// inside an image must not exhaust memory.
	defaultMaxDecoded = 64 * 1024 * 1024
)

// gzip member header: magic plus the deflate method byte.
var gzipMagic = []byte{0x1f, 0x8b, 0x08}

// zlib streams open with the CMF byte 0x78 in practice: deflate
// method, 32KB window, which is what every common implementation
// emits.
const zlibFirstByte = 0x78

// zlibHeader checks the CMF/FLG pair: deflate method, a sane window
// size, and the check value divisible by 31.
func zlibHeader(cmf, flg byte) bool {
	if cmf&0x0f != 8 || cmf>>4 > 7 {
		return false
	}
	return (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// Scanner inflates embedded gzip and zlib streams.
type Scanner struct {
	carve      recorder.CarveMode
	maxDecoded int64
}

// New returns a gzip scanner carving decoded streams per mode.
func New(carve recorder.CarveMode) *Scanner {
	return &Scanner{carve: carve, maxDecoded: defaultMaxDecoded}
}

func (s *Scanner) Info() scanner.Info {
	return scanner.Info{
		Name:        "gzip",
		Author:      "sieve authors",
		Description: "inflates embedded gzip and zlib streams and recurses into them",
		Version:     "1.2",
		MinSize:     len(gzipMagic) + 1,
		Recorders: []recorder.Def{
			{Name: recorderName, CarveMode: s.carve, Flags: recorder.Flags{XML: true, NoStoplist: true}},
			{Name: zlibRecorderName, CarveMode: s.carve, Flags: recorder.Flags{XML: true, NoStoplist: true}},
		},
	}
}

// Init honors the scanner-scoped "max" option, a decoded-size cap in
// bytes.
func (s *Scanner) Init(p *scanner.Params) error {
	if v, ok := p.Option("max"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			log := p.Logger()
			log.Warn().Str("max", v).Msg("ignoring bad gzip.max option")
			return nil
		}
		s.maxDecoded = n
	}
	return nil
}

func (s *Scanner) Scan(ctx context.Context, p *scanner.Params) error {
	if err := s.scanGzip(ctx, p); err != nil {
		return err
	}
	return s.scanZlib(ctx, p)
}

func (s *Scanner) scanGzip(ctx context.Context, p *scanner.Params) error {
	b := p.Buf
	r, err := p.Recorder(recorderName)
	if err != nil {
		return err
	}
	for off := b.Find(gzipMagic[0], 0); off >= 0; off = b.Find(gzipMagic[0], off+1) {
		if b.At(off+1) != gzipMagic[1] || b.At(off+2) != gzipMagic[2] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		tail, err := b.ReadBytes(off, b.Size()-off)
		if err != nil {
			return err
		}
		decoded, mtime, ok := s.inflate(p, tail)
		if !ok {
			continue
		}
		child := b.NewChild(off, pathLabel, decoded)
		if _, err := r.Carve(nil, child, ".gz_decoded", mtime); err != nil {
			child.Close()
			return err
		}
		if err := p.Recurse(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) scanZlib(ctx context.Context, p *scanner.Params) error {
	b := p.Buf
	r, err := p.Recorder(zlibRecorderName)
	if err != nil {
		return err
	}
	for off := b.Find(zlibFirstByte, 0); off >= 0; off = b.Find(zlibFirstByte, off+1) {
		if !zlibHeader(zlibFirstByte, b.At(off+1)) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		tail, err := b.ReadBytes(off, b.Size()-off)
		if err != nil {
			return err
		}
		decoded, ok := s.inflateZlib(p, tail)
		if !ok {
			continue
		}
		child := b.NewChild(off, zlibPathLabel, decoded)
		if _, err := r.Carve(nil, child, ".zlib_decoded", time.Time{}); err != nil {
			child.Close()
			return err
		}
		if err := p.Recurse(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// inflate decompresses the first gzip member at the start of data,
// capped at maxDecoded bytes. Truncated or corrupt streams still yield
// whatever inflated cleanly, which is often most of the content.
func (s *Scanner) inflate(p *scanner.Params, data []byte) (decoded []byte, mtime time.Time, ok bool) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, mtime, false
	}
	defer zr.Close()
	zr.Multistream(false)

	var out bytes.Buffer
	_, err = io.Copy(&out, io.LimitReader(zr, s.maxDecoded))
	if err != nil && out.Len() == 0 {
		return nil, mtime, false
	}
	if out.Len() == 0 {
		return nil, mtime, false
	}
	if err != nil {
		log := p.Logger()
		log.Debug().Err(err).Int("decoded", out.Len()).Msg("partial gzip stream")
	}
	return out.Bytes(), zr.ModTime, true
}

// inflateZlib decompresses a zlib stream at the start of data, capped
// at maxDecoded bytes. The header check in zlibHeader admits false
// positives; the decode itself is the real filter.
func (s *Scanner) inflateZlib(p *scanner.Params, data []byte) ([]byte, bool) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer zr.Close()

	var out bytes.Buffer
	_, err = io.Copy(&out, io.LimitReader(zr, s.maxDecoded))
	if out.Len() == 0 {
		return nil, false
	}
	if err != nil {
		log := p.Logger()
		log.Debug().Err(err).Int("decoded", out.Len()).Msg("partial zlib stream")
	}
	return out.Bytes(), true
}
