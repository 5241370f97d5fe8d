package lz4scan_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/scanner"
	"github.com/sievekit/sieve/pkg/scanners/lz4scan"
	"github.com/sievekit/sieve/pkg/sbuf"
)

type needleScanner struct{}

func (needleScanner) Info() scanner.Info {
	return scanner.Info{
		Name:      "needle",
		Recorders: []recorder.Def{{Name: "needles"}},
	}
}

func (needleScanner) Scan(ctx context.Context, p *scanner.Params) error {
	r, err := p.Recorder("needles")
	if err != nil {
		return err
	}
	if loc := p.Buf.FindString("SECRET", 0); loc >= 0 {
		return r.WriteBuf(p.Buf, loc, 6)
	}
	return nil
}

func compressed(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readFeatures(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func TestScanFindsFeatureInsideEmbeddedFrame(t *testing.T) {
	frame := compressed(t, []byte("..SECRET.."))
	data := append([]byte("xyz"), frame...)

	outdir := t.TempDir()
	rs, err := recorder.NewSet(recorder.Options{OutDir: outdir, Logger: zerolog.Nop()})
	require.NoError(t, err)
	set := scanner.NewSet(scanner.Config{}, rs, zerolog.Nop())
	require.NoError(t, set.Register(lz4scan.New(recorder.CarveNone)))
	require.NoError(t, set.Register(needleScanner{}))
	require.NoError(t, set.ApplyCommands(nil))
	require.NoError(t, set.Start())

	b := sbuf.NewFromBytes(sbuf.NewAddress("", 0), data)
	defer b.Close()
	require.NoError(t, set.ProcessBuffer(context.Background(), b))
	require.NoError(t, set.Shutdown())

	lines := readFeatures(t, filepath.Join(outdir, "needles.txt"))
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "3-LZ4-2\tSECRET"))
}

func TestScanIgnoresCorruptFrames(t *testing.T) {
	data := []byte{0x04, 0x22, 0x4d, 0x18, 0x00, 0x00}

	outdir := t.TempDir()
	rs, err := recorder.NewSet(recorder.Options{OutDir: outdir, Logger: zerolog.Nop()})
	require.NoError(t, err)
	set := scanner.NewSet(scanner.Config{}, rs, zerolog.Nop())
	require.NoError(t, set.Register(lz4scan.New(recorder.CarveNone)))
	require.NoError(t, set.ApplyCommands(nil))
	require.NoError(t, set.Start())

	b := sbuf.NewFromBytes(sbuf.NewAddress("", 0), data)
	defer b.Close()
	require.NoError(t, set.ProcessBuffer(context.Background(), b))
	require.NoError(t, set.Shutdown())
}
