package gzipscan_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/scanner"
	"github.com/sievekit/sieve/pkg/scanners/gzipscan"
	"github.com/sievekit/sieve/pkg/sbuf"
)

// needleScanner records every "SECRET" sighting.
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
	for loc := p.Buf.FindString("SECRET", 0); loc >= 0; loc = p.Buf.FindString("SECRET", loc+1) {
		if err := r.WriteBuf(p.Buf, loc, 6); err != nil {
			return err
		}
	}
	return nil
}

func gzipped(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zlibbed(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newScanSet(t *testing.T, outdir string, carve recorder.CarveMode) *scanner.Set {
	t.Helper()
	rs, err := recorder.NewSet(recorder.Options{OutDir: outdir, Logger: zerolog.Nop()})
	require.NoError(t, err)
	set := scanner.NewSet(scanner.Config{}, rs, zerolog.Nop())
	require.NoError(t, set.Register(gzipscan.New(carve)))
	require.NoError(t, set.Register(needleScanner{}))
	require.NoError(t, set.ApplyCommands(nil))
	require.NoError(t, set.Start())
	return set
}

func runScan(t *testing.T, data []byte, carve recorder.CarveMode) string {
	t.Helper()
	outdir := t.TempDir()
	set := newScanSet(t, outdir, carve)

	b := sbuf.NewFromBytes(sbuf.NewAddress("", 0), data)
	defer b.Close()
	require.NoError(t, set.ProcessBuffer(context.Background(), b))
	require.NoError(t, set.Shutdown())
	return outdir
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

func TestScanFindsFeatureInsideEmbeddedStream(t *testing.T) {
	stream := gzipped(t, []byte("....SECRET...."))
	data := append([]byte("pad:!"), stream...)
	outdir := runScan(t, data, recorder.CarveNone)

	lines := readFeatures(t, filepath.Join(outdir, "needles.txt"))
	require.Len(t, lines, 1)
	// The stream begins at offset 5, the needle at offset 4 of the
	// decoded output.
	assert.True(t, strings.HasPrefix(lines[0], "5-GZIP-4\tSECRET"))
}

func TestScanCarvesDecodedStream(t *testing.T) {
	stream := gzipped(t, []byte("carve me please, twenty bytes"))
	outdir := runScan(t, stream, recorder.CarveAll)

	carved, err := os.ReadFile(filepath.Join(outdir, "gzip", "000", "0-GZIP-0.gz_decoded"))
	require.NoError(t, err)
	assert.Equal(t, "carve me please, twenty bytes", string(carved))

	lines := readFeatures(t, filepath.Join(outdir, "gzip.txt"))
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "<fileobject>")
}

func TestScanIgnoresCorruptStreams(t *testing.T) {
	data := []byte{0x1f, 0x8b, 0x08, 0xff, 0xff, 0xff, 0xff, 0xff}
	outdir := runScan(t, data, recorder.CarveNone)
	assert.Nil(t, readFeatures(t, filepath.Join(outdir, "needles.txt")))
}

func TestScanFindsFeatureInsideZlibStream(t *testing.T) {
	stream := zlibbed(t, []byte("..SECRET.."))
	data := append([]byte("pp!"), stream...)
	outdir := runScan(t, data, recorder.CarveNone)

	lines := readFeatures(t, filepath.Join(outdir, "needles.txt"))
	require.Len(t, lines, 1)
	// The stream begins at offset 3, the needle at offset 2 of the
	// decoded output.
	assert.True(t, strings.HasPrefix(lines[0], "3-ZLIB-2\tSECRET"))
}

func TestScanCarveFailureAbortsScan(t *testing.T) {
	outdir := t.TempDir()
	// A plain file where the carve bin directory belongs makes every
	// materialize attempt fail.
	require.NoError(t, os.WriteFile(filepath.Join(outdir, "gzip"), []byte("in the way"), 0o644))
	set := newScanSet(t, outdir, recorder.CarveAll)

	b := sbuf.NewFromBytes(sbuf.NewAddress("", 0), gzipped(t, []byte("evidence bytes here")))
	defer b.Close()

	err := set.ProcessBuffer(context.Background(), b)
	var ce *recorder.CarveError
	require.ErrorAs(t, err, &ce)
	require.NoError(t, set.Shutdown())
}

func TestScanFindsMultipleStreams(t *testing.T) {
	s1 := gzipped(t, []byte("first SECRET here"))
	s2 := gzipped(t, []byte("second SECRET here"))
	data := append(append([]byte{}, s1...), s2...)
	outdir := runScan(t, data, recorder.CarveNone)

	lines := readFeatures(t, filepath.Join(outdir, "needles.txt"))
	assert.Len(t, lines, 2)
}
