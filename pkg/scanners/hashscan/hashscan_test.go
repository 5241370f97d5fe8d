package hashscan_test

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/scanner"
	"github.com/sievekit/sieve/pkg/scanners/hashscan"
	"github.com/sievekit/sieve/pkg/sbuf"
)

func TestScanRecordsPageDigestAndPrefixHistogram(t *testing.T) {
	outdir := t.TempDir()
	rs, err := recorder.NewSet(recorder.Options{OutDir: outdir, Hash: "sha1", Logger: zerolog.Nop()})
	require.NoError(t, err)
	set := scanner.NewSet(scanner.Config{}, rs, zerolog.Nop())
	require.NoError(t, set.Register(hashscan.New()))
	require.NoError(t, set.ApplyCommands(nil))
	require.NoError(t, set.Start())

	content := []byte("Hello world!")
	b := sbuf.NewFromBytes(sbuf.NewAddress("", 0), content)
	defer b.Close()
	require.NoError(t, set.ProcessBuffer(context.Background(), b))
	require.NoError(t, set.Shutdown())

	digest := sha1.Sum(content)
	want := hex.EncodeToString(digest[:])

	data, err := os.ReadFile(filepath.Join(outdir, "hashes.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "0\t"+want+"\n")

	hist, err := os.ReadFile(filepath.Join(outdir, "hashes_first5.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(hist), "1\t"+want[:5]+"\n")
}

func TestScanHashesOnlyThePage(t *testing.T) {
	outdir := t.TempDir()
	rs, err := recorder.NewSet(recorder.Options{OutDir: outdir, Hash: "sha1", Logger: zerolog.Nop()})
	require.NoError(t, err)
	set := scanner.NewSet(scanner.Config{}, rs, zerolog.Nop())
	require.NoError(t, set.Register(hashscan.New()))
	require.NoError(t, set.ApplyCommands(nil))
	require.NoError(t, set.Start())

	// Page is the first 5 bytes; the margin must not affect the digest.
	b := sbuf.New(sbuf.NewAddress("", 0), []byte("page!margin"), 5)
	defer b.Close()
	require.NoError(t, set.ProcessBuffer(context.Background(), b))
	require.NoError(t, set.Shutdown())

	digest := sha1.Sum([]byte("page!"))
	want := hex.EncodeToString(digest[:])

	data, err := os.ReadFile(filepath.Join(outdir, "hashes.txt"))
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	found := false
	for _, line := range lines {
		if line == "0\t"+want {
			found = true
		}
	}
	assert.True(t, found)
}
