package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sievekit/sieve/pkg/recorder"
	"github.com/sievekit/sieve/pkg/version"
)

// ScannerStat is one scanner's timing row in the run report.
type ScannerStat struct {
	Name    string  `yaml:"name"`
	Calls   uint64  `yaml:"calls"`
	Seconds float64 `yaml:"seconds"`
}

// Stats summarizes a run: what was scanned, what was suppressed, and
// where the time went.
type Stats struct {
	Version         string               `yaml:"version"`
	Session         string               `yaml:"session"`
	Input           string               `yaml:"input,omitempty"`
	Started         time.Time            `yaml:"started"`
	Elapsed         float64              `yaml:"elapsed_seconds"`
	BuffersScanned  uint64               `yaml:"buffers_scanned"`
	BytesScanned    uint64               `yaml:"bytes_scanned"`
	DupSuppressed   uint64               `yaml:"duplicates_suppressed"`
	DupBytes        uint64               `yaml:"duplicate_bytes"`
	MaxDepthSeen    int                  `yaml:"max_depth_seen"`
	EnabledScanners []string             `yaml:"enabled_scanners"`
	Scanners        []ScannerStat        `yaml:"scanner_timing"`
	Features        []recorder.NameCount `yaml:"feature_counts"`
}

// Stats returns a snapshot of the run counters.
func (s *Set) Stats() Stats {
	st := Stats{
		Version:         version.Version,
		Session:         s.recorders.Session(),
		Started:         s.started,
		BuffersScanned:  s.buffers.Load(),
		BytesScanned:    s.bytes.Load(),
		DupSuppressed:   s.dupCount.Load(),
		DupBytes:        s.dupBytes.Load(),
		MaxDepthSeen:    int(s.maxDepthSeen.Load()),
		EnabledScanners: s.EnabledNames(),
		Features:        s.recorders.FeatureCounts(),
	}
	if !s.started.IsZero() {
		st.Elapsed = time.Since(s.started).Seconds()
	}
	for _, name := range st.EnabledScanners {
		st.Scanners = append(st.Scanners, ScannerStat{
			Name:    name,
			Calls:   s.calls.Get(name),
			Seconds: float64(s.timingNS.Get(name)) / float64(time.Second),
		})
	}
	return st
}

// WriteReport writes the run report as YAML into the output directory.
func (s *Set) WriteReport(inputPath string) error {
	st := s.Stats()
	st.Input = inputPath
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("scanner: marshal report: %w", err)
	}
	path := filepath.Join(s.recorders.OutDir(), "report.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("scanner: write report: %w", err)
	}
	s.log.Info().Str("path", path).Msg("wrote run report")
	return nil
}
