// Package constants defines shared configuration constants.
package constants

const (
	ConfigFile = "config.yaml"

	DefaultDir = ".sieve"

	// DefaultOutDir is where a scan writes feature files, carved
	// artifacts, and the run report when -o is not given.
	DefaultOutDir = "sieve-out"

	// DefaultHash is the digest algorithm for carved files.
	DefaultHash = "sha1"

	// DefaultContextWindow is the number of context bytes captured on
	// each side of a feature.
	DefaultContextWindow = 16

	// DefaultMaxDepth bounds recursive decoding.
	DefaultMaxDepth = 7

	// ReportDatabaseFile is the DuckDB report written by the SQL
	// backend.
	ReportDatabaseFile = "report.duckdb"
)

// Page geometry defaults. Must match the engine's own defaults so a
// config file with no scan section behaves like running the engine
// bare.
const (
	DefaultPageSize = 16 * 1024 * 1024
	DefaultMargin   = 4 * 1024 * 1024
)
