// Package config provides configuration loading and management.
package config

// Config is the full scan configuration: the YAML file schema and the
// SIEVE_* environment overrides.
type Config struct {
	// Output selects where features land.
	Output OutputConfig `yaml:"output"`
	// Scan controls page geometry and recursion.
	Scan ScanConfig `yaml:"scan"`
	// Scanners controls which scanners run and their options.
	Scanners ScannersConfig `yaml:"scanners"`
	// Log controls the logger.
	Log LogConfig `yaml:"log"`
	// Debug holds development toggles.
	Debug DebugConfig `yaml:"debug"`
}

// OutputConfig selects the sink and its parameters.
type OutputConfig struct {
	// Dir is the output directory.
	Dir string `yaml:"dir" env:"SIEVE_OUTPUT_DIR"`
	// Backend is "files" or "duckdb".
	Backend string `yaml:"backend" env:"SIEVE_OUTPUT_BACKEND"`
	// Hash is the digest algorithm for carved files.
	Hash string `yaml:"hash" env:"SIEVE_OUTPUT_HASH"`
	// ContextWindow is the context bytes captured per side of a
	// feature.
	ContextWindow int `yaml:"context_window" env:"SIEVE_OUTPUT_CONTEXT_WINDOW"`
	// Stoplist is an optional stoplist file path.
	Stoplist string `yaml:"stoplist" env:"SIEVE_OUTPUT_STOPLIST"`
	// Pedantic makes malformed features hard errors.
	Pedantic bool `yaml:"pedantic" env:"SIEVE_OUTPUT_PEDANTIC"`
}

// ScanConfig controls page geometry and recursion limits.
type ScanConfig struct {
	PageSize int `yaml:"page_size" env:"SIEVE_SCAN_PAGE_SIZE"`
	Margin   int `yaml:"margin" env:"SIEVE_SCAN_MARGIN"`
	Workers  int `yaml:"workers" env:"SIEVE_SCAN_WORKERS"`
	MaxDepth int `yaml:"max_depth" env:"SIEVE_SCAN_MAX_DEPTH"`
}

// ScannersConfig controls the enabled scanner set.
type ScannersConfig struct {
	// Disable entries are applied first, then Enable entries, so
	// "disable: [all]" plus one enable runs a single scanner. Both
	// accept the "all" wildcard.
	Enable  []string `yaml:"enable"`
	Disable []string `yaml:"disable"`
	// Carve is the carve mode for decoder scanners: "none",
	// "encoded", or "all".
	Carve string `yaml:"carve" env:"SIEVE_SCANNERS_CARVE"`
	// Options are scanner-scoped options as "scanner.option" keys.
	Options map[string]string `yaml:"options"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"SIEVE_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"SIEVE_LOG_PRETTY"`
}

// DebugConfig holds development toggles.
type DebugConfig struct {
	PrintSteps bool `yaml:"print_steps" env:"SIEVE_DEBUG_PRINT_STEPS"`
	NoDedup    bool `yaml:"no_dedup" env:"SIEVE_DEBUG_NO_DEDUP"`
	NoScanners bool `yaml:"no_scanners" env:"SIEVE_DEBUG_NO_SCANNERS"`
	AlertOnDup bool `yaml:"alert_on_dup" env:"SIEVE_DEBUG_ALERT_ON_DUP"`
}
