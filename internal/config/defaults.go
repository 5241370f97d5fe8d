package config

import "github.com/sievekit/sieve/internal/constants"

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:           constants.DefaultOutDir,
			Backend:       "files",
			Hash:          constants.DefaultHash,
			ContextWindow: constants.DefaultContextWindow,
		},
		Scan: ScanConfig{
			PageSize: constants.DefaultPageSize,
			Margin:   constants.DefaultMargin,
			MaxDepth: constants.DefaultMaxDepth,
		},
		Scanners: ScannersConfig{
			Carve:   "encoded",
			Options: make(map[string]string),
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
