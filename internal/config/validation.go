package config

import "fmt"

// Validate checks the config for values that would fail later in a
// confusing place.
func (c *Config) Validate() error {
	switch c.Output.Backend {
	case "files", "duckdb":
	default:
		return fmt.Errorf("config: unknown output backend %q", c.Output.Backend)
	}
	switch c.Scanners.Carve {
	case "none", "encoded", "all":
	default:
		return fmt.Errorf("config: unknown carve mode %q", c.Scanners.Carve)
	}
	if c.Scan.PageSize <= 0 {
		return fmt.Errorf("config: page size must be positive, got %d", c.Scan.PageSize)
	}
	if c.Scan.Margin < 0 {
		return fmt.Errorf("config: margin must not be negative, got %d", c.Scan.Margin)
	}
	if c.Scan.Margin >= c.Scan.PageSize {
		return fmt.Errorf("config: margin %d must be smaller than page size %d", c.Scan.Margin, c.Scan.PageSize)
	}
	if c.Scan.MaxDepth < 1 {
		return fmt.Errorf("config: max depth must be at least 1, got %d", c.Scan.MaxDepth)
	}
	if c.Output.ContextWindow < 0 {
		return fmt.Errorf("config: context window must not be negative, got %d", c.Output.ContextWindow)
	}
	return nil
}
