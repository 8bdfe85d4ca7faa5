package config

import (
	"fmt"
	"os"
)

// validOutputFormats mirrors the formats the report renderer accepts.
var validOutputFormats = map[string]bool{
	"":         true,
	"table":    true,
	"md":       true,
	"markdown": true,
	"json":     true,
	"csv":      true,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TruncationQuantile <= 0 || c.TruncationQuantile > 1 {
		return fmt.Errorf("truncation_quantile must be in (0, 1], got %v", c.TruncationQuantile)
	}
	if !validOutputFormats[c.OutputFormat] {
		return fmt.Errorf("unknown output format %q (expected table, markdown, json, or csv)", c.OutputFormat)
	}
	if c.Serve != nil && (c.Serve.Port < 0 || c.Serve.Port > 65535) {
		return fmt.Errorf("serve port %d is out of range", c.Serve.Port)
	}
	return c.validateTarget()
}

func (c *Config) validateTarget() error {
	t := c.Target
	if t == nil {
		return nil
	}
	switch t.Type {
	case "duckdb":
		return nil
	case "postgres":
		if t.Database == "" {
			return fmt.Errorf("target.database is required for postgres targets")
		}
		return nil
	default:
		return fmt.Errorf("unknown target type %q (expected duckdb or postgres)", t.Type)
	}
}

// ValidateExtracts checks that every configured extract file exists.
// Commands that read the raw extracts call this before starting a run;
// help and report-only commands do not need the files present.
func (c *Config) ValidateExtracts() error {
	paths := []string{
		c.Extracts.Wave2021,
		c.Extracts.Wave2022,
		c.Extracts.Wave2023,
		c.Extracts.Baseline,
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("extract file does not exist: %s\nHint: Check the extracts section of empdep.yaml or pass --project-dir", p)
		}
	}
	return nil
}
