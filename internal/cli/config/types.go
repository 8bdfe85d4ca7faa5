// Package config loads empdep's configuration from empdep.yaml,
// EMPDEP_-prefixed environment variables, and command-line flags,
// in increasing order of precedence.
package config

import (
	"path/filepath"

	"github.com/beacon-epi/empdep/internal/survey"
)

// ExtractsConfig names the four raw survey extract files.
type ExtractsConfig struct {
	Wave2021 string `koanf:"wave_2021"`
	Wave2022 string `koanf:"wave_2022"`
	Wave2023 string `koanf:"wave_2023"`
	Baseline string `koanf:"baseline"`
}

// TargetConfig describes the optional database target the analytic table is
// materialized into. A nil target means prepare stops at the CSV.
type TargetConfig struct {
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Table    string            `koanf:"table"`
	Options  map[string]string `koanf:"options"`
}

// ServeConfig holds report server settings.
type ServeConfig struct {
	Port int `koanf:"port"`
}

// Config holds all CLI configuration options.
type Config struct {
	Extracts           ExtractsConfig `koanf:"extracts"`
	Codebook           string         `koanf:"codebook"`
	OutputDir          string         `koanf:"output_dir"`
	Persist            bool           `koanf:"persist"`
	ReuseWeights       bool           `koanf:"reuse_weights"`
	TruncationQuantile float64        `koanf:"truncation_quantile"`
	StatePath          string         `koanf:"state_path"`
	Verbose            bool           `koanf:"verbose"`
	OutputFormat       string         `koanf:"output"`
	Target             *TargetConfig  `koanf:"target"`
	Serve              *ServeConfig   `koanf:"serve"`

	// ProjectRoot is the directory relative paths were resolved against.
	// Set by the loader, never read from a file.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultWave2021 = "extracts/wave_2021.csv"
	DefaultWave2022 = "extracts/wave_2022.csv"
	DefaultWave2023 = "extracts/wave_2023.csv"
	DefaultBaseline = "extracts/baseline.csv"

	DefaultOutputDir          = "output"
	DefaultStateFile          = ".empdep/state.db"
	DefaultOutput             = "table"
	DefaultTruncationQuantile = 0.99
	DefaultAnalyticTable      = "analytic"
	DefaultServePort          = 8765
)

// WavePaths returns the extract path for each annual wave.
func (c *Config) WavePaths() map[int]string {
	return map[int]string{
		survey.WaveFirst:  c.Extracts.Wave2021,
		survey.WaveSecond: c.Extracts.Wave2022,
		survey.WaveFinal:  c.Extracts.Wave2023,
	}
}

// AnalyticPath is where prepare persists the wide analytic table.
func (c *Config) AnalyticPath() string {
	return filepath.Join(c.OutputDir, "analytic.csv")
}

// WeightsPath is where analyze persists the weight table.
func (c *Config) WeightsPath() string {
	return filepath.Join(c.OutputDir, "weights.csv")
}

// TargetTable returns the configured table name for materialization.
func (c *Config) TargetTable() string {
	if c.Target == nil || c.Target.Table == "" {
		return DefaultAnalyticTable
	}
	return c.Target.Table
}

// ServePort returns the report server port.
func (c *Config) ServePort() int {
	if c.Serve == nil || c.Serve.Port == 0 {
		return DefaultServePort
	}
	return c.Serve.Port
}
