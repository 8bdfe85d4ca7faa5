package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a config file into a temp project directory and returns
// its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "empdep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// TestLoadConfig_Defaults verifies the built-in defaults when the config file
// sets nothing.
func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "persist: false\n")
	root := filepath.Dir(cfgPath)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, DefaultWave2021), cfg.Extracts.Wave2021)
	assert.Equal(t, filepath.Join(root, DefaultBaseline), cfg.Extracts.Baseline)
	assert.Equal(t, filepath.Join(root, DefaultOutputDir), cfg.OutputDir)
	assert.Equal(t, filepath.Join(root, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.InDelta(t, DefaultTruncationQuantile, cfg.TruncationQuantile, 1e-12)
	assert.False(t, cfg.Persist)
	assert.Nil(t, cfg.Target)
	assert.Equal(t, DefaultServePort, cfg.ServePort())
}

// TestLoadConfig_FileValues verifies values read from the config file,
// including relative path resolution against the project root.
func TestLoadConfig_FileValues(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, `extracts:
  wave_2021: data/w21.csv
  wave_2022: data/w22.csv
  wave_2023: data/w23.csv
  baseline: data/base.csv
codebook: codebook.yaml
output_dir: results
persist: true
truncation_quantile: 0.95
state_path: state/runs.db
output: markdown
target:
  type: postgres
  host: db.example.org
  port: 5433
  database: epi
  user: analyst
  table: panel_wide
serve:
  port: 9000
`)
	root := filepath.Dir(cfgPath)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "data/w21.csv"), cfg.Extracts.Wave2021)
	assert.Equal(t, filepath.Join(root, "data/base.csv"), cfg.Extracts.Baseline)
	assert.Equal(t, filepath.Join(root, "codebook.yaml"), cfg.Codebook)
	assert.Equal(t, filepath.Join(root, "results"), cfg.OutputDir)
	assert.True(t, cfg.Persist)
	assert.InDelta(t, 0.95, cfg.TruncationQuantile, 1e-12)
	assert.Equal(t, filepath.Join(root, "state/runs.db"), cfg.StatePath)
	assert.Equal(t, "markdown", cfg.OutputFormat)

	require.NotNil(t, cfg.Target)
	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, "db.example.org", cfg.Target.Host)
	assert.Equal(t, 5433, cfg.Target.Port)
	assert.Equal(t, "epi", cfg.Target.Database)
	assert.Equal(t, "panel_wide", cfg.TargetTable())
	assert.Equal(t, 9000, cfg.ServePort())
}

// TestLoadConfig_EnvPrecedenceOverFile tests that env vars override the
// config file.
func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "output_dir: from_file\n")
	root := filepath.Dir(cfgPath)

	require.NoError(t, os.Setenv("EMPDEP_OUTPUT_DIR", "from_env"))
	defer func() { _ = os.Unsetenv("EMPDEP_OUTPUT_DIR") }()

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "from_env"), cfg.OutputDir)
}

// TestLoadConfig_NestedEnvKeys tests that double underscores in env var
// names address nested config keys.
func TestLoadConfig_NestedEnvKeys(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, `target:
  type: postgres
  database: epi
`)

	require.NoError(t, os.Setenv("EMPDEP_TARGET__PASSWORD", "hunter2"))
	require.NoError(t, os.Setenv("EMPDEP_TARGET__HOST", "warehouse.internal"))
	defer func() {
		_ = os.Unsetenv("EMPDEP_TARGET__PASSWORD")
		_ = os.Unsetenv("EMPDEP_TARGET__HOST")
	}()

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	require.NotNil(t, cfg.Target)
	assert.Equal(t, "hunter2", cfg.Target.Password)
	assert.Equal(t, "warehouse.internal", cfg.Target.Host)
}

// TestLoadConfig_FlagPrecedence tests that flags override env vars and the
// config file.
func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "output: csv\n")

	require.NoError(t, os.Setenv("EMPDEP_OUTPUT", "markdown"))
	defer func() { _ = os.Unsetenv("EMPDEP_OUTPUT") }()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "", "output format")
	require.NoError(t, flags.Set("output", "json"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.OutputFormat)
}

// TestLoadConfig_FlagNotSetUsesEnv tests that unset flags fall back to env vars.
func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "output: csv\n")

	require.NoError(t, os.Setenv("EMPDEP_OUTPUT", "markdown"))
	defer func() { _ = os.Unsetenv("EMPDEP_OUTPUT") }()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "", "output format")
	// Note: not calling flags.Set(), so Changed is false

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	assert.Equal(t, "markdown", cfg.OutputFormat)
}

// TestLoadConfig_StateFlagMapsToStatePath tests the --state to state_path
// flag remapping, with the flag path resolved against the CWD.
func TestLoadConfig_StateFlagMapsToStatePath(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "state_path: from_file.db\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("state", "", "state database path")
	require.NoError(t, flags.Set("state", "flag_state.db"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	want, err := filepath.Abs("flag_state.db")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.StatePath)
}

// TestLoadConfig_TargetEnvVarExpansion tests ${VAR} expansion in sensitive
// target fields.
func TestLoadConfig_TargetEnvVarExpansion(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, `target:
  type: postgres
  database: epi
  user: ${EMPDEP_TEST_USER}
  password: ${EMPDEP_TEST_PASSWORD}
`)

	require.NoError(t, os.Setenv("EMPDEP_TEST_USER", "analyst"))
	require.NoError(t, os.Setenv("EMPDEP_TEST_PASSWORD", "secret123"))
	defer func() {
		_ = os.Unsetenv("EMPDEP_TEST_USER")
		_ = os.Unsetenv("EMPDEP_TEST_PASSWORD")
	}()

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	require.NotNil(t, cfg.Target)
	assert.Equal(t, "analyst", cfg.Target.User)
	assert.Equal(t, "secret123", cfg.Target.Password)
}

// TestLoadConfig_TargetTypeDefault tests that a target without a type
// defaults to duckdb.
func TestLoadConfig_TargetTypeDefault(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, `target:
  path: analytic.duckdb
`)
	root := filepath.Dir(cfgPath)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	require.NotNil(t, cfg.Target)
	assert.Equal(t, "duckdb", cfg.Target.Type)
	assert.Equal(t, filepath.Join(root, "analytic.duckdb"), cfg.Target.Path)
	assert.Equal(t, DefaultAnalyticTable, cfg.TargetTable())
}

// TestExpandEnvVars tests the expandEnvVars function.
func TestExpandEnvVars(t *testing.T) {
	require.NoError(t, os.Setenv("TEST_VAR_ONE", "value_one"))
	defer func() { _ = os.Unsetenv("TEST_VAR_ONE") }()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single variable", input: "${TEST_VAR_ONE}", expected: "value_one"},
		{name: "variable in path", input: "/path/${TEST_VAR_ONE}/file", expected: "/path/value_one/file"},
		{name: "unset variable stays as-is", input: "${UNSET_VARIABLE}", expected: "${UNSET_VARIABLE}"},
		{name: "no variables", input: "plain string", expected: "plain string"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

// TestConfig_Validate tests the Config.Validate method.
func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{TruncationQuantile: 0.99, OutputFormat: "table"}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "zero truncation quantile",
			mutate:    func(c *Config) { c.TruncationQuantile = 0 },
			errSubstr: "truncation_quantile",
		},
		{
			name:      "truncation quantile above one",
			mutate:    func(c *Config) { c.TruncationQuantile = 1.5 },
			errSubstr: "truncation_quantile",
		},
		{
			name:      "unknown output format",
			mutate:    func(c *Config) { c.OutputFormat = "xml" },
			errSubstr: "unknown output format",
		},
		{
			name:      "postgres target without database",
			mutate:    func(c *Config) { c.Target = &TargetConfig{Type: "postgres"} },
			errSubstr: "target.database is required",
		},
		{
			name:      "unknown target type",
			mutate:    func(c *Config) { c.Target = &TargetConfig{Type: "mysql"} },
			errSubstr: "unknown target type",
		},
		{
			name:      "serve port out of range",
			mutate:    func(c *Config) { c.Serve = &ServeConfig{Port: -1} },
			errSubstr: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

// TestValidateExtracts tests extract file existence checks.
func TestValidateExtracts(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Extracts: ExtractsConfig{
			Wave2021: filepath.Join(dir, "w21.csv"),
			Wave2022: filepath.Join(dir, "w22.csv"),
			Wave2023: filepath.Join(dir, "w23.csv"),
			Baseline: filepath.Join(dir, "base.csv"),
		},
	}

	err := cfg.ValidateExtracts()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	for _, p := range []string{"w21.csv", "w22.csv", "w23.csv", "base.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, p), []byte("participant_id\n"), 0600))
	}
	assert.NoError(t, cfg.ValidateExtracts())
}

// TestDerivedPaths tests the path helper methods.
func TestDerivedPaths(t *testing.T) {
	cfg := &Config{
		OutputDir: "/proj/output",
		Extracts: ExtractsConfig{
			Wave2021: "/proj/extracts/w21.csv",
			Wave2022: "/proj/extracts/w22.csv",
			Wave2023: "/proj/extracts/w23.csv",
		},
	}

	assert.Equal(t, filepath.Join("/proj/output", "analytic.csv"), cfg.AnalyticPath())
	assert.Equal(t, filepath.Join("/proj/output", "weights.csv"), cfg.WeightsPath())

	paths := cfg.WavePaths()
	assert.Equal(t, "/proj/extracts/w21.csv", paths[2021])
	assert.Equal(t, "/proj/extracts/w22.csv", paths[2022])
	assert.Equal(t, "/proj/extracts/w23.csv", paths[2023])
}
