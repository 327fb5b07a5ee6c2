package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for tcq
type Config struct {
	// TracepointFunc is the C function whose string argument names a tracepoint
	TracepointFunc string `yaml:"tracepoint_func" env:"TCQ_TRACEPOINT_FUNC"`

	// GoTracepointFunc is the Go function (Name or path.Name) used as tracepoint
	GoTracepointFunc string `yaml:"go_tracepoint_func" env:"TCQ_GO_TRACEPOINT_FUNC"`

	// NoReturnFuncs are C functions that never return to their caller
	NoReturnFuncs []string `yaml:"noreturn_funcs" env:"TCQ_NORETURN_FUNCS"`

	// Default tracepoint names for check
	StartLabel string `yaml:"start_label" env:"TCQ_START_LABEL"`
	FinalLabel string `yaml:"final_label" env:"TCQ_FINAL_LABEL"`

	// Bounded loop certification
	MinTripCount     int `yaml:"min_trip_count" env:"TCQ_MIN_TRIP_COUNT"`
	MaxCyclesPerLoop int `yaml:"max_cycles_per_loop" env:"TCQ_MAX_CYCLES_PER_LOOP"`

	// Graph cache
	CacheDir     string `yaml:"cache_dir" env:"TCQ_CACHE_DIR"`
	CacheEnabled bool   `yaml:"cache_enabled" env:"TCQ_CACHE_ENABLED"`

	// Workers bounds parallel source parsing
	Workers int `yaml:"workers" env:"TCQ_WORKERS"`

	// Logging
	Verbose bool `yaml:"verbose" env:"TCQ_VERBOSE"`
	LogJSON bool `yaml:"log_json" env:"TCQ_LOG_JSON"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TracepointFunc:   "besc_tracepoint",
		GoTracepointFunc: "Tracepoint",
		NoReturnFuncs:    []string{"exit", "abort", "_exit", "__assert_fail"},
		StartLabel:       "main_entry",
		FinalLabel:       "main_exit",
		MinTripCount:     2,
		MaxCyclesPerLoop: 64,
		CacheDir:         defaultCacheDir(),
		CacheEnabled:     true,
		Workers:          4,
		Verbose:          false,
		LogJSON:          false,
	}
}

// configDirName is the directory holding tcq configuration, both in the home
// directory and in a project
const configDirName = ".tcq"

// GlobalConfigFilePath returns the global config file path (~/.tcq/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(configDirName, "config.yaml")
	}
	return filepath.Join(home, configDirName, "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.tcq/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(configDirName, "config.yaml")
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(configDirName, "cache")
	}
	return filepath.Join(home, configDirName, "cache")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Project-level config (./.tcq/config.yaml)
// 2. Environment variables
// 3. Global config (~/.tcq/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// 1. Load global config (~/.tcq/config.yaml)
	if err := mergeFile(cfg, GlobalConfigFilePath()); err != nil {
		return nil, err
	}

	// 2. Override with environment variables
	applyEnvOverrides(cfg)

	// 3. Load project-level config (./.tcq/config.yaml) - overrides everything
	if err := mergeFile(cfg, ProjectConfigFilePath()); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EffectivePath returns the config file Load would give the final say, or an
// empty string when only defaults and environment apply.
func EffectivePath() string {
	if _, err := os.Stat(ProjectConfigFilePath()); err == nil {
		return ProjectConfigFilePath()
	}
	if _, err := os.Stat(GlobalConfigFilePath()); err == nil {
		return GlobalConfigFilePath()
	}
	return ""
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeFile overlays the YAML file at path onto cfg. A missing file is not an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TCQ_TRACEPOINT_FUNC"); v != "" {
		cfg.TracepointFunc = v
	}
	if v := os.Getenv("TCQ_GO_TRACEPOINT_FUNC"); v != "" {
		cfg.GoTracepointFunc = v
	}
	if v := os.Getenv("TCQ_NORETURN_FUNCS"); v != "" {
		cfg.NoReturnFuncs = splitList(v)
	}
	if v := os.Getenv("TCQ_START_LABEL"); v != "" {
		cfg.StartLabel = v
	}
	if v := os.Getenv("TCQ_FINAL_LABEL"); v != "" {
		cfg.FinalLabel = v
	}
	if v := os.Getenv("TCQ_MIN_TRIP_COUNT"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.MinTripCount = i
		}
	}
	if v := os.Getenv("TCQ_MAX_CYCLES_PER_LOOP"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.MaxCyclesPerLoop = i
		}
	}
	if v := os.Getenv("TCQ_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("TCQ_CACHE_ENABLED"); v != "" {
		cfg.CacheEnabled = parseBool(v)
	}
	if v := os.Getenv("TCQ_WORKERS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Workers = i
		}
	}
	if v := os.Getenv("TCQ_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
	if v := os.Getenv("TCQ_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TracepointFunc) == "" {
		return fmt.Errorf("tracepoint_func must not be empty")
	}
	if strings.TrimSpace(c.GoTracepointFunc) == "" {
		return fmt.Errorf("go_tracepoint_func must not be empty")
	}
	if c.StartLabel == "" {
		return fmt.Errorf("start_label must not be empty")
	}
	if c.FinalLabel == "" {
		return fmt.Errorf("final_label must not be empty")
	}

	// A loop needs a trip count multiple above one to count as bounded
	if c.MinTripCount < 2 {
		return fmt.Errorf("min_trip_count must be at least 2")
	}
	if c.MaxCyclesPerLoop < 1 {
		return fmt.Errorf("max_cycles_per_loop must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	if c.CacheEnabled && c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required when cache_enabled is true")
	}

	return nil
}

// IsNoReturn reports whether name is configured as a function that never returns
func (c *Config) IsNoReturn(name string) bool {
	for _, f := range c.NoReturnFuncs {
		if f == name {
			return true
		}
	}
	return false
}

// splitList splits a comma separated list, dropping empty items
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(s string) bool {
	return s == "true" || s == "1" || s == "yes"
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}
