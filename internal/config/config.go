// Package config provides configuration loading and structs for poemsim runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a similarity run.
type Config struct {
	Debug      bool             `yaml:"debug"`
	LogFile    string           `yaml:"log_file"`
	Input      InputConfig      `yaml:"input"`
	Output     OutputConfig     `yaml:"output"`
	Vectorizer VectorizerConfig `yaml:"vectorizer"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Job        JobConfig        `yaml:"job"`
	Progress   int              `yaml:"progress"`
	Watch      WatchConfig      `yaml:"watch"`
	Server     ServerConfig     `yaml:"server"`
}

// InputConfig names the verse CSV and the optional poem ID pattern.
type InputConfig struct {
	Path    string `yaml:"path"`
	Pattern string `yaml:"pattern"`
}

// OutputConfig holds the result destinations. Empty paths disable a sink;
// SimilaritiesPath "-" is standard output.
type OutputConfig struct {
	SimilaritiesPath string `yaml:"similarities_path"`
	AlignmentsPath   string `yaml:"alignments_path"`
	PrintTexts       bool   `yaml:"print_texts"`
	SQLitePath       string `yaml:"sqlite_path"`
	XLSXPath         string `yaml:"xlsx_path"`
	Summary          string `yaml:"summary"`
}

// VectorizerConfig holds n-gram vectorizer settings.
type VectorizerConfig struct {
	Dimensions  int    `yaml:"dimensions"`
	NGram       int    `yaml:"ngram"`
	Weighting   string `yaml:"weighting"`
	CacheSize   int    `yaml:"cache_size"`
	VectorsPath string `yaml:"vectors_path"`
}

// SimilarityConfig holds kernel and pair thresholds.
type SimilarityConfig struct {
	Threshold            float64 `yaml:"threshold"`
	SimRawThreshold      float64 `yaml:"sim_raw_thr"`
	SimOnesidedThreshold float64 `yaml:"sim_onesided_thr"`
	SimSymThreshold      float64 `yaml:"sim_sym_thr"`
	Rescale              bool    `yaml:"rescale"`
	MemoryBudget         int64   `yaml:"memory_budget"`
	Backend              string  `yaml:"backend"`
	Workers              int     `yaml:"workers"`
}

// JobConfig selects one shard of the eligible poems. Both fields are set or
// neither is.
type JobConfig struct {
	ID    *int `yaml:"id"`
	Count *int `yaml:"count"`
}

// WatchConfig holds input watch settings.
type WatchConfig struct {
	DebounceMillis int `yaml:"debounce_ms"`
}

// ServerConfig holds settings of the results HTTP API.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load reads the config file at path over Default, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(cfg)

	configDir := filepath.Dir(path)
	cfg.LogFile = expandPath(cfg.LogFile, configDir)
	cfg.Input.Path = expandPath(cfg.Input.Path, configDir)
	if cfg.Output.SimilaritiesPath != "-" {
		cfg.Output.SimilaritiesPath = expandPath(cfg.Output.SimilaritiesPath, configDir)
	}
	cfg.Output.AlignmentsPath = expandPath(cfg.Output.AlignmentsPath, configDir)
	cfg.Output.SQLitePath = expandPath(cfg.Output.SQLitePath, configDir)
	cfg.Output.XLSXPath = expandPath(cfg.Output.XLSXPath, configDir)
	cfg.Vectorizer.VectorsPath = expandPath(cfg.Vectorizer.VectorsPath, configDir)

	return cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
