package config

import "runtime"

// DefaultMemoryBudget is the number of float32 similarity elements that fit
// in 3.5 GiB of device memory.
const DefaultMemoryBudget int64 = 3758096384 / 4

// Default returns a configuration with every default set. Thresholds whose
// zero value is meaningful are only defaulted here, never by ApplyDefaults.
func Default() *Config {
	cfg := &Config{
		Output: OutputConfig{SimilaritiesPath: "-"},
		Similarity: SimilarityConfig{
			Threshold:            0.5,
			SimRawThreshold:      2.0,
			SimOnesidedThreshold: 0.1,
			SimSymThreshold:      0,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for zero values that are not valid settings.
func ApplyDefaults(cfg *Config) {
	if cfg.Vectorizer.Dimensions == 0 {
		cfg.Vectorizer.Dimensions = 450
	}
	if cfg.Vectorizer.NGram == 0 {
		cfg.Vectorizer.NGram = 2
	}
	if cfg.Vectorizer.Weighting == "" {
		cfg.Vectorizer.Weighting = "plain"
	}
	if cfg.Vectorizer.CacheSize == 0 {
		cfg.Vectorizer.CacheSize = 100000
	}
	if cfg.Similarity.MemoryBudget == 0 {
		cfg.Similarity.MemoryBudget = DefaultMemoryBudget
	}
	if cfg.Similarity.Backend == "" {
		cfg.Similarity.Backend = "cpu"
	}
	if cfg.Similarity.Workers == 0 {
		cfg.Similarity.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Output.Summary == "" {
		cfg.Output.Summary = "text"
	}
	if cfg.Watch.DebounceMillis == 0 {
		cfg.Watch.DebounceMillis = 500
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}
