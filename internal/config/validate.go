package config

import (
	"fmt"
	"math"
)

// ConfigurationError reports an invalid setting. Runs fail with it before any
// similarity is computed.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ValidateJob checks that job id and count are given together and that
// 0 <= id < count.
func ValidateJob(id, count *int) error {
	switch {
	case id == nil && count == nil:
		return nil
	case id == nil:
		return invalid("job", "job count given without job id")
	case count == nil:
		return invalid("job", "job id given without job count")
	case *count < 1:
		return invalid("job.count", "must be at least 1, got %d", *count)
	case *id < 0 || *id >= *count:
		return invalid("job.id", "must be in [0, %d), got %d", *count, *id)
	}
	return nil
}

// Validate checks every setting a run depends on.
func (c *Config) Validate() error {
	if c.Input.Path == "" {
		return invalid("input.path", "no input file given")
	}
	if c.Vectorizer.Dimensions <= 0 {
		return invalid("vectorizer.dimensions", "must be positive, got %d", c.Vectorizer.Dimensions)
	}
	if c.Vectorizer.NGram <= 0 {
		return invalid("vectorizer.ngram", "must be positive, got %d", c.Vectorizer.NGram)
	}
	switch c.Vectorizer.Weighting {
	case "plain", "sqrt", "binary":
	default:
		return invalid("vectorizer.weighting", "unknown weighting %q", c.Vectorizer.Weighting)
	}
	s := c.Similarity
	for field, v := range map[string]float64{
		"similarity.threshold":        s.Threshold,
		"similarity.sim_raw_thr":      s.SimRawThreshold,
		"similarity.sim_onesided_thr": s.SimOnesidedThreshold,
		"similarity.sim_sym_thr":      s.SimSymThreshold,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(field, "must be a finite number, got %v", v)
		}
	}
	if s.Rescale && s.Threshold >= 1 {
		return invalid("similarity.rescale", "requires threshold < 1, got %v", s.Threshold)
	}
	if s.MemoryBudget <= 0 {
		return invalid("similarity.memory_budget", "must be positive, got %d", s.MemoryBudget)
	}
	if s.Workers < 0 {
		return invalid("similarity.workers", "must not be negative, got %d", s.Workers)
	}
	switch c.Output.Summary {
	case "text", "json", "none":
	default:
		return invalid("output.summary", "unknown format %q", c.Output.Summary)
	}
	if c.Output.PrintTexts && c.Output.AlignmentsPath == "" {
		return invalid("output.print_texts", "requires an alignments path")
	}
	return ValidateJob(c.Job.ID, c.Job.Count)
}
