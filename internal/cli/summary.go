// Package cli provides CLI output helpers for poemsim.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// OutputFormat is the format of the run summary.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputNone suppresses the summary.
	OutputNone OutputFormat = "none"
)

// Summary describes a finished run.
type Summary struct {
	RunID       string        `json:"run_id"`
	Input       string        `json:"input"`
	Shard       string        `json:"shard"`
	Backend     string        `json:"backend"`
	Poems       int           `json:"poems"`
	Verses      int           `json:"verses"`
	Processed   int           `json:"processed"`
	Pairs       int           `json:"pairs"`
	Unscorable  int           `json:"unscorable"`
	Outputs     []string      `json:"outputs,omitempty"`
	OutputBytes int64         `json:"output_bytes"`
	Duration    time.Duration `json:"duration_ns"`
}

// WriteSummary writes s to w in the given format.
func WriteSummary(w io.Writer, s *Summary, format OutputFormat) error {
	switch format {
	case OutputNone:
		return nil
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	default:
		writeSummaryText(w, s)
		return nil
	}
}

func writeSummaryText(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "\nRun %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Input:      %s (%d poems, %d verses)\n", s.Input, s.Poems, s.Verses)
	fmt.Fprintf(w, "Shard:      %s, backend %s\n", s.Shard, s.Backend)
	fmt.Fprintf(w, "Processed:  %d poems\n", s.Processed)
	fmt.Fprintf(w, "Pairs:      %d kept, %d unscorable\n", s.Pairs, s.Unscorable)
	if len(s.Outputs) > 0 {
		fmt.Fprintf(w, "Outputs:    %s\n", FormatBytes(s.OutputBytes))
		for _, o := range s.Outputs {
			fmt.Fprintf(w, "  %s\n", o)
		}
	}
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
