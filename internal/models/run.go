package models

import "time"

// Run describes one similarity run recorded in the results database.
type Run struct {
	ID         string                 `json:"id"`
	Input      string                 `json:"input"`
	Shard      string                 `json:"shard"`
	Settings   map[string]interface{} `json:"settings,omitempty"`
	Pairs      int64                  `json:"pairs"`
	Unscorable int64                  `json:"unscorable"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at,omitempty"`
}

// Finished reports whether the run completed.
func (r *Run) Finished() bool {
	return !r.FinishedAt.IsZero() && r.Error == ""
}

// Failed reports whether the run stopped before completing.
func (r *Run) Failed() bool {
	return r.Error != ""
}
