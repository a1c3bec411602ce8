package models

import (
	"fmt"
	"math"
)

// Params holds the pair-level thresholds of a similarity run.
type Params struct {
	SimRawThreshold      float64 `json:"sim_raw_thr"`
	SimOnesidedThreshold float64 `json:"sim_onesided_thr"`
	SimSymThreshold      float64 `json:"sim_sym_thr"`
	WithAlignments       bool    `json:"with_alignments"`
}

// Validate rejects thresholds that are not finite numbers.
func (p *Params) Validate() error {
	for name, v := range map[string]float64{
		"sim_raw_thr":      p.SimRawThreshold,
		"sim_onesided_thr": p.SimOnesidedThreshold,
		"sim_sym_thr":      p.SimSymThreshold,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number, got %v", name, v)
		}
	}
	return nil
}

// Keep reports whether a pair passes the threshold cascade: raw above
// SimRawThreshold, either one-sided score above SimOnesidedThreshold, and the
// symmetric score above SimSymThreshold.
func (p *Params) Keep(raw, left, right, sym float64) bool {
	return raw > p.SimRawThreshold &&
		(left > p.SimOnesidedThreshold || right > p.SimOnesidedThreshold) &&
		sym > p.SimSymThreshold
}
