// Package kernel scores one block of left-hand verses against a block of
// right-hand poems, optionally recovering the best verse alignment.
package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/jakobytes/elias-1848/internal/vector"
)

// Unaligned marks a right-hand verse with no aligned left-hand verse.
const Unaligned = -1

var (
	// ErrUnknownBackend is returned for backend names other than cpu and gpu.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrBackendUnavailable is returned when a known backend is not compiled in.
	ErrBackendUnavailable = errors.New("backend not available")
)

// Backend names where kernel computations run.
type Backend string

const (
	// BackendCPU scores poems on goroutines.
	BackendCPU Backend = "cpu"
	// BackendGPU is reserved for accelerator builds.
	BackendGPU Backend = "gpu"
)

// Options configures verse-level scoring.
type Options struct {
	// Threshold zeroes verse similarities below it.
	Threshold float64
	// Rescale maps kept similarities s to (s-Threshold)/(1-Threshold).
	Rescale bool
	// Workers bounds the goroutines of one call; <= 0 means GOMAXPROCS.
	Workers int
}

// Result holds the output channels of one kernel call. Indices and Weights are
// nil unless alignments were requested; otherwise they have one entry per
// right-hand row, Indices holding the aligned left row or Unaligned.
type Result struct {
	Scores  []float64
	Indices []int
	Weights []float64
}

// Kernel computes the aggregate similarity of x against every poem of y,
// where poem q of y occupies rows [yb[q], yb[q+1]).
type Kernel interface {
	Align(ctx context.Context, x, y vector.Matrix, yb []int, withAlignments bool) (*Result, error)
	Backend() Backend
}

// New creates a kernel for the named backend. The empty name selects cpu.
func New(backend string, opts Options) (Kernel, error) {
	switch Backend(backend) {
	case BackendCPU, "":
		return NewCPUKernel(opts)
	case BackendGPU:
		return NewGPUKernel(opts)
	default:
		return nil, fmt.Errorf("%w: %q (supported: cpu, gpu)", ErrUnknownBackend, backend)
	}
}

func checkShapes(x, y vector.Matrix, yb []int) error {
	if len(yb) == 0 || yb[0] != 0 || yb[len(yb)-1] != y.Rows {
		return fmt.Errorf("boundaries %v do not cover %d rows", yb, y.Rows)
	}
	if x.Rows > 0 && y.Rows > 0 && x.Dim != y.Dim {
		return fmt.Errorf("dimension mismatch: x has %d, y has %d", x.Dim, y.Dim)
	}
	return nil
}
