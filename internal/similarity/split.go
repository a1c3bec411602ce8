// Package similarity scores every poem against all later poems, splitting the
// right-hand block along poem boundaries so that no kernel call exceeds the
// element budget.
package similarity

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jakobytes/elias-1848/internal/kernel"
	"github.com/jakobytes/elias-1848/internal/telemetry"
	"github.com/jakobytes/elias-1848/internal/vector"
)

// SplitResult is the concatenation of the kernel results over all blocks, in
// right-hand poem order. Alignment rows are relative to the right-hand block
// passed to Compute.
type SplitResult struct {
	kernel.Result
	// Unscorable lists right-hand poem offsets whose |x|*|poem| exceeds the
	// budget; their score is 0 and their rows are unaligned.
	Unscorable []int
}

// Splitter wraps a kernel with a per-call element budget.
type Splitter struct {
	kernel  kernel.Kernel
	budget  int64
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithSplitterLogger sets a logger for splitting decisions (debug level).
func WithSplitterLogger(l *zap.Logger) SplitterOption {
	return func(s *Splitter) { s.logger = l }
}

// WithSplitterMetrics counts kernel calls.
func WithSplitterMetrics(m *telemetry.Metrics) SplitterOption {
	return func(s *Splitter) { s.metrics = m }
}

// NewSplitter returns a splitter that never calls k on more than budget
// similarity matrix elements.
func NewSplitter(k kernel.Kernel, budget int64, opts ...SplitterOption) (*Splitter, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("memory budget must be positive, got %d", budget)
	}
	s := &Splitter{kernel: k, budget: budget, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Budget returns the element budget.
func (s *Splitter) Budget() int64 {
	return s.budget
}

// Compute scores x against every poem of y (poem q occupies rows
// [yb[q], yb[q+1])). Each iteration takes the longest run of remaining poems
// that fits the budget; a single poem that does not fit is reported in
// Unscorable and skipped.
func (s *Splitter) Compute(ctx context.Context, x, y vector.Matrix, yb []int, withAlignments bool) (*SplitResult, error) {
	if len(yb) == 0 || yb[0] != 0 || yb[len(yb)-1] != y.Rows {
		return nil, fmt.Errorf("boundaries %v do not cover %d rows", yb, y.Rows)
	}
	poems := len(yb) - 1
	out := &SplitResult{Result: kernel.Result{Scores: make([]float64, 0, poems)}}
	if withAlignments {
		out.Indices = make([]int, 0, y.Rows)
		out.Weights = make([]float64, 0, y.Rows)
	}
	n := int64(x.Rows)

	for start := 0; start < poems; {
		base := yb[start]
		rest := yb[start:]
		k := sort.Search(len(rest), func(i int) bool {
			return n*int64(rest[i]-base) > s.budget
		}) - 1

		if k == 0 {
			rows := rest[1] - base
			out.Scores = append(out.Scores, 0)
			if withAlignments {
				for r := 0; r < rows; r++ {
					out.Indices = append(out.Indices, kernel.Unaligned)
					out.Weights = append(out.Weights, 0)
				}
			}
			out.Unscorable = append(out.Unscorable, start)
			start++
			continue
		}

		end := start + k
		if start > 0 || end < poems {
			s.logger.Debug("splitting",
				zap.Int("left_rows", x.Rows),
				zap.Int("block_rows", yb[end]-base),
				zap.Int("from_poem", start),
				zap.Int("to_poem", end),
				zap.Int64("budget", s.budget),
			)
		}
		bounds := make([]int, k+1)
		for i := range bounds {
			bounds[i] = rest[i] - base
		}
		res, err := s.kernel.Align(ctx, x, y.Slice(base, yb[end]), bounds, withAlignments)
		if err != nil {
			return nil, fmt.Errorf("kernel call on poems [%d, %d): %w", start, end, err)
		}
		s.metrics.KernelCall(ctx)
		out.Scores = append(out.Scores, res.Scores...)
		if withAlignments {
			out.Indices = append(out.Indices, res.Indices...)
			out.Weights = append(out.Weights, res.Weights...)
		}
		start = end
	}
	return out, nil
}
