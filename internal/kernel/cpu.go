package kernel

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jakobytes/elias-1848/internal/vector"
)

// CPUKernel scores each right-hand poem with a monotonic alignment over the
// thresholded cosine matrix: the aggregate is the maximum total weight of verse
// pairs (a, b) that can be matched without crossing. Right-hand poems of one
// call are scored concurrently.
type CPUKernel struct {
	opts Options
}

// NewCPUKernel validates opts and returns a CPU kernel.
func NewCPUKernel(opts Options) (*CPUKernel, error) {
	if opts.Rescale && opts.Threshold >= 1 {
		return nil, fmt.Errorf("rescale requires threshold < 1, got %v", opts.Threshold)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &CPUKernel{opts: opts}, nil
}

// Backend returns BackendCPU.
func (k *CPUKernel) Backend() Backend {
	return BackendCPU
}

// Align allocates the |x|*|y| similarity block once and fills it poem by poem.
func (k *CPUKernel) Align(ctx context.Context, x, y vector.Matrix, yb []int, withAlignments bool) (*Result, error) {
	if err := checkShapes(x, y, yb); err != nil {
		return nil, err
	}
	res := &Result{Scores: make([]float64, len(yb)-1)}
	if withAlignments {
		res.Indices = make([]int, y.Rows)
		res.Weights = make([]float64, y.Rows)
		for i := range res.Indices {
			res.Indices[i] = Unaligned
		}
	}
	// Column-major per right-hand row: poem q owns sims[yb[q]*n : yb[q+1]*n].
	sims := make([]float32, x.Rows*y.Rows)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(k.opts.Workers)
	for q := 0; q < len(yb)-1; q++ {
		q := q
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			k.alignPoem(x, y, yb[q], yb[q+1], sims, res, q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (k *CPUKernel) weight(sim float64) float64 {
	t := k.opts.Threshold
	if sim < t {
		return 0
	}
	if k.opts.Rescale {
		return (sim - t) / (1 - t)
	}
	return sim
}

func (k *CPUKernel) alignPoem(x, y vector.Matrix, lo, hi int, sims []float32, res *Result, q int) {
	n, m := x.Rows, hi-lo
	s := sims[lo*n : hi*n]
	for b := 0; b < m; b++ {
		yr := y.Row(lo + b)
		for a := 0; a < n; a++ {
			s[b*n+a] = float32(k.weight(vector.InnerProduct(x.Row(a), yr)))
		}
	}

	// d[a*(m+1)+b] is the best total over x[:a] and y[lo:lo+b].
	w := m + 1
	d := make([]float64, (n+1)*w)
	for a := 1; a <= n; a++ {
		for b := 1; b <= m; b++ {
			best := d[(a-1)*w+b]
			if left := d[a*w+b-1]; left > best {
				best = left
			}
			if v := float64(s[(b-1)*n+a-1]); v > 0 {
				if diag := d[(a-1)*w+b-1] + v; diag > best {
					best = diag
				}
			}
			d[a*w+b] = best
		}
	}
	res.Scores[q] = d[n*w+m]

	if res.Indices == nil {
		return
	}
	for a, b := n, m; a > 0 && b > 0; {
		v := float64(s[(b-1)*n+a-1])
		switch {
		case v > 0 && d[a*w+b] == d[(a-1)*w+b-1]+v:
			res.Indices[lo+b-1] = a - 1
			res.Weights[lo+b-1] = v
			a--
			b--
		case d[a*w+b] == d[(a-1)*w+b]:
			a--
		default:
			b--
		}
	}
}
