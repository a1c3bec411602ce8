package similarity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakobytes/elias-1848/internal/models"
	"github.com/jakobytes/elias-1848/internal/telemetry"
	"github.com/jakobytes/elias-1848/internal/vector"
)

// UnscorablePair describes a pair left at zero because the left poem times
// the right poem exceeds the element budget. It is logged, never returned.
type UnscorablePair struct {
	Left, Right string
	LeftVerses  int
	RightVerses int
	Budget      int64
}

func (u *UnscorablePair) Error() string {
	return fmt.Sprintf("cannot process pair %s/%s: %d*%d > %d",
		u.Left, u.Right, u.LeftVerses, u.RightVerses, u.Budget)
}

// EmitFunc receives every kept pair. A non-nil error stops the run.
type EmitFunc func(p *models.Pair) error

// Stats summarizes a run over a set of poem indices.
type Stats struct {
	Poems      int `json:"poems"`
	Pairs      int `json:"pairs"`
	Unscorable int `json:"unscorable"`
}

// Engine runs the splitter for each left-hand poem against all later poems
// and applies the threshold cascade.
type Engine struct {
	store         *vector.Store
	splitter      *Splitter
	params        models.Params
	logger        *zap.Logger
	metrics       *telemetry.Metrics
	progressEvery int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets run counters.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithProgress logs progress at info level every n poems.
func WithProgress(n int) EngineOption {
	return func(e *Engine) { e.progressEvery = n }
}

// NewEngine creates an engine over store.
func NewEngine(store *vector.Store, splitter *Splitter, params models.Params, opts ...EngineOption) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{store: store, splitter: splitter, params: params, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run computes the pairs (i, j), j > i, for every i in indices, in the given
// order. Output order follows indices; it is not globally sorted.
func (e *Engine) Run(ctx context.Context, indices []int, emit EmitFunc) (*Stats, error) {
	stats := &Stats{}
	for n, i := range indices {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		kept, unscorable, err := e.ComputePoem(ctx, i, emit)
		if err != nil {
			return stats, err
		}
		stats.Poems++
		stats.Pairs += kept
		stats.Unscorable += unscorable
		if e.progressEvery > 0 && ((n+1)%e.progressEvery == 0 || n+1 == len(indices)) {
			e.logger.Info("progress",
				zap.Int("processed", n+1),
				zap.Int("total", len(indices)),
				zap.Int("pairs", stats.Pairs),
			)
		}
	}
	return stats, nil
}

// ComputePoem scores poem i against poems i+1..N-1 and emits the kept pairs.
// It returns the number of kept and unscorable pairs.
func (e *Engine) ComputePoem(ctx context.Context, i int, emit EmitFunc) (kept, unscorable int, err error) {
	idx := e.store.Index()
	if i < 0 || i >= idx.Len() {
		return 0, 0, fmt.Errorf("poem index %d out of range [0, %d)", i, idx.Len())
	}
	defer e.metrics.PoemProcessed(ctx)
	if i == idx.Len()-1 {
		return 0, 0, nil
	}
	e.logger.Debug("processing", zap.String("poem_id", idx.PoemID(i)))

	x := e.store.Poem(i)
	y, yb := e.store.After(i)
	res, err := e.splitter.Compute(ctx, x, y, yb, e.params.WithAlignments)
	if err != nil {
		return 0, 0, fmt.Errorf("poem %s: %w", idx.PoemID(i), err)
	}

	lenI := idx.PoemLen(i)
	for _, off := range res.Unscorable {
		j := i + 1 + off
		e.logger.Error("unscorable pair", zap.Error(&UnscorablePair{
			Left:        idx.PoemID(i),
			Right:       idx.PoemID(j),
			LeftVerses:  lenI,
			RightVerses: idx.PoemLen(j),
			Budget:      e.splitter.Budget(),
		}))
		e.metrics.PairUnscorable(ctx)
	}

	for q, raw := range res.Scores {
		j := i + 1 + q
		left, right, sym := Scores(raw, lenI, idx.PoemLen(j))
		if !e.params.Keep(raw, left, right, sym) {
			continue
		}
		p := &models.Pair{I: i, J: j, Raw: raw, Left: left, Right: right, Sym: sym}
		if e.params.WithAlignments {
			p.Alignments = alignments(res.Indices, res.Weights, yb[q], yb[q+1], lenI)
		}
		if err := emit(p); err != nil {
			return kept, len(res.Unscorable), fmt.Errorf("emit %s/%s: %w", idx.PoemID(i), idx.PoemID(j), err)
		}
		e.metrics.PairEmitted(ctx)
		kept++
	}
	return kept, len(res.Unscorable), nil
}

// Scores derives the normalized scores of a pair from its raw similarity.
func Scores(raw float64, lenI, lenJ int) (left, right, sym float64) {
	return raw / float64(lenI), raw / float64(lenJ), 2 * raw / float64(lenI+lenJ)
}

// alignments re-bases the rows [lo, hi) of the right-hand block to positions
// inside poem j, dropping unaligned rows and indices outside poem i.
func alignments(indices []int, weights []float64, lo, hi, lenI int) []models.Alignment {
	var out []models.Alignment
	for r := lo; r < hi; r++ {
		a := indices[r]
		if a < 0 || a >= lenI {
			continue
		}
		out = append(out, models.Alignment{PosI: a, PosJ: r - lo, Weight: weights[r]})
	}
	return out
}
