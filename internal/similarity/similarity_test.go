package similarity

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/jakobytes/elias-1848/internal/corpus"
	"github.com/jakobytes/elias-1848/internal/kernel"
	"github.com/jakobytes/elias-1848/internal/models"
	"github.com/jakobytes/elias-1848/internal/vector"
)

// recordingKernel wraps a kernel and records the size of every call.
type recordingKernel struct {
	kernel.Kernel
	calls []int64
}

func (r *recordingKernel) Align(ctx context.Context, x, y vector.Matrix, yb []int, withAlignments bool) (*kernel.Result, error) {
	r.calls = append(r.calls, int64(x.Rows)*int64(y.Rows))
	return r.Kernel.Align(ctx, x, y, yb, withAlignments)
}

type failingKernel struct{ kernel.Kernel }

var errKernel = errors.New("device lost")

func (failingKernel) Align(context.Context, vector.Matrix, vector.Matrix, []int, bool) (*kernel.Result, error) {
	return nil, errKernel
}

func cpuKernel(t testing.TB, threshold float64) kernel.Kernel {
	t.Helper()
	k, err := kernel.NewCPUKernel(kernel.Options{Threshold: threshold, Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	return k
}

// randomStore builds a corpus of poems with the given lengths and random unit
// vectors.
func randomStore(t testing.TB, seed int64, dim int, lengths ...int) *vector.Store {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	var verses []models.Verse
	var rows [][]float32
	for p, n := range lengths {
		for v := 0; v < n; v++ {
			verses = append(verses, models.Verse{PoemID: string(rune('A' + p)), Pos: "1"})
			row := make([]float32, dim)
			var norm float64
			for d := range row {
				row[d] = float32(rng.Float64())
				norm += float64(row[d] * row[d])
			}
			for d := range row {
				row[d] /= float32(math.Sqrt(norm))
			}
			rows = append(rows, row)
		}
	}
	return newStore(t, verses, rows)
}

func newStore(t testing.TB, verses []models.Verse, rows [][]float32) *vector.Store {
	t.Helper()
	idx, err := corpus.NewBoundaryIndex(verses)
	if err != nil {
		t.Fatal(err)
	}
	m, err := vector.FromRows(rows)
	if err != nil {
		t.Fatal(err)
	}
	s, err := vector.NewStore(m, idx)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSplitter_ResultIndependentOfBudget(t *testing.T) {
	store := randomStore(t, 1, 8, 3, 1, 4, 2, 5, 1, 3)
	k := cpuKernel(t, 0.7)
	x := store.Poem(0)
	y, yb := store.After(0)

	whole, err := NewSplitter(k, math.MaxInt64)
	if err != nil {
		t.Fatal(err)
	}
	want, err := whole.Compute(context.Background(), x, y, yb, true)
	if err != nil {
		t.Fatal(err)
	}

	// 3 left verses against 16 right verses; every budget fits the longest poem.
	for _, budget := range []int64{15, 18, 24, 48} {
		rec := &recordingKernel{Kernel: k}
		s, _ := NewSplitter(rec, budget)
		got, err := s.Compute(context.Background(), x, y, yb, true)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got.Scores, want.Scores) {
			t.Errorf("budget %d: scores %v, want %v", budget, got.Scores, want.Scores)
		}
		if !reflect.DeepEqual(got.Indices, want.Indices) || !reflect.DeepEqual(got.Weights, want.Weights) {
			t.Errorf("budget %d: alignments differ", budget)
		}
		if len(got.Unscorable) != 0 {
			t.Errorf("budget %d: unexpected unscorable poems %v", budget, got.Unscorable)
		}
		for _, c := range rec.calls {
			if c > budget {
				t.Errorf("budget %d: kernel called on %d elements", budget, c)
			}
		}
		if budget < int64(x.Rows*y.Rows) && len(rec.calls) < 2 {
			t.Errorf("budget %d: expected a split, got %d calls", budget, len(rec.calls))
		}
	}
}

func TestSplitter_UnscorablePoemIsSkipped(t *testing.T) {
	// Left poem of 2 verses, right poems of 1, 5 and 2 verses; budget 6
	// cannot hold the 5-verse poem.
	store := randomStore(t, 2, 4, 2, 1, 5, 2)
	k := cpuKernel(t, 0)
	x := store.Poem(0)
	y, yb := store.After(0)

	rec := &recordingKernel{Kernel: k}
	s, _ := NewSplitter(rec, 6)
	got, err := s.Compute(context.Background(), x, y, yb, true)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Unscorable, []int{1}) {
		t.Fatalf("Unscorable = %v, want [1]", got.Unscorable)
	}
	if got.Scores[1] != 0 {
		t.Errorf("unscorable poem score = %v", got.Scores[1])
	}
	if got.Scores[0] <= 0 || got.Scores[2] <= 0 {
		t.Errorf("poems around the unscorable one should still be scored: %v", got.Scores)
	}
	if len(got.Indices) != y.Rows {
		t.Fatalf("len(Indices) = %d, want %d", len(got.Indices), y.Rows)
	}
	for r := yb[1]; r < yb[2]; r++ {
		if got.Indices[r] != kernel.Unaligned || got.Weights[r] != 0 {
			t.Errorf("row %d of unscorable poem is aligned", r)
		}
	}
	for _, c := range rec.calls {
		if c > 6 {
			t.Errorf("kernel called on %d elements", c)
		}
	}
}

func TestSplitter_KernelError(t *testing.T) {
	store := randomStore(t, 3, 4, 1, 1)
	s, _ := NewSplitter(failingKernel{}, 100)
	y, yb := store.After(0)
	if _, err := s.Compute(context.Background(), store.Poem(0), y, yb, false); !errors.Is(err, errKernel) {
		t.Errorf("expected wrapped kernel error, got %v", err)
	}
}

func TestNewSplitter_InvalidBudget(t *testing.T) {
	if _, err := NewSplitter(cpuKernel(t, 0), 0); err == nil {
		t.Error("expected error for zero budget")
	}
}

func collect(t *testing.T, e *Engine, indices []int) ([]*models.Pair, *Stats) {
	t.Helper()
	var pairs []*models.Pair
	stats, err := e.Run(context.Background(), indices, func(p *models.Pair) error {
		pairs = append(pairs, p)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return pairs, stats
}

func TestEngine_EndToEnd(t *testing.T) {
	e1 := []float32{1, 0, 0, 0}
	e2 := []float32{0, 1, 0, 0}
	e3 := []float32{0, 0, 1, 0}
	c := []float32{0, 0.8, 0.6, 0}
	verses := []models.Verse{
		{PoemID: "A", Pos: "1"}, {PoemID: "A", Pos: "2"},
		{PoemID: "B", Pos: "1"}, {PoemID: "B", Pos: "2"}, {PoemID: "B", Pos: "3"},
		{PoemID: "C", Pos: "1"},
	}
	store := newStore(t, verses, [][]float32{e1, e2, e1, e3, e2, c})
	s, _ := NewSplitter(cpuKernel(t, 0.5), 1<<20)
	e, err := NewEngine(store, s, models.Params{WithAlignments: true})
	if err != nil {
		t.Fatal(err)
	}
	pairs, stats := collect(t, e, []int{0, 1, 2})
	if stats.Poems != 3 || stats.Pairs != 3 || stats.Unscorable != 0 {
		t.Errorf("stats = %+v", stats)
	}

	want := []models.Pair{
		{I: 0, J: 1, Raw: 2, Left: 1, Right: 2.0 / 3, Sym: 0.8,
			Alignments: []models.Alignment{{PosI: 0, PosJ: 0, Weight: 1}, {PosI: 1, PosJ: 2, Weight: 1}}},
		{I: 0, J: 2, Raw: 0.8, Left: 0.4, Right: 0.8, Sym: 1.6 / 3,
			Alignments: []models.Alignment{{PosI: 1, PosJ: 0, Weight: 0.8}}},
		{I: 1, J: 2, Raw: 0.8, Left: 0.8 / 3, Right: 0.8, Sym: 0.4,
			Alignments: []models.Alignment{{PosI: 2, PosJ: 0, Weight: 0.8}}},
	}
	if len(pairs) != len(want) {
		t.Fatalf("got %d pairs, want %d", len(pairs), len(want))
	}
	near := func(a, b float64) bool { return math.Abs(a-b) < 1e-6 }
	for n, w := range want {
		p := pairs[n]
		if p.I != w.I || p.J != w.J {
			t.Errorf("pair %d = (%d,%d), want (%d,%d)", n, p.I, p.J, w.I, w.J)
			continue
		}
		if !near(p.Raw, w.Raw) || !near(p.Left, w.Left) || !near(p.Right, w.Right) || !near(p.Sym, w.Sym) {
			t.Errorf("pair (%d,%d) scores = %v %v %v %v", p.I, p.J, p.Raw, p.Left, p.Right, p.Sym)
		}
		if len(p.Alignments) != len(w.Alignments) {
			t.Errorf("pair (%d,%d) alignments = %+v", p.I, p.J, p.Alignments)
			continue
		}
		for k, a := range w.Alignments {
			g := p.Alignments[k]
			if g.PosI != a.PosI || g.PosJ != a.PosJ || !near(g.Weight, a.Weight) {
				t.Errorf("pair (%d,%d) alignment %d = %+v, want %+v", p.I, p.J, k, g, a)
			}
		}
	}
}

func TestEngine_ThresholdCascade(t *testing.T) {
	store := randomStore(t, 4, 6, 4, 3, 5, 2, 4)
	s, _ := NewSplitter(cpuKernel(t, 0.8), 1<<20)
	loose, _ := NewEngine(store, s, models.Params{})
	strict, _ := NewEngine(store, s, models.Params{SimRawThreshold: 0.5, SimOnesidedThreshold: 0.2, SimSymThreshold: 0.15})
	all := []int{0, 1, 2, 3, 4}

	loosePairs, _ := collect(t, loose, all)
	strictPairs, _ := collect(t, strict, all)
	if len(strictPairs) > len(loosePairs) {
		t.Fatalf("raising thresholds added pairs: %d > %d", len(strictPairs), len(loosePairs))
	}
	kept := make(map[[2]int]bool)
	for _, p := range loosePairs {
		kept[[2]int{p.I, p.J}] = true
	}
	for _, p := range strictPairs {
		if !kept[[2]int{p.I, p.J}] {
			t.Errorf("pair (%d,%d) kept only under stricter thresholds", p.I, p.J)
		}
		if p.Raw <= 0.5 || (p.Left <= 0.2 && p.Right <= 0.2) || p.Sym <= 0.15 {
			t.Errorf("pair (%d,%d) violates thresholds: %+v", p.I, p.J, p)
		}
	}
}

func TestEngine_AlignmentBounds(t *testing.T) {
	store := randomStore(t, 5, 5, 3, 4, 2, 6)
	s, _ := NewSplitter(cpuKernel(t, 0.6), 12)
	e, _ := NewEngine(store, s, models.Params{WithAlignments: true})
	pairs, _ := collect(t, e, []int{0, 1, 2, 3})
	idx := store.Index()
	for _, p := range pairs {
		lastI := -1
		for _, a := range p.Alignments {
			if a.PosI < 0 || a.PosI >= idx.PoemLen(p.I) || a.PosJ < 0 || a.PosJ >= idx.PoemLen(p.J) {
				t.Errorf("pair (%d,%d): alignment %+v out of bounds", p.I, p.J, a)
			}
			if a.PosI <= lastI {
				t.Errorf("pair (%d,%d): alignments cross: %+v", p.I, p.J, p.Alignments)
			}
			lastI = a.PosI
			if a.Weight <= 0 {
				t.Errorf("pair (%d,%d): non-positive weight %v", p.I, p.J, a.Weight)
			}
		}
	}
}

func TestEngine_UnscorablePairIsZero(t *testing.T) {
	// A (2 verses) vs B (5 verses) exceeds a budget of 8; A vs C still fits.
	store := randomStore(t, 6, 4, 2, 5, 1)
	s, _ := NewSplitter(cpuKernel(t, 0), 8)
	e, _ := NewEngine(store, s, models.Params{SimRawThreshold: -1, SimOnesidedThreshold: -1, SimSymThreshold: -1})
	var first []*models.Pair
	_, _, err := e.ComputePoem(context.Background(), 0, func(p *models.Pair) error {
		first = append(first, p)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("got %d pairs, want 2", len(first))
	}
	if first[0].J != 1 || first[0].Raw != 0 || first[0].Sym != 0 {
		t.Errorf("unscorable pair = %+v", first[0])
	}
	if first[1].J != 2 || first[1].Raw <= 0 {
		t.Errorf("pair after the unscorable one = %+v", first[1])
	}
	_, stats := collect(t, e, []int{0})
	if stats.Unscorable != 1 {
		t.Errorf("stats.Unscorable = %d", stats.Unscorable)
	}
}

func TestEngine_LastPoemProducesNothing(t *testing.T) {
	store := randomStore(t, 7, 4, 2, 3)
	s, _ := NewSplitter(cpuKernel(t, 0), 100)
	e, _ := NewEngine(store, s, models.Params{SimRawThreshold: -1, SimOnesidedThreshold: -1, SimSymThreshold: -1})
	pairs, stats := collect(t, e, []int{1})
	if len(pairs) != 0 || stats.Poems != 1 {
		t.Errorf("pairs=%v stats=%+v", pairs, stats)
	}
	if _, err := e.Run(context.Background(), []int{2}, func(*models.Pair) error { return nil }); err == nil {
		t.Error("expected out of range error")
	}
}

func TestEngine_EmitErrorStops(t *testing.T) {
	store := randomStore(t, 8, 4, 2, 2, 2)
	s, _ := NewSplitter(cpuKernel(t, 0), 100)
	e, _ := NewEngine(store, s, models.Params{SimRawThreshold: -1, SimOnesidedThreshold: -1, SimSymThreshold: -1})
	stop := errors.New("disk full")
	_, err := e.Run(context.Background(), []int{0, 1}, func(*models.Pair) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("expected emit error, got %v", err)
	}
}

func TestEngine_Cancelled(t *testing.T) {
	store := randomStore(t, 9, 4, 2, 2)
	s, _ := NewSplitter(cpuKernel(t, 0), 100)
	e, _ := NewEngine(store, s, models.Params{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Run(ctx, []int{0}, func(*models.Pair) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewEngine_InvalidParams(t *testing.T) {
	store := randomStore(t, 10, 4, 1, 1)
	s, _ := NewSplitter(cpuKernel(t, 0), 100)
	if _, err := NewEngine(store, s, models.Params{SimSymThreshold: math.NaN()}); err == nil {
		t.Error("expected error for NaN threshold")
	}
}

func TestScores_Symmetric(t *testing.T) {
	for _, c := range []struct {
		raw        float64
		lenI, lenJ int
	}{{2, 2, 3}, {0.5, 1, 7}, {4.2, 9, 9}} {
		l1, r1, s1 := Scores(c.raw, c.lenI, c.lenJ)
		l2, r2, s2 := Scores(c.raw, c.lenJ, c.lenI)
		if l1 != r2 || r1 != l2 || s1 != s2 {
			t.Errorf("Scores not symmetric for %+v", c)
		}
	}
}

func BenchmarkEngine_Run(b *testing.B) {
	lengths := make([]int, 200)
	for i := range lengths {
		lengths[i] = 3 + i%17
	}
	store := randomStore(b, 11, 64, lengths...)
	k, _ := kernel.NewCPUKernel(kernel.Options{Threshold: 0.75})
	s, _ := NewSplitter(k, 4096)
	e, _ := NewEngine(store, s, models.Params{SimRawThreshold: 1, SimOnesidedThreshold: 0.1})
	indices := make([]int, len(lengths))
	for i := range indices {
		indices[i] = i
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Run(context.Background(), indices, func(*models.Pair) error { return nil }); err != nil {
			b.Fatal(err)
		}
	}
}
