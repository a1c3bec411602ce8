// Package runner wires a configuration into a complete similarity run: input,
// vectors, kernel, splitter, engine and output sinks.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakobytes/elias-1848/internal/cli"
	"github.com/jakobytes/elias-1848/internal/config"
	"github.com/jakobytes/elias-1848/internal/corpus"
	"github.com/jakobytes/elias-1848/internal/embedding"
	"github.com/jakobytes/elias-1848/internal/kernel"
	"github.com/jakobytes/elias-1848/internal/models"
	"github.com/jakobytes/elias-1848/internal/output"
	"github.com/jakobytes/elias-1848/internal/shard"
	"github.com/jakobytes/elias-1848/internal/similarity"
	"github.com/jakobytes/elias-1848/internal/storage"
	"github.com/jakobytes/elias-1848/internal/telemetry"
	"github.com/jakobytes/elias-1848/internal/vector"
)

// Runner executes similarity runs for one configuration.
type Runner struct {
	cfg        *config.Config
	logger     *zap.Logger
	vectorizer embedding.Vectorizer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the run logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithVectorizer replaces the n-gram vectorizer built from the configuration.
func WithVectorizer(v embedding.Vectorizer) Option {
	return func(r *Runner) { r.vectorizer = v }
}

// New creates a runner for cfg.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run validates the configuration, computes the pairs of the configured shard
// and writes them to every configured output. Configuration, backend and
// input ordering errors are returned before any similarity is computed.
func (r *Runner) Run(ctx context.Context) (*cli.Summary, error) {
	start := time.Now()
	cfg := r.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pattern, err := shard.CompilePattern(cfg.Input.Pattern)
	if err != nil {
		return nil, err
	}
	k, err := kernel.New(cfg.Similarity.Backend, kernel.Options{
		Threshold: cfg.Similarity.Threshold,
		Rescale:   cfg.Similarity.Rescale,
		Workers:   cfg.Similarity.Workers,
	})
	if err != nil {
		return nil, &config.ConfigurationError{Field: "similarity.backend", Reason: cfg.Similarity.Backend, Err: err}
	}
	vectorizer, err := r.newVectorizer()
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := r.logger.With(zap.String("run_id", runID))

	input, err := corpus.ReadCSVFile(cfg.Input.Path)
	if err != nil {
		return nil, err
	}
	// Reordering would join a split poem, so contiguity is checked on the
	// input as read.
	if _, err := corpus.NewBoundaryIndex(input); err != nil {
		return nil, err
	}
	verses, order := input, []int(nil)
	if pattern != nil {
		order = corpus.MoveToFrontOrder(input, pattern)
		verses = make([]models.Verse, len(order))
		for n, i := range order {
			verses[n] = input[i]
		}
	}
	c, err := corpus.New(verses)
	if err != nil {
		return nil, err
	}
	eligible := shard.Eligible(c.Index.IDs(), pattern)
	indices, err := shard.Assign(eligible, cfg.Job.ID, cfg.Job.Count)
	if err != nil {
		return nil, err
	}
	logger.Info("corpus loaded",
		zap.String("input", cfg.Input.Path),
		zap.Int("poems", c.Index.Len()),
		zap.Int("verses", c.Index.Total()),
		zap.Int("eligible", len(eligible)),
		zap.String("shard", shard.Describe(cfg.Job.ID, cfg.Job.Count)),
		zap.Int("assigned", len(indices)),
	)

	vectors, err := r.loadVectors(ctx, vectorizer, input, logger)
	if err != nil {
		return nil, err
	}
	if order != nil {
		vectors = vectors.Permute(order)
	}
	store, err := vector.NewStore(vectors, c.Index)
	if err != nil {
		return nil, err
	}

	jobID, jobs := 0, 1
	if cfg.Job.ID != nil {
		jobID, jobs = *cfg.Job.ID, *cfg.Job.Count
	}
	metrics, err := telemetry.NewMetrics(string(k.Backend()), jobID, jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	splitter, err := similarity.NewSplitter(k, cfg.Similarity.MemoryBudget,
		similarity.WithSplitterLogger(logger),
		similarity.WithSplitterMetrics(metrics),
	)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "similarity.memory_budget", Reason: "rejected", Err: err}
	}
	params := models.Params{
		SimRawThreshold:      cfg.Similarity.SimRawThreshold,
		SimOnesidedThreshold: cfg.Similarity.SimOnesidedThreshold,
		SimSymThreshold:      cfg.Similarity.SimSymThreshold,
		WithAlignments:       cfg.Output.AlignmentsPath != "",
	}
	engine, err := similarity.NewEngine(store, splitter, params,
		similarity.WithLogger(logger),
		similarity.WithMetrics(metrics),
		similarity.WithProgress(cfg.Progress),
	)
	if err != nil {
		return nil, err
	}

	sinks, err := r.openSinks(ctx, runID)
	if err != nil {
		return nil, err
	}
	stats, runErr := engine.Run(ctx, indices, func(p *models.Pair) error {
		return sinks.Write(ctx, c.Resolve(p, cfg.Output.PrintTexts))
	})
	if sinks.store != nil {
		sinks.store.SetUnscorable(stats.Unscorable)
		if runErr != nil {
			sinks.store.Abort(runErr)
		}
	}
	closeErr := sinks.Close()
	if runErr != nil {
		return nil, errors.Join(runErr, closeErr)
	}
	if closeErr != nil {
		return nil, closeErr
	}

	summary := &cli.Summary{
		RunID:      runID,
		Input:      cfg.Input.Path,
		Shard:      shard.Describe(cfg.Job.ID, cfg.Job.Count),
		Backend:    string(k.Backend()),
		Poems:      c.Index.Len(),
		Verses:     c.Index.Total(),
		Processed:  stats.Poems,
		Pairs:      stats.Pairs,
		Unscorable: stats.Unscorable,
		Outputs:    sinks.paths,
		Duration:   time.Since(start),
	}
	if summary.OutputBytes, err = storage.OutputBytes(sinks.paths...); err != nil {
		logger.Warn("failed to measure outputs", zap.Error(err))
	}
	logger.Info("run completed",
		zap.Int("processed", stats.Poems),
		zap.Int("pairs", stats.Pairs),
		zap.Int("unscorable", stats.Unscorable),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (r *Runner) newVectorizer() (embedding.Vectorizer, error) {
	if r.vectorizer != nil {
		return r.vectorizer, nil
	}
	vc := r.cfg.Vectorizer
	weighting, err := embedding.ParseWeighting(vc.Weighting)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "vectorizer.weighting", Reason: vc.Weighting, Err: err}
	}
	cache, err := embedding.NewCache(vc.CacheSize)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "vectorizer.cache_size", Reason: "rejected", Err: err}
	}
	v, err := embedding.NewNGramVectorizer(vc.NGram, vc.Dimensions, weighting,
		embedding.WithCache(cache),
		embedding.WithLogger(r.logger),
	)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "vectorizer", Reason: "rejected", Err: err}
	}
	return v, nil
}

// loadVectors returns one vector per input verse, in input order. A vector
// file is used when its fingerprint matches the verse texts and vectorizer
// settings; otherwise the vectors are computed and the file is rewritten.
func (r *Runner) loadVectors(ctx context.Context, v embedding.Vectorizer, verses []models.Verse, logger *zap.Logger) (vector.Matrix, error) {
	texts := make([]string, len(verses))
	for i, verse := range verses {
		texts[i] = verse.Text
	}
	path := r.cfg.Vectorizer.VectorsPath
	var fp vector.Fingerprint
	if path != "" {
		fp = vector.NewFingerprint(r.vectorSettings(v), texts)
		m, saved, err := vector.Load(path)
		switch {
		case err == nil && saved == fp && m.Rows == len(verses) && m.Dim == v.Dimensions():
			logger.Info("loaded vectors", zap.String("path", path), zap.Int("rows", m.Rows))
			return m, nil
		case err == nil:
			logger.Warn("vector file does not match input, recomputing",
				zap.String("path", path),
				zap.Int("rows", m.Rows), zap.Int("dim", m.Dim),
				zap.Int("want_rows", len(verses)), zap.Int("want_dim", v.Dimensions()),
				zap.Bool("fingerprint_match", saved == fp),
			)
		case !errors.Is(err, vector.ErrNoCache):
			logger.Warn("failed to load vectors, recomputing", zap.String("path", path), zap.Error(err))
		}
	}

	m, err := v.Vectorize(ctx, texts)
	if err != nil {
		return vector.Matrix{}, fmt.Errorf("vectorize: %w", err)
	}
	if path != "" {
		if err := vector.Save(path, m, fp); err != nil {
			logger.Warn("failed to save vectors", zap.String("path", path), zap.Error(err))
		} else {
			logger.Info("saved vectors", zap.String("path", path))
		}
	}
	return m, nil
}

func (r *Runner) vectorSettings(v embedding.Vectorizer) string {
	vc := r.cfg.Vectorizer
	return fmt.Sprintf("ngram=%d dim=%d weighting=%s", vc.NGram, v.Dimensions(), vc.Weighting)
}

type sinkSet struct {
	output.Multi
	store *output.StorageSink
	paths []string
}

func (r *Runner) openSinks(ctx context.Context, runID string) (*sinkSet, error) {
	out := r.cfg.Output
	set := &sinkSet{}
	fail := func(err error) (*sinkSet, error) {
		_ = set.Close()
		return nil, err
	}

	if out.SimilaritiesPath != "" || out.AlignmentsPath != "" {
		s, err := output.OpenCSVSink(out.SimilaritiesPath, out.AlignmentsPath, out.PrintTexts)
		if err != nil {
			return fail(err)
		}
		set.Multi = append(set.Multi, s)
		for _, p := range []string{out.SimilaritiesPath, out.AlignmentsPath} {
			if p != "" && p != "-" {
				set.paths = append(set.paths, p)
			}
		}
	}
	if out.XLSXPath != "" {
		s, err := output.NewXLSXSink(out.XLSXPath, out.AlignmentsPath != "", out.PrintTexts)
		if err != nil {
			return fail(err)
		}
		set.Multi = append(set.Multi, s)
		set.paths = append(set.paths, out.XLSXPath)
	}
	if out.SQLitePath != "" {
		st, err := storage.NewSQLiteStorage(out.SQLitePath)
		if err != nil {
			return fail(err)
		}
		run := &models.Run{
			ID:       runID,
			Input:    r.cfg.Input.Path,
			Shard:    shard.Describe(r.cfg.Job.ID, r.cfg.Job.Count),
			Settings: r.settings(),
		}
		s, err := output.NewStorageSink(ctx, st, run, output.DefaultBatchSize)
		if err != nil {
			_ = st.Close()
			return fail(err)
		}
		set.Multi = append(set.Multi, s)
		set.store = s
		set.paths = append(set.paths, out.SQLitePath)
	}
	return set, nil
}

func (r *Runner) settings() map[string]interface{} {
	s := r.cfg.Similarity
	v := r.cfg.Vectorizer
	return map[string]interface{}{
		"dimensions":       v.Dimensions,
		"ngram":            v.NGram,
		"weighting":        v.Weighting,
		"threshold":        s.Threshold,
		"rescale":          s.Rescale,
		"sim_raw_thr":      s.SimRawThreshold,
		"sim_onesided_thr": s.SimOnesidedThreshold,
		"sim_sym_thr":      s.SimSymThreshold,
		"memory_budget":    s.MemoryBudget,
		"pattern":          r.cfg.Input.Pattern,
	}
}
