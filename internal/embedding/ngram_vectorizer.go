package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakobytes/elias-1848/internal/vector"
	"github.com/jakobytes/elias-1848/pkg/utils"
)

// NGramVectorizer maps a verse to L2-normalized counts of the corpus's most
// frequent character n-grams, so inner products are cosine similarities.
type NGramVectorizer struct {
	n         int
	dim       int
	weighting Weighting
	cache     *Cache
	logger    *zap.Logger
}

// Option configures an NGramVectorizer.
type Option func(*NGramVectorizer)

// WithLogger sets a logger for vectorization progress.
func WithLogger(l *zap.Logger) Option {
	return func(v *NGramVectorizer) { v.logger = l }
}

// WithCache reuses vectors of repeated verse texts within one Vectorize call.
func WithCache(c *Cache) Option {
	return func(v *NGramVectorizer) { v.cache = c }
}

// NewNGramVectorizer creates a vectorizer for n-grams of size n producing dim-dimensional vectors.
func NewNGramVectorizer(n, dim int, weighting Weighting, opts ...Option) (*NGramVectorizer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("n-gram size must be positive, got %d", n)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dim)
	}
	v := &NGramVectorizer{n: n, dim: dim, weighting: weighting, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Dimensions returns the vector dimension.
func (v *NGramVectorizer) Dimensions() int {
	return v.dim
}

// Vectorize selects the feature n-grams from texts and returns one row per text.
func (v *NGramVectorizer) Vectorize(ctx context.Context, texts []string) (vector.Matrix, error) {
	features := topNGrams(texts, v.n, v.dim)
	// Feature columns depend on the whole input; cached rows from an earlier call are stale.
	v.cache.Purge()

	m := vector.NewMatrix(len(texts), v.dim)
	hits := 0
	for i, text := range texts {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return vector.Matrix{}, err
			}
		}
		row := m.Row(i)
		if cached, ok := v.cache.Get(text); ok {
			copy(row, cached)
			hits++
			continue
		}
		for _, g := range NGrams(text, v.n) {
			if f, ok := features[g]; ok {
				row[f]++
			}
		}
		for f := range row {
			row[f] = v.weighting.apply(row[f])
		}
		utils.NormalizeL2(row)
		v.cache.Add(text, append([]float32(nil), row...))
	}
	v.logger.Info("vectorization completed",
		zap.Int("verses", len(texts)),
		zap.Int("features", len(features)),
		zap.Int("cache_hits", hits),
	)
	return m, nil
}
