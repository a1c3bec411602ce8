// Package embedding turns verse texts into fixed-dimension vectors.
package embedding

import (
	"context"

	"github.com/jakobytes/elias-1848/internal/vector"
)

// Vectorizer produces one vector per input text, in input order.
type Vectorizer interface {
	Vectorize(ctx context.Context, texts []string) (vector.Matrix, error)
	Dimensions() int
}
