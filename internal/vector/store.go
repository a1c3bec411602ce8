package vector

import (
	"fmt"

	"github.com/jakobytes/elias-1848/internal/corpus"
)

// Store is the read-only verse matrix of a run together with its boundary
// index. Row v of the matrix is verse v of the corpus.
type Store struct {
	vectors Matrix
	index   *corpus.BoundaryIndex
}

// NewStore checks that the matrix has one row per indexed verse.
func NewStore(vectors Matrix, index *corpus.BoundaryIndex) (*Store, error) {
	if vectors.Rows != index.Total() {
		return nil, fmt.Errorf("vector store has %d rows, boundary index covers %d verses", vectors.Rows, index.Total())
	}
	return &Store{vectors: vectors, index: index}, nil
}

// Index returns the boundary index.
func (s *Store) Index() *corpus.BoundaryIndex {
	return s.index
}

// Vectors returns the full verse matrix.
func (s *Store) Vectors() Matrix {
	return s.vectors
}

// Poem returns the vectors of poem i.
func (s *Store) Poem(i int) Matrix {
	start, end := s.index.Range(i)
	return s.vectors.Slice(start, end)
}

// After returns the vectors of all poems after i and their boundaries
// re-based to start at 0.
func (s *Store) After(i int) (Matrix, []int) {
	_, end := s.index.Range(i)
	return s.vectors.Slice(end, s.vectors.Rows), s.index.Suffix(i)
}
