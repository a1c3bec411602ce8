// Package vector holds verse vectors as a dense row-major matrix and the
// read-only store that pairs them with the poem boundary index.
package vector

import "fmt"

// Matrix is a dense row-major float32 matrix. Slices of a Matrix share Data.
type Matrix struct {
	Rows int
	Dim  int
	Data []float32
}

// NewMatrix allocates a zeroed rows x dim matrix.
func NewMatrix(rows, dim int) Matrix {
	return Matrix{Rows: rows, Dim: dim, Data: make([]float32, rows*dim)}
}

// FromRows copies equally sized rows into a Matrix.
func FromRows(rows [][]float32) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, nil
	}
	dim := len(rows[0])
	m := NewMatrix(len(rows), dim)
	for i, r := range rows {
		if len(r) != dim {
			return Matrix{}, fmt.Errorf("vector dimension mismatch at row %d: got %d, expected %d", i, len(r), dim)
		}
		copy(m.Row(i), r)
	}
	return m, nil
}

// Row returns row i as a view into the matrix.
func (m Matrix) Row(i int) []float32 {
	return m.Data[i*m.Dim : (i+1)*m.Dim]
}

// Slice returns rows [start, end) without copying.
func (m Matrix) Slice(start, end int) Matrix {
	return Matrix{Rows: end - start, Dim: m.Dim, Data: m.Data[start*m.Dim : end*m.Dim]}
}

// Permute returns a new matrix whose row k is row order[k] of m.
func (m Matrix) Permute(order []int) Matrix {
	out := NewMatrix(len(order), m.Dim)
	for k, i := range order {
		copy(out.Row(k), m.Row(i))
	}
	return out
}
