// Package output writes kept poem pairs to CSV, SQLite and XLSX destinations.
package output

import (
	"context"
	"errors"
	"strconv"

	"github.com/jakobytes/elias-1848/internal/models"
)

// Sink receives every kept pair once, in the orientation produced by the
// similarity engine. Sinks that list both directions do so themselves.
type Sink interface {
	Write(ctx context.Context, p *models.PairRecord) error
	Close() error
}

// Multi fans pairs out to several sinks.
type Multi []Sink

// Write writes p to every sink, stopping at the first error.
func (m Multi) Write(ctx context.Context, p *models.PairRecord) error {
	for _, s := range m {
		if err := s.Write(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Similarity and alignment column headers.
var (
	SimilarityHeader         = []string{"poem_id_1", "poem_id_2", "sim_raw", "sim_l", "sim_r", "sim"}
	AlignmentHeader          = []string{"poem_id_1", "pos1", "poem_id_2", "pos2", "sim"}
	AlignmentWithTextsHeader = []string{"poem_id_1", "pos1", "text1", "poem_id_2", "pos2", "text2", "sim"}
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func similarityRow(p *models.PairRecord) []string {
	return []string{p.PoemID1, p.PoemID2, formatFloat(p.Raw), formatFloat(p.Left), formatFloat(p.Right), formatFloat(p.Sym)}
}

func alignmentRow(p *models.PairRecord, a models.AlignmentRecord, withTexts bool) []string {
	if withTexts {
		return []string{p.PoemID1, a.Pos1, a.Text1, p.PoemID2, a.Pos2, a.Text2, formatFloat(a.Weight)}
	}
	return []string{p.PoemID1, a.Pos1, p.PoemID2, a.Pos2, formatFloat(a.Weight)}
}
