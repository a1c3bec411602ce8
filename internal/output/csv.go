package output

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jakobytes/elias-1848/internal/models"
)

// CSVSink writes similarity and alignment rows for both directions of every pair.
type CSVSink struct {
	sims       *csv.Writer
	aligns     *csv.Writer
	printTexts bool
	closers    []io.Closer
}

// NewCSVSink writes to sims and aligns; either may be nil to skip that table.
func NewCSVSink(sims, aligns io.Writer, printTexts bool) (*CSVSink, error) {
	s := &CSVSink{printTexts: printTexts}
	if sims != nil {
		s.sims = csv.NewWriter(sims)
		if err := s.sims.Write(SimilarityHeader); err != nil {
			return nil, err
		}
	}
	if aligns != nil {
		s.aligns = csv.NewWriter(aligns)
		header := AlignmentHeader
		if printTexts {
			header = AlignmentWithTextsHeader
		}
		if err := s.aligns.Write(header); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// OpenCSVSink creates the files at simPath and alignPath. "-" is standard
// output and an empty path skips the table.
func OpenCSVSink(simPath, alignPath string, printTexts bool) (*CSVSink, error) {
	var closers []io.Closer
	open := func(path string) (io.Writer, error) {
		switch path {
		case "":
			return nil, nil
		case "-":
			return os.Stdout, nil
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		closers = append(closers, f)
		return f, nil
	}
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	sims, err := open(simPath)
	if err != nil {
		return nil, err
	}
	aligns, err := open(alignPath)
	if err != nil {
		closeAll()
		return nil, err
	}
	s, err := NewCSVSink(sims, aligns, printTexts)
	if err != nil {
		closeAll()
		return nil, err
	}
	s.closers = closers
	return s, nil
}

// Write writes p and its reverse.
func (s *CSVSink) Write(_ context.Context, p *models.PairRecord) error {
	for _, q := range []*models.PairRecord{p, p.Reverse()} {
		if s.sims != nil {
			if err := s.sims.Write(similarityRow(q)); err != nil {
				return err
			}
		}
		if s.aligns != nil {
			for _, a := range q.Alignments {
				if err := s.aligns.Write(alignmentRow(q, a, s.printTexts)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Close flushes the writers and closes any files opened by OpenCSVSink.
func (s *CSVSink) Close() error {
	var errs []error
	for _, w := range []*csv.Writer{s.sims, s.aligns} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
