package output

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/jakobytes/elias-1848/internal/models"
)

// Sheet names of the XLSX export.
const (
	SimilaritiesSheet = "similarities"
	AlignmentsSheet   = "alignments"
)

// XLSXSink streams pairs into a workbook saved on Close. Both directions are
// written, as in the CSV output. A sheet that reaches the Excel row limit is
// continued in a new sheet named with a _2, _3, ... suffix.
type XLSXSink struct {
	path       string
	file       *excelize.File
	sims       *sheetStream
	aligns     *sheetStream
	maxRows    int
	printTexts bool
}

// sheetStream is one logical sheet, possibly spread over several parts.
type sheetStream struct {
	name   string
	header []interface{}
	part   int
	row    int
	w      *excelize.StreamWriter
}

func (s *sheetStream) sheetName() string {
	if s.part <= 1 {
		return s.name
	}
	return fmt.Sprintf("%s_%d", s.name, s.part)
}

// NewXLSXSink creates a workbook with a similarities sheet and, when
// withAlignments is set, an alignments sheet.
func NewXLSXSink(path string, withAlignments, printTexts bool) (*XLSXSink, error) {
	f := excelize.NewFile()
	s := &XLSXSink{path: path, file: f, maxRows: excelize.TotalRows, printTexts: printTexts}

	s.sims = &sheetStream{name: SimilaritiesSheet, header: cells(SimilarityHeader)}
	if err := s.nextPart(s.sims); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}

	if withAlignments {
		header := AlignmentHeader
		if printTexts {
			header = AlignmentWithTextsHeader
		}
		s.aligns = &sheetStream{name: AlignmentsSheet, header: cells(header)}
		if err := s.nextPart(s.aligns); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return s, nil
}

func cells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// nextPart flushes the current part of ss, if any, and starts the next one
// with the header row.
func (s *XLSXSink) nextPart(ss *sheetStream) error {
	if ss.w != nil {
		if err := ss.w.Flush(); err != nil {
			return fmt.Errorf("failed to flush sheet %s: %w", ss.sheetName(), err)
		}
		ss.w = nil
	}
	ss.part++
	ss.row = 0
	name := ss.sheetName()
	index, err := s.file.NewSheet(name)
	if err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	if ss.part == 1 && ss.name == SimilaritiesSheet {
		s.file.SetActiveSheet(index)
	}
	if ss.w, err = s.file.NewStreamWriter(name); err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}
	return s.setRow(ss, ss.header)
}

func (s *XLSXSink) setRow(ss *sheetStream, values []interface{}) error {
	ss.row++
	cell, err := excelize.CoordinatesToCellName(1, ss.row)
	if err != nil {
		return err
	}
	if err := ss.w.SetRow(cell, values); err != nil {
		return fmt.Errorf("write %s row %d: %w", ss.sheetName(), ss.row, err)
	}
	return nil
}

func (s *XLSXSink) appendRow(ss *sheetStream, values []interface{}) error {
	if ss.row >= s.maxRows {
		if err := s.nextPart(ss); err != nil {
			return err
		}
	}
	return s.setRow(ss, values)
}

// Write appends p and its reverse. Scores are stored as numbers.
func (s *XLSXSink) Write(_ context.Context, p *models.PairRecord) error {
	for _, q := range []*models.PairRecord{p, p.Reverse()} {
		if err := s.appendRow(s.sims, []interface{}{q.PoemID1, q.PoemID2, q.Raw, q.Left, q.Right, q.Sym}); err != nil {
			return err
		}
		if s.aligns == nil {
			continue
		}
		for _, a := range q.Alignments {
			values := []interface{}{q.PoemID1, a.Pos1, q.PoemID2, a.Pos2, a.Weight}
			if s.printTexts {
				values = []interface{}{q.PoemID1, a.Pos1, a.Text1, q.PoemID2, a.Pos2, a.Text2, a.Weight}
			}
			if err := s.appendRow(s.aligns, values); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close flushes the sheets and saves the workbook.
func (s *XLSXSink) Close() error {
	var errs []error
	for _, ss := range []*sheetStream{s.sims, s.aligns} {
		if ss == nil || ss.w == nil {
			continue
		}
		if err := ss.w.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		if err := s.file.SaveAs(s.path); err != nil {
			errs = append(errs, fmt.Errorf("failed to save %s: %w", s.path, err))
		}
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
