package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jakobytes/elias-1848/internal/models"
)

var requiredColumns = []string{"poem_id", "pos", "text"}

// ReadCSV reads verses from a CSV stream whose header contains poem_id, pos
// and text. Other columns are ignored; rows are returned in input order.
func ReadCSV(r io.Reader) ([]models.Verse, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyCorpus
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	idx := make([]int, len(requiredColumns))
	for i, name := range requiredColumns {
		c, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q in header %v", name, header)
		}
		idx[i] = c
	}

	var verses []models.Verse
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		for _, c := range idx {
			if c >= len(rec) {
				return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, c+1, len(rec))
			}
		}
		verses = append(verses, models.Verse{
			PoemID: rec[idx[0]],
			Pos:    rec[idx[1]],
			Text:   rec[idx[2]],
		})
	}
	return verses, nil
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string) ([]models.Verse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	verses, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return verses, nil
}

// WriteCSV writes verses with a poem_id,pos,text header.
func WriteCSV(w io.Writer, verses []models.Verse) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(requiredColumns); err != nil {
		return err
	}
	for _, v := range verses {
		if err := writer.Write([]string{v.PoemID, v.Pos, v.Text}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
