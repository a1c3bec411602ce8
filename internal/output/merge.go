package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
)

// MergeSimilarityFiles concatenates similarity CSVs written by separate jobs
// and writes the rows sorted by (poem_id_1, poem_id_2). Every input must carry
// the similarity header.
func MergeSimilarityFiles(w io.Writer, paths ...string) (int, error) {
	var rows [][]string
	for _, path := range paths {
		part, err := readSimilarityFile(path)
		if err != nil {
			return 0, err
		}
		rows = append(rows, part...)
	}
	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a][0] != rows[b][0] {
			return rows[a][0] < rows[b][0]
		}
		return rows[a][1] < rows[b][1]
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(SimilarityHeader); err != nil {
		return 0, err
	}
	if err := cw.WriteAll(rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func readSimilarityFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(SimilarityHeader)
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !slices.Equal(header, SimilarityHeader) {
		return nil, fmt.Errorf("%s: unexpected header %v", path, header)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}
