// Package export writes per-event scores and trigger decisions as CSV.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/okian/trigml/internal/domain/dataset"
)

// ErrLengthMismatch reports scores, decisions and labels of different lengths.
var ErrLengthMismatch = errors.New("export length mismatch")

// Row is one exported event.
type Row struct {
	Index int     `csv:"index"`
	Label string  `csv:"label"`
	Score float64 `csv:"score"`
	Fired bool    `csv:"fired"`
}

// Rows zips scores and decisions with the labels recorded in blocks.
func Rows(blocks []dataset.Block, scores []float64, fired []bool) ([]Row, error) {
	total := 0
	for _, b := range blocks {
		total += b.Rows
	}
	if len(scores) != total || len(fired) != total {
		return nil, fmt.Errorf("%w: %d labeled rows, %d scores, %d decisions",
			ErrLengthMismatch, total, len(scores), len(fired))
	}

	rows := make([]Row, 0, total)
	i := 0
	for _, b := range blocks {
		for k := 0; k < b.Rows; k++ {
			rows = append(rows, Row{Index: i, Label: string(b.Label), Score: scores[i], Fired: fired[i]})
			i++
		}
	}
	return rows, nil
}

// Write encodes rows with a header line.
func Write(w io.Writer, rows []Row) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return nil
}

// WriteFile writes rows to path, replacing any existing file.
func WriteFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile decodes rows previously written by WriteFile.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var rows []Row
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rows, nil
}
