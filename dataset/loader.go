package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// LoadOptions controls how a CSV file is read.
type LoadOptions struct {
	// LabelColumn is the 0-based column holding the label.
	LabelColumn int
	// Header makes the first record supply feature names.
	Header bool
	// Comma is the field delimiter; zero means ','.
	Comma rune
}

// LoadCSV reads a dense dataset from a CSV file. Empty fields and "NA" load
// as NaN.
func LoadCSV(path string, opts LoadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV reads a dense dataset from r.
func ReadCSV(r io.Reader, opts LoadOptions) (*Dataset, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.TrimLeadingSpace = true

	var (
		header []string
		rows   [][]float64
		labels []float64
	)
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if opts.LabelColumn < 0 || opts.LabelColumn >= len(rec) {
			return nil, fmt.Errorf("line %d: label column %d out of range (%d fields)", line, opts.LabelColumn, len(rec))
		}
		if opts.Header && header == nil {
			header = withoutColumn(rec, opts.LabelColumn)
			continue
		}

		row := make([]float64, 0, len(rec)-1)
		for j, field := range rec {
			v, err := parseField(field)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %d: %w", line, j, err)
			}
			if j == opts.LabelColumn {
				if math.IsNaN(v) {
					return nil, fmt.Errorf("line %d: missing label", line)
				}
				labels = append(labels, v)
				continue
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}

	ds, err := FromRows(rows, labels)
	if err != nil {
		return nil, err
	}
	if header != nil {
		if err := ds.SetFeatureNames(header); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func parseField(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "na") || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func withoutColumn(rec []string, col int) []string {
	out := make([]string, 0, len(rec)-1)
	for j, s := range rec {
		if j != col {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
