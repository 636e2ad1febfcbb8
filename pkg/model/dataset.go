package model

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// Sample is one dataset row: feature columns plus, for labeled
// datasets, a trailing class label.
type Sample struct {
	Features []float64
	Label    string
}

// ParseCSV reads a dataset.
//
// Every column is numeric; when labeled, the last column is the class
// label. A first row whose leading cell does not parse as a number is
// taken as a header and skipped.
func ParseCSV(content []byte, labeled bool) ([]Sample, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	samples := []Sample{}
	for nth, record := range records {
		if len(record) == 0 {
			continue
		}
		if nth == 0 {
			if _, err := strconv.ParseFloat(record[0], 64); err != nil {
				continue // header
			}
		}

		width := len(record)
		minWidth := 1
		if labeled {
			width -= 1
			minWidth = 2
		}
		if len(record) < minWidth {
			return nil, fmt.Errorf("row %d has %d columns, want at least %d", nth+1, len(record), minWidth)
		}

		features := make([]float64, width)
		for i := 0; i < width; i++ {
			f, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", nth+1, i+1, err)
			}
			features[i] = f
		}

		s := Sample{Features: features}
		if labeled {
			s.Label = record[len(record)-1]
		}
		samples = append(samples, s)
	}
	return samples, nil
}
