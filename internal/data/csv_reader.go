package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"tabforest/internal/errors"
)

type CSVReader struct {
	filename string
}

func NewCSVReader(filename string) *CSVReader {
	return &CSVReader{filename: filename}
}

func (cr *CSVReader) Load() (*Dataset, error) {
	file, err := os.Open(cr.filename)
	if err != nil {
		return nil, errors.Parse(fmt.Sprintf("cannot open %s", cr.filename), err)
	}
	defer file.Close()

	ds, err := ParseCSV(file)
	if err != nil {
		return nil, err
	}
	ds.Source = cr.filename
	return ds, nil
}

// ParseCSV reads a header row followed by data rows. Column types are
// detected from the first data row only: a column whose first value parses
// as a number is numeric, everything else is categorical. Later rows are not
// consulted, so a numeric-looking first cell in a mostly textual column will
// mislabel it; callers can correct this with Dataset.SetType.
func ParseCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Parse("malformed CSV", err)
	}

	if len(records) == 0 {
		return nil, errors.Parse("empty file", nil)
	}

	headers := make([]string, len(records[0]))
	seen := make(map[string]bool, len(headers))
	for i, h := range records[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return nil, errors.Parse(fmt.Sprintf("column %d has an empty header", i+1), nil)
		}
		if seen[h] {
			return nil, errors.Parse(fmt.Sprintf("duplicate column %q", h), nil)
		}
		seen[h] = true
		headers[i] = h
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		row := make(Row, len(headers))
		for j, h := range headers {
			row[h] = ParseValue(strings.TrimSpace(record[j]))
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, errors.Parse("no data rows after the header", nil)
	}

	return &Dataset{
		Columns: headers,
		Rows:    rows,
		Types:   DetectTypes(headers, rows[0]),
	}, nil
}

// DetectTypes applies the first-row heuristic.
func DetectTypes(headers []string, first Row) map[string]ColumnType {
	types := make(map[string]ColumnType, len(headers))
	for _, h := range headers {
		if first[h].Kind == KindNumber {
			types[h] = Numeric
		} else {
			types[h] = Categorical
		}
	}
	return types
}

func isBlank(record []string) bool {
	for _, val := range record {
		if strings.TrimSpace(val) != "" {
			return false
		}
	}
	return true
}
