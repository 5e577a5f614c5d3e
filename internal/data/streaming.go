package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"tabforest/internal/errors"
)

// StreamingCSVReader reads rows a batch at a time, for inputs that only
// need one pass such as batch prediction.
type StreamingCSVReader struct {
	file   io.Closer
	reader *csv.Reader
	header []string
	line   int
}

func NewStreamingCSVReader(filename string) (*StreamingCSVReader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Parse(fmt.Sprintf("cannot open %s", filename), err)
	}

	r, err := newStreamingReader(file, file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

func newStreamingReader(src io.Reader, closer io.Closer) (*StreamingCSVReader, error) {
	reader := csv.NewReader(src)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Parse("file is empty", nil)
	}
	if err != nil {
		return nil, errors.Parse("malformed header", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	return &StreamingCSVReader{
		file:   closer,
		reader: reader,
		header: header,
		line:   1,
	}, nil
}

func (r *StreamingCSVReader) GetHeaders() []string {
	return r.header
}

// ReadBatch returns up to batchSize rows. An empty slice with a nil error
// means the input is exhausted.
func (r *StreamingCSVReader) ReadBatch(batchSize int) ([]Row, error) {
	var rows []Row

	for len(rows) < batchSize {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		r.line++
		if err != nil {
			return nil, errors.Parse(fmt.Sprintf("line %d", r.line), err)
		}
		if isBlank(record) {
			continue
		}

		row := make(Row, len(r.header))
		for j, name := range r.header {
			row[name] = ParseValue(strings.TrimSpace(record[j]))
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func (r *StreamingCSVReader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
