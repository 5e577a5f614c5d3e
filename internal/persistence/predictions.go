package persistence

import (
	"encoding/csv"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"tabforest/internal/errors"
	"tabforest/internal/prediction"
)

// WritePredictions writes one CSV row per record in the given order, with
// the inputs laid out under features and confidence as a percentage with
// one decimal.
func WritePredictions(w io.Writer, features []string, records []prediction.Record) error {
	writer := csv.NewWriter(w)

	header := make([]string, 0, len(features)+3)
	header = append(header, "Timestamp")
	header = append(header, features...)
	header = append(header, "Prediction", "Confidence %")
	if err := writer.Write(header); err != nil {
		return errors.Serialization("failed to write header", err)
	}

	for _, rec := range records {
		line := make([]string, 0, len(header))
		line = append(line, rec.Timestamp.Format(time.RFC3339))
		for _, f := range features {
			line = append(line, rec.Inputs[f])
		}
		line = append(line, rec.Label, decimal.NewFromFloat(rec.Confidence*100).StringFixed(1))
		if err := writer.Write(line); err != nil {
			return errors.Serialization("failed to write prediction", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.Serialization("failed to flush predictions", err)
	}
	return nil
}

func WritePredictionsFile(filename string, features []string, records []prediction.Record) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Serialization("failed to create file", err)
	}
	if err := WritePredictions(file, features, records); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
