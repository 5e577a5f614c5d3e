package data

import (
	"tabforest/internal/errors"
)

type DataValidator struct {
	MinTrainingRows int
	MinAnalysisRows int
}

func NewDataValidator() *DataValidator {
	return &DataValidator{
		MinTrainingRows: 10,
		MinAnalysisRows: 3,
	}
}

// ValidateFeatureConfig checks the column selection against the dataset.
func (dv *DataValidator) ValidateFeatureConfig(ds *Dataset, cfg FeatureConfig) error {
	if len(cfg.Features) == 0 {
		return errors.Validation("no features selected")
	}
	if cfg.Target == "" {
		return errors.Validation("no target column selected")
	}
	if !ds.HasColumn(cfg.Target) {
		return errors.Validation("target column %q is not in the dataset", cfg.Target)
	}

	seen := make(map[string]bool, len(cfg.Features))
	for _, f := range cfg.Features {
		if f == cfg.Target {
			return errors.Validation("target column %q cannot also be a feature", f)
		}
		if !ds.HasColumn(f) {
			return errors.Validation("feature column %q is not in the dataset", f)
		}
		if seen[f] {
			return errors.Validation("feature column %q selected twice", f)
		}
		seen[f] = true
	}

	for col, t := range cfg.Types {
		if t != Numeric && t != Categorical {
			return errors.Validation("column %q has unknown type %q", col, t)
		}
	}
	return nil
}

func (dv *DataValidator) ValidateForTraining(ds *Dataset, cfg FeatureConfig) error {
	if ds.Len() < dv.MinTrainingRows {
		return errors.InsufficientSamples(ds.Len(), dv.MinTrainingRows)
	}
	return dv.ValidateFeatureConfig(ds, cfg)
}

func (dv *DataValidator) ValidateForAnalysis(ds *Dataset) error {
	if ds.Len() < dv.MinAnalysisRows {
		return errors.InsufficientSamples(ds.Len(), dv.MinAnalysisRows)
	}
	return nil
}

type ColumnSummary struct {
	Name     string
	Type     ColumnType
	Missing  int
	Distinct int
}

type DatasetSummary struct {
	Rows    int
	Columns []ColumnSummary
}

func (dv *DataValidator) GetDatasetStats(ds *Dataset) DatasetSummary {
	summary := DatasetSummary{Rows: ds.Len()}

	for _, col := range ds.Columns {
		distinct := make(map[string]bool)
		missing := 0
		for _, row := range ds.Rows {
			v := row[col]
			if v.IsMissing() {
				missing++
				continue
			}
			distinct[v.Text()] = true
		}
		summary.Columns = append(summary.Columns, ColumnSummary{
			Name:     col,
			Type:     ds.Types[col],
			Missing:  missing,
			Distinct: len(distinct),
		})
	}
	return summary
}
