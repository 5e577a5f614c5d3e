package preprocessing

import (
	"fmt"

	"tabforest/internal/data"
	"tabforest/internal/errors"
)

// Preprocessor turns dataset rows into the numeric feature vectors the
// forest consumes. Fit once; Transform and TransformRow reuse the fitted
// encodings so training and inference agree.
type Preprocessor struct {
	Config    data.FeatureConfig
	Encodings map[string]LabelEncoder
	Stats     map[string]FeatureStats
	Target    *TargetEncoding
}

// Fit builds categorical encodings, numeric statistics and the target
// encoding. It fails before anything else if the target has fewer than two
// classes.
func Fit(ds *data.Dataset, cfg data.FeatureConfig) (*Preprocessor, error) {
	target, err := FitTargetEncoding(ds.Column(cfg.Target), cfg.TypeOf(cfg.Target))
	if err != nil {
		return nil, err
	}

	p := &Preprocessor{
		Config:    cfg,
		Encodings: make(map[string]LabelEncoder),
		Stats:     make(map[string]FeatureStats),
		Target:    target,
	}

	for _, feature := range cfg.Features {
		column := ds.Column(feature)
		if cfg.TypeOf(feature) == data.Categorical {
			p.Encodings[feature] = FitLabelEncoder(column)
		} else {
			p.Stats[feature] = FitStandard(coerceAll(column))
		}
	}

	return p, nil
}

// Transform encodes every row of ds. Categories missing from the encoding
// fall back to index 0.
func (p *Preprocessor) Transform(ds *data.Dataset) ([][]float64, []int, error) {
	X := make([][]float64, ds.Len())
	y := make([]int, ds.Len())

	for i, row := range ds.Rows {
		vec, err := p.encodeRow(row, false)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		X[i] = vec

		label, err := p.Target.Encode(row[p.Config.Target])
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		y[i] = label
	}

	return X, y, nil
}

// TransformRow encodes a single inference input. An unseen categorical
// value is an error here, unlike Transform.
func (p *Preprocessor) TransformRow(row data.Row) ([]float64, error) {
	return p.encodeRow(row, true)
}

func (p *Preprocessor) encodeRow(row data.Row, strict bool) ([]float64, error) {
	vec := make([]float64, len(p.Config.Features))

	for j, feature := range p.Config.Features {
		value := row[feature]

		if enc, ok := p.Encodings[feature]; ok {
			idx, found := enc.Lookup(value.Text())
			if !found && strict {
				return nil, errors.UnseenCategory(feature, value.Text())
			}
			vec[j] = float64(idx)
			continue
		}

		fs, ok := p.Stats[feature]
		if !ok {
			return nil, fmt.Errorf("feature %q has no fitted encoding", feature)
		}
		x, _ := value.Float()
		vec[j] = fs.Transform(x)
	}

	return vec, nil
}
