package evaluation

import (
	"fmt"
	"math/rand"
	"time"

	"tabforest/internal/errors"
)

type BatchPredictor interface {
	PredictBatch(X [][]float64) ([]int, error)
}

type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// PermutationImportance measures how much accuracy drops when one feature
// column is scrambled. Each trial replaces every row's value with the value
// of a uniformly drawn row (with replacement); drops are averaged over
// Trials and clamped at zero before normalising to a total of 100.
type PermutationImportance struct {
	Trials int
	rng    *rand.Rand
}

func NewPermutationImportance(rng *rand.Rand, trials int) *PermutationImportance {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if trials < 1 {
		trials = 1
	}
	return &PermutationImportance{Trials: trials, rng: rng}
}

func (pi *PermutationImportance) Compute(model BatchPredictor, X [][]float64, y []int, features []string) ([]FeatureImportance, error) {
	if len(X) == 0 {
		return nil, errors.Validation("cannot compute importance on an empty test set")
	}
	if len(X) != len(y) {
		return nil, errors.Validation("x and y must have the same length: %d vs %d", len(X), len(y))
	}
	if len(X[0]) != len(features) {
		return nil, errors.Validation("got %d feature names for %d columns", len(features), len(X[0]))
	}

	baseline, err := accuracy(model, X, y)
	if err != nil {
		return nil, fmt.Errorf("baseline accuracy: %w", err)
	}

	raw := make([]float64, len(features))
	total := 0.0
	for col := range features {
		drop := 0.0
		for trial := 0; trial < pi.Trials; trial++ {
			permuted, err := accuracy(model, pi.permuteColumn(X, col), y)
			if err != nil {
				return nil, fmt.Errorf("feature %q: %w", features[col], err)
			}
			drop += baseline - permuted
		}
		raw[col] = max(0, drop/float64(pi.Trials))
		total += raw[col]
	}

	result := make([]FeatureImportance, len(features))
	for col, name := range features {
		result[col] = FeatureImportance{Feature: name}
		if total > 0 {
			result[col].Importance = 100 * raw[col] / total
		}
	}
	return result, nil
}

func (pi *PermutationImportance) permuteColumn(X [][]float64, col int) [][]float64 {
	permuted := make([][]float64, len(X))
	for i, row := range X {
		permuted[i] = make([]float64, len(row))
		copy(permuted[i], row)
		permuted[i][col] = X[pi.rng.Intn(len(X))][col]
	}
	return permuted
}

func accuracy(model BatchPredictor, X [][]float64, y []int) (float64, error) {
	preds, err := model.PredictBatch(X)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i, p := range preds {
		if p == y[i] {
			correct++
		}
	}
	return safeDivide(float64(correct), float64(len(y))), nil
}
