package models

// Hyperparameters configure a forest fit. They are derived from the data
// shape by AutoHyperparameters rather than chosen by the user.
type Hyperparameters struct {
	NEstimators   int `json:"nEstimators"`
	MaxDepth      int `json:"maxDepth"`
	MinNumSamples int `json:"minNumSamples"`
}

const (
	maxAutoDepth = 20
	maxAutoTrees = 250
	wideFeatures = 10
)

// AutoHyperparameters looks up the forest size for a dataset of the given
// row count, then deepens and widens it when there are more than ten
// features.
func AutoHyperparameters(rows, features int) Hyperparameters {
	var hp Hyperparameters
	switch {
	case rows < 100:
		hp = Hyperparameters{NEstimators: 50, MaxDepth: 5, MinNumSamples: 3}
	case rows < 500:
		hp = Hyperparameters{NEstimators: 100, MaxDepth: 8, MinNumSamples: 2}
	case rows < 1000:
		hp = Hyperparameters{NEstimators: 150, MaxDepth: 12, MinNumSamples: 2}
	default:
		hp = Hyperparameters{NEstimators: 200, MaxDepth: 15, MinNumSamples: 3}
	}

	if features > wideFeatures {
		hp.MaxDepth = min(hp.MaxDepth+3, maxAutoDepth)
		hp.NEstimators = min(hp.NEstimators+50, maxAutoTrees)
	}
	return hp
}
