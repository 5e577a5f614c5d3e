package preprocessing

import (
	"github.com/montanaflynn/stats"
)

// FeatureStats holds the z-score parameters of one numeric feature.
type FeatureStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// FitStandard computes the population mean and standard deviation. A zero
// (or undefined) deviation is stored as 1 so Transform never divides by zero.
func FitStandard(values []float64) FeatureStats {
	mean, err := stats.Mean(values)
	if err != nil {
		return FeatureStats{Mean: 0, Std: 1}
	}

	std, err := stats.StandardDeviationPopulation(values)
	if err != nil || std == 0 {
		std = 1
	}
	return FeatureStats{Mean: mean, Std: std}
}

func (fs FeatureStats) Transform(x float64) float64 {
	std := fs.Std
	if std == 0 {
		std = 1
	}
	return (x - fs.Mean) / std
}
