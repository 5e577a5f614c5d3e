// Package stats implements the classical tests offered for dataset
// columns: one-sample t-test, one-way ANOVA with a post-hoc comparison,
// Pearson and Spearman correlation, and a moment-based normality check.
package stats

import (
	"math"

	mstats "github.com/montanaflynn/stats"
)

// Normality is a coarse shape check from sample moments. It is a
// heuristic, not a formal test: Normal is set when both |skewness| and
// |excess kurtosis| are below 1.
type Normality struct {
	Skewness float64
	Kurtosis float64
	Normal   bool
	// Defined is false when there are fewer than three values or no spread.
	Defined bool
}

func CheckNormality(values []float64) Normality {
	if len(values) < 3 {
		return Normality{}
	}
	mean, err := mstats.Mean(values)
	if err != nil {
		return Normality{}
	}

	var m2, m3, m4 float64
	for _, x := range values {
		d := x - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	n := float64(len(values))
	m2 /= n
	m3 /= n
	m4 /= n
	if m2 == 0 {
		return Normality{}
	}

	skew := m3 / math.Pow(m2, 1.5)
	kurt := m4/(m2*m2) - 3
	return Normality{
		Skewness: skew,
		Kurtosis: kurt,
		Normal:   math.Abs(skew) < 1 && math.Abs(kurt) < 1,
		Defined:  true,
	}
}
