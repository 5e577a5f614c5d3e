package stats

import (
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"

	"tabforest/internal/errors"
)

type Method string

const (
	MethodPearson  Method = "pearson"
	MethodSpearman Method = "spearman"
)

// Residual is one point of the linearity check: x against the distance of
// y from the least-squares line.
type Residual struct {
	X        float64
	Residual float64
}

type CorrelationResult struct {
	Method   Method
	N        int
	R        float64
	RSquared float64
	T        float64
	DF       int
	PValue   float64
	// PValueBucket is 0.01 for |r| > 0.7, 0.05 for |r| > 0.5, else 0.1.
	PValueBucket float64
	// Defined is false when either variable is constant.
	Defined bool

	Slope     float64
	Intercept float64
	Residuals []Residual

	NormalityX Normality
	NormalityY Normality
}

func (r *CorrelationResult) Significant(alpha float64) bool {
	return r.Defined && r.PValue < alpha
}

// Pearson measures linear association and fits y = Slope*x + Intercept for
// the residual plot.
func Pearson(x, y []float64) (*CorrelationResult, error) {
	res, err := correlate(MethodPearson, x, y)
	if err != nil {
		return nil, err
	}
	if res.Defined {
		res.Slope, res.Intercept, res.Residuals = fitLine(x, y)
	}
	return res, nil
}

// Spearman is Pearson's r on the ranks, with tied values sharing their
// average rank.
func Spearman(x, y []float64) (*CorrelationResult, error) {
	if len(x) != len(y) {
		return nil, errors.Validation("columns differ in length: %d vs %d", len(x), len(y))
	}
	return correlate(MethodSpearman, Rank(x), Rank(y))
}

func correlate(method Method, x, y []float64) (*CorrelationResult, error) {
	if len(x) != len(y) {
		return nil, errors.Validation("columns differ in length: %d vs %d", len(x), len(y))
	}
	n := len(x)
	if n < 3 {
		return nil, errors.InsufficientSamples(n, 3)
	}

	res := &CorrelationResult{
		Method:       method,
		N:            n,
		DF:           n - 2,
		PValue:       1,
		PValueBucket: 0.1,
		NormalityX:   CheckNormality(x),
		NormalityY:   CheckNormality(y),
	}

	sx, _ := mstats.StandardDeviationPopulation(x)
	sy, _ := mstats.StandardDeviationPopulation(y)
	if sx == 0 || sy == 0 {
		return res, nil
	}

	r, err := mstats.Pearson(x, y)
	if err != nil {
		return nil, errors.Wrap(err, "correlation")
	}
	r = math.Max(-1, math.Min(1, r))

	res.Defined = true
	res.R = r
	res.RSquared = r * r
	switch abs := math.Abs(r); {
	case abs > 0.7:
		res.PValueBucket = 0.01
	case abs > 0.5:
		res.PValueBucket = 0.05
	}

	// a perfect fit has no finite t; report p = 0 and leave T at 0
	if res.RSquared >= 1 {
		res.PValue = 0
		return res, nil
	}
	res.T = r * math.Sqrt(float64(res.DF)/(1-res.RSquared))
	res.PValue = twoSidedT(res.T, float64(res.DF))
	return res, nil
}

func fitLine(x, y []float64) (float64, float64, []Residual) {
	mx, _ := mstats.Mean(x)
	my, _ := mstats.Mean(y)
	cov, _ := mstats.CovariancePopulation(x, y)
	vx, _ := mstats.PopulationVariance(x)

	slope := cov / vx
	intercept := my - slope*mx

	residuals := make([]Residual, len(x))
	for i := range x {
		residuals[i] = Residual{X: x[i], Residual: y[i] - (slope*x[i] + intercept)}
	}
	return slope, intercept, residuals
}

// Rank returns 1-based ranks, averaging over ties.
func Rank(values []float64) []float64 {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	ranks := make([]float64, len(values))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && values[order[j+1]] == values[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
