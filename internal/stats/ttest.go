package stats

import (
	"math"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"tabforest/internal/errors"
)

type TTestResult struct {
	N      int
	Mean   float64
	Mu     float64
	StdDev float64
	StdErr float64
	T      float64
	DF     int
	// PValue is the exact two-sided p-value from Student's t.
	PValue float64
	// PValueBucket is the coarse 0.05 / 0.1 label shown next to it.
	PValueBucket float64
	// Defined is false when the standard error is zero; T is then 0 and
	// PValue 1.
	Defined   bool
	Normality Normality
}

func (r *TTestResult) Significant(alpha float64) bool {
	return r.Defined && r.PValue < alpha
}

// OneSampleTTest tests whether the mean of values differs from mu, using
// the sample standard deviation (n-1 denominator).
func OneSampleTTest(values []float64, mu float64) (*TTestResult, error) {
	n := len(values)
	if n < 2 {
		return nil, errors.InsufficientSamples(n, 2)
	}

	mean, err := mstats.Mean(values)
	if err != nil {
		return nil, errors.Wrap(err, "mean")
	}
	sd, err := mstats.StandardDeviationSample(values)
	if err != nil {
		return nil, errors.Wrap(err, "standard deviation")
	}

	res := &TTestResult{
		N:            n,
		Mean:         mean,
		Mu:           mu,
		StdDev:       sd,
		StdErr:       sd / math.Sqrt(float64(n)),
		DF:           n - 1,
		PValue:       1,
		PValueBucket: 0.1,
		Normality:    CheckNormality(values),
	}
	if res.StdErr == 0 || math.IsNaN(res.StdErr) {
		return res, nil
	}

	res.Defined = true
	res.T = (mean - mu) / res.StdErr
	res.PValue = twoSidedT(res.T, float64(res.DF))
	// The bucket only labels large positive t; PValue is two-sided.
	if res.T > 2 {
		res.PValueBucket = 0.05
	}
	return res, nil
}

func twoSidedT(t, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return math.Min(1, 2*dist.Survival(math.Abs(t)))
}
