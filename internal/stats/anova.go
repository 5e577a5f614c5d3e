package stats

import (
	"math"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"tabforest/internal/errors"
)

// HomoscedasticRatio is the largest max/min group variance ratio still
// treated as equal variances.
const HomoscedasticRatio = 3.0

// postHocFactor scales sqrt(MSW/avgN) into the pairwise difference
// threshold. This is a fixed simplification of Tukey's HSD, not the
// studentized range.
const postHocFactor = 3.5

type Group struct {
	Name   string
	Values []float64
}

type GroupSummary struct {
	Name      string
	N         int
	Mean      float64
	Variance  float64
	Normality Normality
}

type PairwiseComparison struct {
	A, B        string
	Difference  float64
	Significant bool
}

type ANOVAResult struct {
	Groups    []GroupSummary
	GrandMean float64
	SSB, SSW  float64
	DFB, DFW  int
	MSB, MSW  float64
	F         float64
	PValue    float64
	// PValueBucket is 0.05 when F > 3 and 0.1 otherwise.
	PValueBucket float64
	// Defined is false when there is no within-group variation; F is then 0
	// and PValue 1.
	Defined bool

	// VarianceRatio is max/min of the group sample variances; 0 when the
	// smallest variance is 0.
	VarianceRatio float64
	Homoscedastic bool

	PostHocThreshold float64
	PostHoc          []PairwiseComparison
}

func (r *ANOVAResult) Significant(alpha float64) bool {
	return r.Defined && r.PValue < alpha
}

// OneWayANOVA compares the means of two or more groups.
func OneWayANOVA(groups []Group) (*ANOVAResult, error) {
	if len(groups) < 2 {
		return nil, errors.Validation("ANOVA needs at least 2 groups, got %d", len(groups))
	}

	var all []float64
	for _, g := range groups {
		if len(g.Values) == 0 {
			return nil, errors.Validation("group %q has no values", g.Name)
		}
		all = append(all, g.Values...)
	}
	n, k := len(all), len(groups)
	if n <= k {
		return nil, errors.InsufficientSamples(n, k+1)
	}

	grand, err := mstats.Mean(all)
	if err != nil {
		return nil, errors.Wrap(err, "grand mean")
	}

	res := &ANOVAResult{
		Groups:       make([]GroupSummary, k),
		GrandMean:    grand,
		DFB:          k - 1,
		DFW:          n - k,
		PValue:       1,
		PValueBucket: 0.1,
	}

	for i, g := range groups {
		mean, _ := mstats.Mean(g.Values)
		variance := 0.0
		if len(g.Values) > 1 {
			variance, _ = mstats.SampleVariance(g.Values)
		}
		res.Groups[i] = GroupSummary{
			Name:      g.Name,
			N:         len(g.Values),
			Mean:      mean,
			Variance:  variance,
			Normality: CheckNormality(g.Values),
		}

		d := mean - grand
		res.SSB += float64(len(g.Values)) * d * d
		for _, x := range g.Values {
			res.SSW += (x - mean) * (x - mean)
		}
	}

	res.MSB = res.SSB / float64(res.DFB)
	res.MSW = res.SSW / float64(res.DFW)
	if res.MSW > 0 {
		res.Defined = true
		res.F = res.MSB / res.MSW
		res.PValue = distuv.F{D1: float64(res.DFB), D2: float64(res.DFW)}.Survival(res.F)
		if res.F > 3 {
			res.PValueBucket = 0.05
		}
	}

	res.VarianceRatio, res.Homoscedastic = varianceRatio(res.Groups)

	avgN := float64(n) / float64(k)
	res.PostHocThreshold = postHocFactor * math.Sqrt(res.MSW/avgN)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			diff := res.Groups[i].Mean - res.Groups[j].Mean
			res.PostHoc = append(res.PostHoc, PairwiseComparison{
				A:           res.Groups[i].Name,
				B:           res.Groups[j].Name,
				Difference:  diff,
				Significant: math.Abs(diff) > res.PostHocThreshold,
			})
		}
	}

	return res, nil
}

func varianceRatio(groups []GroupSummary) (float64, bool) {
	lo, hi := math.Inf(1), 0.0
	for _, g := range groups {
		lo = math.Min(lo, g.Variance)
		hi = math.Max(hi, g.Variance)
	}
	if lo == 0 {
		return 0, hi == 0
	}
	ratio := hi / lo
	return ratio, ratio < HomoscedasticRatio
}
