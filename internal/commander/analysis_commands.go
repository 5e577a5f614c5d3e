package commander

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tabforest/internal/errors"
	"tabforest/internal/stats"
)

func (c *Commander) tTest(args []string) {
	if len(args) == 0 {
		c.usage("ttest <column> [mu]")
		return
	}
	ds, _, ok := c.requireDataset()
	if !ok {
		return
	}

	mu := 0.0
	if len(args) > 1 {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			c.fail(errors.Validation("invalid mu %q", args[1]))
			return
		}
		mu = v
	}

	values, err := stats.ColumnValues(ds, args[0])
	if err != nil {
		c.fail(err)
		return
	}
	res, err := stats.OneSampleTTest(values, mu)
	if err != nil {
		c.fail(err)
		return
	}

	fmt.Fprintf(c.out, "\n%s %s (H0: mean = %g)\n", c.cyan("One-sample t-test:"), args[0], mu)
	fmt.Fprintf(c.out, "n = %d, mean = %.4f, sd = %.4f, se = %.4f\n", res.N, res.Mean, res.StdDev, res.StdErr)
	if !res.Defined {
		fmt.Fprintf(c.out, "%s Standard error is zero, t is undefined\n", c.yellow("⚠"))
	}
	fmt.Fprintf(c.out, "t = %.4f, df = %d, p = %.4f (p < %g)\n", res.T, res.DF, res.PValue, res.PValueBucket)
	c.printNormality(args[0], res.Normality)
	c.printVerdict(res.Significant(c.cfg.Analysis.Alpha))
}

func (c *Commander) anova(valueCol, groupCol string) {
	ds, _, ok := c.requireDataset()
	if !ok {
		return
	}

	groups, err := stats.GroupColumn(ds, valueCol, groupCol)
	if err != nil {
		c.fail(err)
		return
	}
	res, err := stats.OneWayANOVA(groups)
	if err != nil {
		c.fail(err)
		return
	}

	fmt.Fprintf(c.out, "\n%s %s by %s\n", c.cyan("One-way ANOVA:"), valueCol, groupCol)
	fmt.Fprintf(c.out, "%-16s %6s %12s %12s\n", "Group", "n", "Mean", "Variance")
	for _, g := range res.Groups {
		fmt.Fprintf(c.out, "%-16s %6d %12.4f %12.4f\n", g.Name, g.N, g.Mean, g.Variance)
	}
	fmt.Fprintf(c.out, "Grand mean = %.4f\n", res.GrandMean)
	fmt.Fprintf(c.out, "SSB = %.4f (df %d), SSW = %.4f (df %d)\n", res.SSB, res.DFB, res.SSW, res.DFW)
	if !res.Defined {
		fmt.Fprintf(c.out, "%s No variation within groups, F is undefined\n", c.yellow("⚠"))
	}
	fmt.Fprintf(c.out, "F = %.4f, p = %.4f (p < %g)\n", res.F, res.PValue, res.PValueBucket)

	if res.Homoscedastic {
		fmt.Fprintf(c.out, "Variance ratio %.2f: variances look homogeneous\n", res.VarianceRatio)
	} else {
		fmt.Fprintf(c.out, "%s Variance ratio %.2f exceeds %.0f: variances differ\n",
			c.yellow("⚠"), res.VarianceRatio, stats.HomoscedasticRatio)
	}
	for _, g := range res.Groups {
		c.printNormality(g.Name, g.Normality)
	}

	significant := res.Significant(c.cfg.Analysis.Alpha)
	c.printVerdict(significant)
	if significant && len(res.PostHoc) > 0 {
		fmt.Fprintf(c.out, "%s (threshold %.4f)\n", c.blue("Post-hoc comparisons"), res.PostHocThreshold)
		for _, pc := range res.PostHoc {
			mark := " "
			if pc.Significant {
				mark = c.green("*")
			}
			fmt.Fprintf(c.out, "  %s %s vs %s: %+.4f\n", mark, pc.A, pc.B, pc.Difference)
		}
	}
}

func (c *Commander) correlate(args []string) {
	if len(args) < 2 {
		c.usage("correlate <x> <y> [pearson|spearman]")
		return
	}
	ds, _, ok := c.requireDataset()
	if !ok {
		return
	}

	method := stats.MethodPearson
	if len(args) > 2 {
		method = stats.Method(strings.ToLower(args[2]))
	}

	xs, ys, err := stats.PairedColumns(ds, args[0], args[1])
	if err != nil {
		c.fail(err)
		return
	}

	var res *stats.CorrelationResult
	switch method {
	case stats.MethodPearson:
		res, err = stats.Pearson(xs, ys)
	case stats.MethodSpearman:
		res, err = stats.Spearman(xs, ys)
	default:
		c.usage("correlate <x> <y> [pearson|spearman]")
		return
	}
	if err != nil {
		c.fail(err)
		return
	}

	fmt.Fprintf(c.out, "\n%s %s vs %s (%s)\n", c.cyan("Correlation:"), args[0], args[1], res.Method)
	if !res.Defined {
		fmt.Fprintf(c.out, "%s One variable is constant, r is undefined\n", c.yellow("⚠"))
	}
	fmt.Fprintf(c.out, "n = %d, r = %.4f, r² = %.4f\n", res.N, res.R, res.RSquared)
	fmt.Fprintf(c.out, "t = %.4f, df = %d, p = %.4f (p < %g)\n", res.T, res.DF, res.PValue, res.PValueBucket)
	if res.Method == stats.MethodPearson && res.Defined {
		fmt.Fprintf(c.out, "Fit: y = %.4f·x %+.4f\n", res.Slope, res.Intercept)
		c.printResiduals(res.Residuals)
	}
	c.printNormality(args[0], res.NormalityX)
	c.printNormality(args[1], res.NormalityY)
	c.printVerdict(res.Significant(c.cfg.Analysis.Alpha))
}

// printResiduals shows the largest residual so a non-linear pattern stands out.
func (c *Commander) printResiduals(residuals []stats.Residual) {
	if len(residuals) == 0 {
		return
	}
	worst := residuals[0]
	for _, r := range residuals[1:] {
		if math.Abs(r.Residual) > math.Abs(worst.Residual) {
			worst = r
		}
	}
	fmt.Fprintf(c.out, "Largest residual %.4f at x = %.4f\n", worst.Residual, worst.X)
}

func (c *Commander) printNormality(name string, n stats.Normality) {
	if !n.Defined {
		return
	}
	if n.Normal {
		fmt.Fprintf(c.out, "%s: skewness %.3f, kurtosis %.3f (approximately normal)\n", name, n.Skewness, n.Kurtosis)
		return
	}
	fmt.Fprintf(c.out, "%s %s: skewness %.3f, kurtosis %.3f (not normal)\n",
		c.yellow("⚠"), name, n.Skewness, n.Kurtosis)
}

func (c *Commander) printVerdict(significant bool) {
	if significant {
		fmt.Fprintf(c.out, "%s Significant at alpha = %g\n", c.green("✓"), c.cfg.Analysis.Alpha)
		return
	}
	fmt.Fprintf(c.out, "%s Not significant at alpha = %g\n", c.red("✗"), c.cfg.Analysis.Alpha)
}
