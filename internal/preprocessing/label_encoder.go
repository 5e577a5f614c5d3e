package preprocessing

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"tabforest/internal/data"
	"tabforest/internal/errors"
)

// LabelEncoder maps observed strings to integer ids in first-seen order.
type LabelEncoder map[string]int

// Observe returns the id of value, assigning the next id if it is new.
func (le LabelEncoder) Observe(value string) int {
	if idx, ok := le[value]; ok {
		return idx
	}
	idx := len(le)
	le[value] = idx
	return idx
}

func (le LabelEncoder) Lookup(value string) (int, bool) {
	idx, ok := le[value]
	return idx, ok
}

// Decode is the reverse lookup.
func (le LabelEncoder) Decode(idx int) (string, bool) {
	for value, i := range le {
		if i == idx {
			return value, true
		}
	}
	return "", false
}

// FitLabelEncoder encodes the stringified values in row order.
func FitLabelEncoder(values []data.Value) LabelEncoder {
	le := make(LabelEncoder)
	for _, v := range values {
		le.Observe(v.Text())
	}
	return le
}

// UnknownLabel is returned when a class id has no entry in the target encoding.
const UnknownLabel = "Unknown"

// TargetEncoding maps target values to class ids. Categorical targets keep
// one id per distinct value; numeric targets are split at the median into
// class 1 (strictly above) and class 0 (at or below).
type TargetEncoding struct {
	Type    data.ColumnType `json:"type"`
	Classes LabelEncoder    `json:"classes"`
	Median  *float64        `json:"median,omitempty"`
}

func FitTargetEncoding(values []data.Value, colType data.ColumnType) (*TargetEncoding, error) {
	if colType == data.Numeric {
		return fitMedianSplit(values)
	}

	te := &TargetEncoding{
		Type:    data.Categorical,
		Classes: FitLabelEncoder(values),
	}
	if len(te.Classes) < 2 {
		return nil, errors.Validation("target needs at least 2 distinct classes, found %d", len(te.Classes))
	}
	return te, nil
}

func fitMedianSplit(values []data.Value) (*TargetEncoding, error) {
	nums := coerceAll(values)

	median, err := stats.Median(nums)
	if err != nil {
		return nil, errors.Validation("cannot compute target median: %v", err)
	}

	above := 0
	for _, x := range nums {
		if x > median {
			above++
		}
	}
	if above == 0 || above == len(nums) {
		return nil, errors.Validation("target needs at least 2 distinct classes, all values fall on one side of the median %v", median)
	}

	label := decimal.NewFromFloat(median).StringFixed(3)
	return &TargetEncoding{
		Type: data.Numeric,
		Classes: LabelEncoder{
			"≤ " + label: 0,
			"> " + label: 1,
		},
		Median: &median,
	}, nil
}

// Encode maps a raw target value to its class id.
func (te *TargetEncoding) Encode(v data.Value) (int, error) {
	if te.Type == data.Numeric {
		x, _ := v.Float()
		if x > *te.Median {
			return 1, nil
		}
		return 0, nil
	}
	idx, ok := te.Classes.Lookup(v.Text())
	if !ok {
		return 0, fmt.Errorf("target value %q has no class id", v.Text())
	}
	return idx, nil
}

func (te *TargetEncoding) Decode(classID int) string {
	if label, ok := te.Classes.Decode(classID); ok {
		return label
	}
	return UnknownLabel
}

func (te *TargetEncoding) NumClasses() int {
	return len(te.Classes)
}

func coerceAll(values []data.Value) []float64 {
	nums := make([]float64, len(values))
	for i, v := range values {
		nums[i], _ = v.Float()
	}
	return nums
}
