package data

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// MissingText is how a missing cell reads when treated as a category.
const MissingText = "unknown"

type Kind int

const (
	KindMissing Kind = iota
	KindNumber
	KindString
)

// Value is a single parsed cell: a number, a string, or missing. Raw keeps
// the cell text as read so "007" and "7" stay distinct categories.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Raw  string
}

func NumberValue(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func MissingValue() Value         { return Value{Kind: KindMissing} }

// ParseValue types a raw cell. Empty text is missing; anything decimal
// accepts is a number; everything else stays a string.
func ParseValue(raw string) Value {
	if raw == "" {
		return MissingValue()
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		return Value{Kind: KindNumber, Num: d.InexactFloat64(), Raw: raw}
	}
	return StringValue(raw)
}

func (v Value) IsMissing() bool {
	return v.Kind == KindMissing
}

// Float coerces the value to a number. Strings that look numeric are
// accepted; the second result is false for missing or non-numeric values.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		d, err := decimal.NewFromString(v.Str)
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	}
	return 0, false
}

// Text stringifies the value for categorical encoding. Parsed numbers
// return their original text.
func (v Value) Text() string {
	switch v.Kind {
	case KindNumber:
		if v.Raw != "" {
			return v.Raw
		}
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindString:
		return v.Str
	}
	return MissingText
}

type ColumnType string

const (
	Numeric     ColumnType = "numeric"
	Categorical ColumnType = "categorical"
)

type Row map[string]Value

type Dataset struct {
	Columns []string
	Rows    []Row
	Types   map[string]ColumnType
	Source  string
}

func (d *Dataset) Len() int {
	return len(d.Rows)
}

func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func (d *Dataset) Column(name string) []Value {
	values := make([]Value, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[name]
	}
	return values
}

// NumericColumn returns the numeric cells of a column in row order,
// skipping missing and non-numeric cells.
func (d *Dataset) NumericColumn(name string) []float64 {
	values := make([]float64, 0, len(d.Rows))
	for _, row := range d.Rows {
		if f, ok := row[name].Float(); ok {
			values = append(values, f)
		}
	}
	return values
}

// SetType overrides the detected type of a column.
func (d *Dataset) SetType(name string, t ColumnType) {
	if d.Types == nil {
		d.Types = make(map[string]ColumnType)
	}
	d.Types[name] = t
}

// FeatureConfig names the model inputs, the target and the column types.
type FeatureConfig struct {
	Features []string              `json:"features"`
	Target   string                `json:"target"`
	Types    map[string]ColumnType `json:"types"`
}

// TypeOf returns the configured type of col, defaulting to categorical.
func (c FeatureConfig) TypeOf(col string) ColumnType {
	if t, ok := c.Types[col]; ok {
		return t
	}
	return Categorical
}

// DefaultFeatureConfig uses every column except target as a feature, with
// the detected column types.
func (d *Dataset) DefaultFeatureConfig(target string) FeatureConfig {
	cfg := FeatureConfig{
		Target: target,
		Types:  make(map[string]ColumnType, len(d.Types)),
	}
	for _, col := range d.Columns {
		if col != target {
			cfg.Features = append(cfg.Features, col)
		}
	}
	for col, t := range d.Types {
		cfg.Types[col] = t
	}
	return cfg
}
