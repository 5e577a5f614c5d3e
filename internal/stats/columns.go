package stats

import (
	"tabforest/internal/data"
	"tabforest/internal/errors"
)

// ColumnValues returns the numeric cells of col, skipping missing and
// non-numeric ones.
func ColumnValues(ds *data.Dataset, col string) ([]float64, error) {
	if !ds.HasColumn(col) {
		return nil, errors.Validation("column %q is not in the dataset", col)
	}
	values := ds.NumericColumn(col)
	if len(values) == 0 {
		return nil, errors.Validation("column %q has no numeric values", col)
	}
	return values, nil
}

// GroupColumn splits the numeric values of valueCol by the text of
// groupCol. Groups appear in first-seen order.
func GroupColumn(ds *data.Dataset, valueCol, groupCol string) ([]Group, error) {
	for _, col := range []string{valueCol, groupCol} {
		if !ds.HasColumn(col) {
			return nil, errors.Validation("column %q is not in the dataset", col)
		}
	}

	index := make(map[string]int)
	var groups []Group
	for _, row := range ds.Rows {
		x, ok := row[valueCol].Float()
		if !ok {
			continue
		}
		name := row[groupCol].Text()
		i, seen := index[name]
		if !seen {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name})
		}
		groups[i].Values = append(groups[i].Values, x)
	}
	return groups, nil
}

// PairedColumns returns the rows where both columns are numeric.
func PairedColumns(ds *data.Dataset, xCol, yCol string) ([]float64, []float64, error) {
	for _, col := range []string{xCol, yCol} {
		if !ds.HasColumn(col) {
			return nil, nil, errors.Validation("column %q is not in the dataset", col)
		}
	}

	var xs, ys []float64
	for _, row := range ds.Rows {
		x, okX := row[xCol].Float()
		y, okY := row[yCol].Float()
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	return xs, ys, nil
}
