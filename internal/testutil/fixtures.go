// Package testutil holds datasets and trained models shared by tests.
package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tabforest/internal/data"
	"tabforest/internal/training"
)

// SeparableCSV has 20 rows split evenly between labels A and B. Class A has
// x1 in 1..10 and class B x1 in 101..110; x2 and color carry no signal.
func SeparableCSV() string {
	colors := []string{"red", "green", "blue"}
	var b strings.Builder
	b.WriteString("x1,x2,color,label\n")
	for i := 0; i < 20; i++ {
		x1, label := i+1, "A"
		if i >= 10 {
			x1, label = i+91, "B"
		}
		fmt.Fprintf(&b, "%d,%d,%s,%s\n", x1, i%4, colors[i%3], label)
	}
	return b.String()
}

func Dataset(t testing.TB, csv string) *data.Dataset {
	t.Helper()
	ds, err := data.ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return ds
}

// TrainSeparable trains a forest on SeparableCSV with fixed seeds.
func TrainSeparable(t testing.TB) *training.TrainedModel {
	t.Helper()
	ds := Dataset(t, SeparableCSV())
	opts := training.Options{
		TestRatio:        0.2,
		MinRows:          10,
		Seed:             42,
		ImportanceTrials: 1,
		Rand:             rand.New(rand.NewSource(7)),
	}
	model, err := training.NewPipeline(opts, zaptest.NewLogger(t).Sugar()).
		Train(context.Background(), ds, ds.DefaultFeatureConfig("label"), nil)
	require.NoError(t, err)
	return model
}
