package training

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tabforest/internal/data"
	"tabforest/internal/errors"
)

// separableCSV has 20 rows whose class is decided by x1 alone; x2 is noise.
func separableCSV() string {
	var b strings.Builder
	b.WriteString("x1,x2,label\n")
	for i := 0; i < 20; i++ {
		x1, label := i+1, "A"
		if i >= 10 {
			x1, label = i+91, "B"
		}
		fmt.Fprintf(&b, "%d,%d,%s\n", x1, i%4, label)
	}
	return b.String()
}

func load(t *testing.T, csv string) *data.Dataset {
	t.Helper()
	ds, err := data.ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return ds
}

func testOptions() Options {
	return Options{
		TestRatio:        0.2,
		MinRows:          10,
		Seed:             42,
		ImportanceTrials: 3,
		Rand:             rand.New(rand.NewSource(1)),
	}
}

type recordingReporter struct {
	progress []float64
	logs     []string
}

func (r *recordingReporter) SetProgress(p float64) { r.progress = append(r.progress, p) }
func (r *recordingReporter) AddLog(msg string)     { r.logs = append(r.logs, msg) }

func TestTrainSeparableDataset(t *testing.T) {
	ds := load(t, separableCSV())
	cfg := ds.DefaultFeatureConfig("label")
	reporter := &recordingReporter{}

	model, err := NewPipeline(testOptions(), zaptest.NewLogger(t).Sugar()).
		Train(context.Background(), ds, cfg, reporter)
	require.NoError(t, err)

	assert.Equal(t, 50, model.Hyperparameters.NEstimators)
	assert.Equal(t, 5, model.Hyperparameters.MaxDepth)
	assert.Equal(t, 3, model.Hyperparameters.MinNumSamples)
	assert.Len(t, model.Forest.Trees, 50)
	assert.Equal(t, 20, model.DatasetSize)
	assert.Equal(t, []string{"x1", "x2"}, model.Features())

	assert.Equal(t, 4, model.Metrics.NumSamples)
	assert.GreaterOrEqual(t, model.Metrics.Accuracy, 80.0)

	require.Len(t, model.Importance, 2)
	assert.Equal(t, "x1", model.Importance[0].Feature)
	total := model.Importance[0].Importance + model.Importance[1].Importance
	assert.True(t, total == 0 || (total > 99.999 && total < 100.001), "importances sum to %v", total)

	assert.Equal(t, 1.0, reporter.progress[len(reporter.progress)-1])
	assert.NotEmpty(t, reporter.logs)
}

func TestTrainIsReproducibleForFixedSeeds(t *testing.T) {
	ds := load(t, separableCSV())
	cfg := ds.DefaultFeatureConfig("label")

	a, err := NewPipeline(testOptions(), nil).Train(context.Background(), ds, cfg, nil)
	require.NoError(t, err)
	b, err := NewPipeline(testOptions(), nil).Train(context.Background(), ds, cfg, nil)
	require.NoError(t, err)

	for i := range a.Forest.Trees {
		assert.Equal(t, a.Forest.Trees[i].Root, b.Forest.Trees[i].Root)
	}
	assert.Equal(t, a.Metrics, b.Metrics)
}

func TestTrainFailsFast(t *testing.T) {
	small := load(t, "x,label\n1,A\n2,B\n3,A\n")
	_, err := NewPipeline(testOptions(), nil).Train(context.Background(), small, small.DefaultFeatureConfig("label"), nil)
	assert.True(t, errors.Is(err, errors.CodeInsufficientSamples))

	var b strings.Builder
	b.WriteString("x,label\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "%d,A\n", i)
	}
	oneClass := load(t, b.String())
	_, err = NewPipeline(testOptions(), nil).Train(context.Background(), oneClass, oneClass.DefaultFeatureConfig("label"), nil)
	assert.True(t, errors.Is(err, errors.CodeValidation))

	ds := load(t, separableCSV())
	cfg := data.FeatureConfig{Features: []string{"x1", "label"}, Target: "label"}
	_, err = NewPipeline(testOptions(), nil).Train(context.Background(), ds, cfg, nil)
	assert.True(t, errors.Is(err, errors.CodeValidation))
}

func TestTrainHonoursCancellation(t *testing.T) {
	ds := load(t, separableCSV())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(testOptions(), nil).Train(ctx, ds, ds.DefaultFeatureConfig("label"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// cancelAt cancels the run once progress reaches at.
type cancelAt struct {
	recordingReporter
	at     float64
	cancel context.CancelFunc
}

func (r *cancelAt) SetProgress(p float64) {
	r.recordingReporter.SetProgress(p)
	if p >= r.at {
		r.cancel()
	}
}

func TestTrainCancelledAfterEvaluationReturnsNoModel(t *testing.T) {
	ds := load(t, separableCSV())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reporter := &cancelAt{at: 0.8, cancel: cancel}

	model, err := NewPipeline(testOptions(), nil).Train(ctx, ds, ds.DefaultFeatureConfig("label"), reporter)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, model)
	assert.NotContains(t, reporter.progress, 1.0)
}

func TestTrainNumericTarget(t *testing.T) {
	var b strings.Builder
	b.WriteString("x,y\n")
	for i := 1; i <= 30; i++ {
		fmt.Fprintf(&b, "%d,%d\n", i, i)
	}
	ds := load(t, b.String())

	model, err := NewPipeline(testOptions(), nil).Train(context.Background(), ds, ds.DefaultFeatureConfig("y"), nil)
	require.NoError(t, err)
	assert.Equal(t, "> 15.500", model.Preprocessor.Target.Decode(1))
	assert.True(t, model.Metrics.Binary)
	assert.Len(t, model.Metrics.ROC, 21)
}

func TestCrossValidate(t *testing.T) {
	ds := load(t, separableCSV())
	p := NewPipeline(testOptions(), nil)

	res, err := p.CrossValidate(context.Background(), ds, ds.DefaultFeatureConfig("label"), 4)
	require.NoError(t, err)
	assert.Len(t, res.Scores, 4)
	assert.GreaterOrEqual(t, res.Mean, 80.0)

	_, err = p.CrossValidate(context.Background(), ds, ds.DefaultFeatureConfig("label"), 1)
	assert.True(t, errors.Is(err, errors.CodeValidation))
}
