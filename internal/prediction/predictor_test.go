package prediction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tabforest/internal/data"
	"tabforest/internal/errors"
	"tabforest/internal/models"
	"tabforest/internal/preprocessing"
	"tabforest/internal/testutil"
	"tabforest/internal/training"
)

func TestPredictFarIntoClassA(t *testing.T) {
	model := testutil.TrainSeparable(t)
	p := New(model, zaptest.NewLogger(t).Sugar())

	res, err := p.PredictStrings(map[string]string{"x1": "-50", "x2": "1", "color": "red"})
	require.NoError(t, err)
	assert.Equal(t, "A", res.Label)
	assert.Equal(t, 0, res.ClassID)
	assert.Greater(t, res.Confidence, 0.5)
	assert.LessOrEqual(t, res.Confidence, 1.0)

	total := 0
	for _, n := range res.Votes {
		total += n
	}
	assert.Equal(t, len(model.Forest.Trees), total)

	res, err = p.PredictStrings(map[string]string{"x1": "500", "x2": "1", "color": "blue"})
	require.NoError(t, err)
	assert.Equal(t, "B", res.Label)
}

func TestPredictRejectsUnseenCategory(t *testing.T) {
	p := New(testutil.TrainSeparable(t), nil)

	_, err := p.PredictStrings(map[string]string{"x1": "3", "x2": "1", "color": "purple"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeUnseenCategory))
}

func TestRecordKeepsOnlyModelFeatures(t *testing.T) {
	p := New(testutil.TrainSeparable(t), nil)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rec, err := p.Record(map[string]string{"x1": "2", "x2": "0", "color": "green", "extra": "x"}, now)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x1": "2", "x2": "0", "color": "green"}, rec.Inputs)
	assert.Equal(t, now, rec.Timestamp)
	assert.Equal(t, "A", rec.Label)
	assert.NotEqual(t, uuid.Nil, rec.ID)
}

// handBuilt returns a model over one numeric feature whose trees are given
// directly.
func handBuilt(trees ...*models.DecisionTree) *training.TrainedModel {
	return &training.TrainedModel{
		Preprocessor: &preprocessing.Preprocessor{
			Config:    data.FeatureConfig{Features: []string{"x"}, Target: "y"},
			Encodings: map[string]preprocessing.LabelEncoder{},
			Stats:     map[string]preprocessing.FeatureStats{"x": {Mean: 0, Std: 1}},
			Target: &preprocessing.TargetEncoding{
				Type:    data.Categorical,
				Classes: preprocessing.LabelEncoder{"no": 0, "yes": 1},
			},
		},
		Forest: models.FromTrees(models.Hyperparameters{NEstimators: len(trees)}, 0, trees),
	}
}

func TestConfidenceSkipsFailingTrees(t *testing.T) {
	broken := &models.DecisionTree{Root: &models.Split{Feature: 3, Left: &models.Leaf{}, Right: &models.Leaf{}}}
	yes := &models.DecisionTree{Root: &models.Leaf{Class: 1}}
	no := &models.DecisionTree{Root: &models.Leaf{Class: 0}}

	p := New(handBuilt(broken, yes, yes, no, nil, broken), nil)
	res, err := p.Predict(data.Row{"x": data.NumberValue(1)})
	require.NoError(t, err)

	assert.Equal(t, "yes", res.Label)
	assert.InDelta(t, 2.0/3.0, res.Confidence, 1e-9)
	assert.Equal(t, map[int]int{1: 2, 0: 1}, res.Votes)
}

func TestPredictFailsWhenNoTreeVotes(t *testing.T) {
	broken := &models.DecisionTree{Root: &models.Split{Feature: 3, Left: &models.Leaf{}, Right: &models.Leaf{}}}
	_, err := New(handBuilt(broken), nil).Predict(data.Row{"x": data.NumberValue(1)})
	assert.Error(t, err)
}

func TestUnknownClassDecodesToUnknown(t *testing.T) {
	odd := &models.DecisionTree{Root: &models.Leaf{Class: 9}}
	res, err := New(handBuilt(odd), nil).Predict(data.Row{"x": data.NumberValue(0)})
	require.NoError(t, err)
	assert.Equal(t, preprocessing.UnknownLabel, res.Label)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestVoteRecoversFromPanics(t *testing.T) {
	_, err := vote(nil, []float64{1})
	assert.Error(t, err)

	var nilLeaf *models.Leaf
	_, err = vote(&models.DecisionTree{Root: nilLeaf}, []float64{1})
	assert.Error(t, err)
}
