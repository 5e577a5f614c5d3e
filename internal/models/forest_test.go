package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable returns n samples where class 1 iff the first feature is >= 0.
func separable(n int) ([][]float64, []int) {
	X := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		x := float64(i - n/2)
		X[i] = []float64{x, float64(i % 3)}
		if x >= 0 {
			y[i] = 1
		}
	}
	return X, y
}

func TestWalkFollowsThreshold(t *testing.T) {
	root := &Split{
		Feature:   1,
		Threshold: 2.5,
		Left:      &Leaf{Class: 0},
		Right: &Split{
			Feature:   0,
			Threshold: 0,
			Left:      &Leaf{Class: 1},
			Right:     &Leaf{Class: 2},
		},
	}

	cases := []struct {
		sample []float64
		want   int
	}{
		{[]float64{9, 1}, 0},
		{[]float64{-1, 2.5}, 1},
		{[]float64{0, 3}, 2},
	}
	for _, tc := range cases {
		got, err := Walk(root, tc.sample)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "sample %v", tc.sample)
	}

	_, err := Walk(root, []float64{1})
	assert.Error(t, err)
	_, err = Walk(&Split{Feature: 0, Left: nil, Right: nil}, []float64{-1})
	assert.Error(t, err)
	assert.Equal(t, 2, Depth(root))
}

func TestDecisionTreeLearnsSeparableData(t *testing.T) {
	X, y := separable(20)
	tree := NewDecisionTree(5, 2)
	require.NoError(t, tree.Fit(X, y))

	for i := range X {
		got, err := tree.Predict(X[i])
		require.NoError(t, err)
		assert.Equal(t, y[i], got)
	}
	assert.InDelta(t, 0.5, tree.Gain, 1e-9)

	split, ok := tree.Root.(*Split)
	require.True(t, ok)
	assert.Equal(t, 0, split.Feature)
	assert.Equal(t, -0.5, split.Threshold)
}

func TestDecisionTreePureDataIsLeaf(t *testing.T) {
	tree := NewDecisionTree(5, 2)
	require.NoError(t, tree.Fit([][]float64{{1}, {2}, {3}}, []int{1, 1, 1}))
	assert.Equal(t, &Leaf{Class: 1}, tree.Root)
	assert.Equal(t, 0.0, tree.Gain)
}

func TestDecisionTreeRejectsBadInput(t *testing.T) {
	tree := NewDecisionTree(5, 2)
	assert.Error(t, tree.Fit(nil, nil))
	assert.Error(t, tree.Fit([][]float64{{1}}, []int{0, 1}))
	assert.Error(t, tree.Fit([][]float64{{}}, []int{0}))

	_, err := NewDecisionTree(5, 2).Predict([]float64{1})
	assert.Error(t, err)
}

func TestForestIsReproducibleForSeed(t *testing.T) {
	X, y := separable(40)
	hp := Hyperparameters{NEstimators: 15, MaxDepth: 4, MinNumSamples: 2}

	a := NewRandomForest(hp, 42)
	b := NewRandomForest(hp, 42)
	b.Parallel = false
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	require.Len(t, a.Trees, 15)
	for i := range a.Trees {
		assert.Equal(t, a.Trees[i].Root, b.Trees[i].Root, "tree %d", i)
	}
	assert.Equal(t, []int{0, 1}, a.Classes)
	assert.LessOrEqual(t, a.DeepestTree(), a.MaxDepth)
	assert.Positive(t, a.DeepestTree())
}

func TestForestPredictsAndVotes(t *testing.T) {
	X, y := separable(40)
	rf := NewRandomForest(Hyperparameters{NEstimators: 25, MaxDepth: 5, MinNumSamples: 2}, 7)
	require.NoError(t, rf.Fit(X, y))

	preds, err := rf.PredictBatch([][]float64{{-15, 0}, {15, 1}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, preds)

	votes, total := rf.Votes([]float64{15, 1})
	assert.Equal(t, 25, total)
	assert.Greater(t, votes[1], votes[0])
	assert.Greater(t, rf.VoteShare([]float64{15, 1}, 1), 0.5)
}

func TestForestSkipsFailingTrees(t *testing.T) {
	good := &DecisionTree{Root: &Leaf{Class: 1}}
	bad := &DecisionTree{Root: &Split{Feature: 5, Left: &Leaf{}, Right: &Leaf{}}}
	rf := FromTrees(Hyperparameters{NEstimators: 3}, 0, []*DecisionTree{bad, good, bad})

	votes, total := rf.Votes([]float64{0})
	assert.Equal(t, 1, total)
	assert.Equal(t, map[int]int{1: 1}, votes)

	allBad := FromTrees(Hyperparameters{NEstimators: 1}, 0, []*DecisionTree{bad})
	_, err := allBad.Predict([]float64{0})
	assert.Error(t, err)
	assert.Equal(t, 0.0, allBad.VoteShare([]float64{0}, 1))
}

func TestWinnerBreaksTiesTowardLowerClass(t *testing.T) {
	assert.Equal(t, 0, Winner(map[int]int{1: 3, 0: 3}))
	assert.Equal(t, 1, Winner(map[int]int{0: 1, 2: 4, 1: 4}))
}

func TestAutoHyperparameters(t *testing.T) {
	cases := []struct {
		rows, features int
		want           Hyperparameters
	}{
		{10, 2, Hyperparameters{50, 5, 3}},
		{99, 2, Hyperparameters{50, 5, 3}},
		{100, 2, Hyperparameters{100, 8, 2}},
		{499, 10, Hyperparameters{100, 8, 2}},
		{500, 2, Hyperparameters{150, 12, 2}},
		{999, 2, Hyperparameters{150, 12, 2}},
		{1000, 2, Hyperparameters{200, 15, 3}},
		{50, 11, Hyperparameters{100, 8, 3}},
		{700, 12, Hyperparameters{200, 15, 2}},
		{5000, 40, Hyperparameters{250, 18, 3}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AutoHyperparameters(tc.rows, tc.features), "rows=%d features=%d", tc.rows, tc.features)
	}
}
