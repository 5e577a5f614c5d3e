package evaluation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"tabforest/internal/errors"
)

// MinSplitRows is the smallest dataset a train/test split accepts.
const MinSplitRows = 10

type TrainTestSplitter struct {
	testSize   float64
	rng        *rand.Rand
	stratified bool
}

// NewTrainTestSplitter returns a splitter drawing from rng. A nil rng is
// replaced by a time-seeded source, so unseeded splits differ per run.
func NewTrainTestSplitter(testSize float64, rng *rand.Rand, stratified bool) *TrainTestSplitter {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &TrainTestSplitter{
		testSize:   testSize,
		rng:        rng,
		stratified: stratified,
	}
}

func DefaultTrainTestSplitter() *TrainTestSplitter {
	return NewTrainTestSplitter(0.2, nil, false)
}

// Split partitions the row indices of y into train and test sets. The plain
// split shuffles all indices and keeps the first floor(n*(1-testSize)) for
// training; the stratified split does the same per class.
func (tts *TrainTestSplitter) Split(y []int) ([]int, []int, error) {
	if len(y) < MinSplitRows {
		return nil, nil, errors.InsufficientSamples(len(y), MinSplitRows)
	}
	if tts.testSize <= 0 || tts.testSize >= 1 {
		return nil, nil, errors.Validation("test size must be between 0 and 1, got %v", tts.testSize)
	}

	if tts.stratified {
		train, test := tts.stratifiedSplit(y)
		return train, test, nil
	}

	indices := make([]int, len(y))
	for i := range indices {
		indices[i] = i
	}
	tts.shuffle(indices)

	trainCount := tts.trainCount(len(indices))
	return indices[:trainCount], indices[trainCount:], nil
}

func (tts *TrainTestSplitter) stratifiedSplit(y []int) ([]int, []int) {
	classIndices := make(map[int][]int)
	for i, label := range y {
		classIndices[label] = append(classIndices[label], i)
	}

	classes := make([]int, 0, len(classIndices))
	for class := range classIndices {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	var trainIndices, testIndices []int
	for _, class := range classes {
		indices := classIndices[class]
		tts.shuffle(indices)

		trainCount := tts.trainCount(len(indices))
		if trainCount == len(indices) && len(indices) > 1 {
			trainCount--
		}
		trainIndices = append(trainIndices, indices[:trainCount]...)
		testIndices = append(testIndices, indices[trainCount:]...)
	}

	tts.shuffle(trainIndices)
	tts.shuffle(testIndices)
	return trainIndices, testIndices
}

// shuffle is a Fisher-Yates shuffle in place.
func (tts *TrainTestSplitter) shuffle(indices []int) {
	for i := len(indices) - 1; i > 0; i-- {
		j := tts.rng.Intn(i + 1)
		indices[i], indices[j] = indices[j], indices[i]
	}
}

func (tts *TrainTestSplitter) trainCount(n int) int {
	return int(math.Floor(float64(n)*(1-tts.testSize) + 1e-9))
}

// Take gathers the rows and labels at indices.
func Take(X [][]float64, y []int, indices []int) ([][]float64, []int, error) {
	if len(X) != len(y) {
		return nil, nil, fmt.Errorf("x and y must have the same length: %d vs %d", len(X), len(y))
	}
	XOut := make([][]float64, len(indices))
	yOut := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(X) {
			return nil, nil, fmt.Errorf("index %d out of range", idx)
		}
		XOut[i] = X[idx]
		yOut[i] = y[idx]
	}
	return XOut, yOut, nil
}
