package models

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// RandomForest bags Gini trees over bootstrap samples. Tree i draws its
// sample from a source seeded with Seed+i, so a fit is reproducible for a
// fixed seed regardless of how many workers run.
type RandomForest struct {
	BaseModel
	NTrees          int
	MaxDepth        int
	MinSamplesSplit int
	// MaxFeatures is the number of features tried at each split; 0 tries all.
	MaxFeatures int
	Seed        int64
	Trees       []*DecisionTree
	Parallel    bool
	MaxWorkers  int
}

var _ Classifier = (*RandomForest)(nil)

func NewRandomForest(hp Hyperparameters, seed int64) *RandomForest {
	return &RandomForest{
		NTrees:          hp.NEstimators,
		MaxDepth:        hp.MaxDepth,
		MinSamplesSplit: hp.MinNumSamples,
		Seed:            seed,
		Parallel:        true,
		MaxWorkers:      4,
		BaseModel: BaseModel{
			Name: "RandomForest",
			Params: map[string]any{
				"n_trees":           hp.NEstimators,
				"max_depth":         hp.MaxDepth,
				"min_samples_split": hp.MinNumSamples,
				"seed":              seed,
			},
		},
	}
}

// FromTrees rebuilds a forest around already-grown trees, as when loading a
// saved model.
func FromTrees(hp Hyperparameters, seed int64, trees []*DecisionTree) *RandomForest {
	rf := NewRandomForest(hp, seed)
	rf.Trees = trees
	return rf
}

func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("cannot fit a forest on an empty dataset")
	}
	if len(X) != len(y) {
		return fmt.Errorf("x and y must have the same length: %d vs %d", len(X), len(y))
	}
	if rf.NTrees < 1 {
		return fmt.Errorf("forest needs at least one tree, got %d", rf.NTrees)
	}

	rf.Classes = ExtractClasses(y)
	rf.Trees = make([]*DecisionTree, rf.NTrees)

	if rf.Parallel {
		return rf.trainParallel(X, y)
	}
	return rf.trainSequential(X, y)
}

func (rf *RandomForest) trainParallel(X [][]float64, y []int) error {
	var wg sync.WaitGroup
	errs := make([]error, rf.NTrees)

	workers := rf.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > rf.NTrees {
		workers = rf.NTrees
	}

	jobs := make(chan int, rf.NTrees)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rf.Trees[i], errs[i] = rf.trainSingleTree(X, y, i)
			}
		}()
	}

	for i := 0; i < rf.NTrees; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("tree %d training failed: %w", i, err)
		}
	}
	return nil
}

func (rf *RandomForest) trainSequential(X [][]float64, y []int) error {
	for i := 0; i < rf.NTrees; i++ {
		tree, err := rf.trainSingleTree(X, y, i)
		if err != nil {
			return fmt.Errorf("tree %d training failed: %w", i, err)
		}
		rf.Trees[i] = tree
	}
	return nil
}

func (rf *RandomForest) trainSingleTree(X [][]float64, y []int, i int) (*DecisionTree, error) {
	r := rand.New(rand.NewSource(rf.Seed + int64(i)))

	n := len(X)
	XBoot := make([][]float64, n)
	yBoot := make([]int, n)
	for j := 0; j < n; j++ {
		idx := r.Intn(n)
		XBoot[j] = X[idx]
		yBoot[j] = y[idx]
	}

	tree := NewDecisionTree(rf.MaxDepth, rf.MinSamplesSplit)
	tree.MaxFeatures = rf.MaxFeatures
	tree.rng = r

	return tree, tree.Fit(XBoot, yBoot)
}

// Votes asks every tree for a class. Trees that fail to produce one are
// skipped; the second return value counts the trees that did vote.
func (rf *RandomForest) Votes(sample []float64) (map[int]int, int) {
	votes := make(map[int]int)
	total := 0
	for _, tree := range rf.Trees {
		if tree == nil {
			continue
		}
		class, err := tree.Predict(sample)
		if err != nil {
			continue
		}
		votes[class]++
		total++
	}
	return votes, total
}

// Predict returns the majority class, preferring the lower class id on ties.
func (rf *RandomForest) Predict(sample []float64) (int, error) {
	votes, total := rf.Votes(sample)
	if total == 0 {
		return 0, errors.New("no tree produced a prediction")
	}
	return Winner(votes), nil
}

func (rf *RandomForest) PredictBatch(X [][]float64) ([]int, error) {
	predictions := make([]int, len(X))
	for i, sample := range X {
		class, err := rf.Predict(sample)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		predictions[i] = class
	}
	return predictions, nil
}

// VoteShare is the fraction of voting trees that chose class. It is the
// score the ROC curve thresholds.
func (rf *RandomForest) VoteShare(sample []float64, class int) float64 {
	votes, total := rf.Votes(sample)
	if total == 0 {
		return 0
	}
	return float64(votes[class]) / float64(total)
}

// DeepestTree returns the largest Depth over the grown trees.
func (rf *RandomForest) DeepestTree() int {
	deepest := 0
	for _, tree := range rf.Trees {
		deepest = max(deepest, Depth(tree.Root))
	}
	return deepest
}

// Winner picks the class with the most votes. Ties go to the lower class id.
func Winner(votes map[int]int) int {
	best, bestCount := 0, -1
	for class, count := range votes {
		if count > bestCount || (count == bestCount && class < best) {
			best, bestCount = class, count
		}
	}
	return best
}
