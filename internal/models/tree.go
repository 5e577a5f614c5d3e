package models

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// Node is either a *Leaf or a *Split.
type Node interface {
	isNode()
}

type Leaf struct {
	Class int
}

// Split sends a sample left when sample[Feature] < Threshold.
type Split struct {
	Feature   int
	Threshold float64
	Left      Node
	Right     Node
}

func (*Leaf) isNode()  {}
func (*Split) isNode() {}

var errNilNode = errors.New("malformed tree: nil node")

// Walk descends from node to a leaf and returns its class.
func Walk(node Node, sample []float64) (int, error) {
	switch n := node.(type) {
	case *Leaf:
		if n == nil {
			return 0, errNilNode
		}
		return n.Class, nil
	case *Split:
		if n == nil {
			return 0, errNilNode
		}
		if n.Feature < 0 || n.Feature >= len(sample) {
			return 0, fmt.Errorf("split on feature %d but sample has %d features", n.Feature, len(sample))
		}
		if sample[n.Feature] < n.Threshold {
			return Walk(n.Left, sample)
		}
		return Walk(n.Right, sample)
	}
	return 0, errNilNode
}

// Depth returns the number of edges on the longest root-to-leaf path.
func Depth(node Node) int {
	s, ok := node.(*Split)
	if !ok || s == nil {
		return 0
	}
	return 1 + max(Depth(s.Left), Depth(s.Right))
}

// DecisionTree is a CART classifier using Gini impurity.
type DecisionTree struct {
	Root            Node
	Gain            float64
	MaxDepth        int
	MinSamplesSplit int
	// MaxFeatures limits the features tried at each node; 0 tries all.
	MaxFeatures int

	rng        *rand.Rand
	numClasses int
}

func NewDecisionTree(maxDepth, minSamplesSplit int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if minSamplesSplit < 2 {
		minSamplesSplit = 2
	}
	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
	}
}

func (dt *DecisionTree) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("cannot fit a tree on an empty dataset")
	}
	if len(X) != len(y) {
		return fmt.Errorf("x and y must have the same length: %d vs %d", len(X), len(y))
	}
	if len(X[0]) == 0 {
		return errors.New("features cannot be empty")
	}

	dt.numClasses = 0
	for _, c := range y {
		if c < 0 {
			return fmt.Errorf("class ids must be non-negative, got %d", c)
		}
		if c+1 > dt.numClasses {
			dt.numClasses = c + 1
		}
	}

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}

	var gain float64
	dt.Root, gain = dt.buildTree(X, y, indices, 0)
	dt.Gain = gain
	return nil
}

func (dt *DecisionTree) Predict(sample []float64) (int, error) {
	if dt.Root == nil {
		return 0, errors.New("tree has not been fitted")
	}
	return Walk(dt.Root, sample)
}

func (dt *DecisionTree) buildTree(X [][]float64, y []int, indices []int, depth int) (Node, float64) {
	counts := dt.classCounts(y, indices)

	if depth >= dt.MaxDepth || len(indices) < dt.MinSamplesSplit || isPure(counts) {
		return &Leaf{Class: majority(counts)}, 0
	}

	feature, threshold, gain := dt.findBestSplit(X, y, indices, counts)
	if gain <= 0 {
		return &Leaf{Class: majority(counts)}, 0
	}

	var left, right []int
	for _, idx := range indices {
		if X[idx][feature] < threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &Leaf{Class: majority(counts)}, 0
	}

	leftNode, _ := dt.buildTree(X, y, left, depth+1)
	rightNode, _ := dt.buildTree(X, y, right, depth+1)

	return &Split{
		Feature:   feature,
		Threshold: threshold,
		Left:      leftNode,
		Right:     rightNode,
	}, gain
}

// findBestSplit scans the candidate features for the threshold with the
// largest Gini decrease. Thresholds sit halfway between consecutive
// distinct values.
func (dt *DecisionTree) findBestSplit(X [][]float64, y []int, indices []int, parentCounts []int) (int, float64, float64) {
	bestFeature, bestThreshold, bestGain := 0, 0.0, 0.0

	n := len(indices)
	parentImpurity := gini(parentCounts, n)

	sorted := make([]int, n)
	leftCounts := make([]int, dt.numClasses)
	rightCounts := make([]int, dt.numClasses)

	for _, feature := range dt.candidateFeatures(len(X[0])) {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(a, b int) bool {
			return X[sorted[a]][feature] < X[sorted[b]][feature]
		})

		for c := range leftCounts {
			leftCounts[c] = 0
		}
		copy(rightCounts, parentCounts)

		for i := 0; i < n-1; i++ {
			cls := y[sorted[i]]
			leftCounts[cls]++
			rightCounts[cls]--

			lo := X[sorted[i]][feature]
			hi := X[sorted[i+1]][feature]
			if lo == hi {
				continue
			}

			nLeft := i + 1
			nRight := n - nLeft
			weighted := (float64(nLeft)*gini(leftCounts, nLeft) + float64(nRight)*gini(rightCounts, nRight)) / float64(n)
			gain := parentImpurity - weighted

			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = midpoint(lo, hi)
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

func (dt *DecisionTree) candidateFeatures(nFeatures int) []int {
	features := make([]int, nFeatures)
	for i := range features {
		features[i] = i
	}
	if dt.MaxFeatures <= 0 || dt.MaxFeatures >= nFeatures || dt.rng == nil {
		return features
	}

	for i := 0; i < dt.MaxFeatures; i++ {
		j := i + dt.rng.Intn(nFeatures-i)
		features[i], features[j] = features[j], features[i]
	}
	return features[:dt.MaxFeatures]
}

func (dt *DecisionTree) classCounts(y []int, indices []int) []int {
	counts := make([]int, dt.numClasses)
	for _, idx := range indices {
		counts[y[idx]]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		impurity -= p * p
	}
	return impurity
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// majority returns the most frequent class, preferring the lower id on ties.
func majority(counts []int) int {
	best, bestCount := 0, -1
	for cls, c := range counts {
		if c > bestCount {
			best, bestCount = cls, c
		}
	}
	return best
}

func midpoint(lo, hi float64) float64 {
	mid := lo + (hi-lo)/2
	if mid <= lo {
		return hi
	}
	return mid
}
