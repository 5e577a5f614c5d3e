package evaluation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"tabforest/internal/errors"
)

// ROCThresholds is the number of evenly spaced score cut-offs in [0,1].
const ROCThresholds = 21

type ConfusionMatrix struct {
	TP int `json:"tp"`
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

type ROCPoint struct {
	Threshold float64 `json:"threshold"`
	FPR       float64 `json:"fpr"`
	TPR       float64 `json:"tpr"`
}

// Metrics are reported as percentages, except AUC which stays in [0,1].
type Metrics struct {
	Accuracy   float64         `json:"accuracy"`
	Precision  float64         `json:"precision"`
	Recall     float64         `json:"recall"`
	F1Score    float64         `json:"f1Score"`
	AUC        float64         `json:"auc"`
	Confusion  ConfusionMatrix `json:"confusionMatrix"`
	ROC        []ROCPoint      `json:"rocCurve"`
	Matrix     [][]int         `json:"matrix,omitempty"`
	Classes    []int           `json:"classes,omitempty"`
	Binary     bool            `json:"binary"`
	NumSamples int             `json:"numSamples"`
}

// Evaluate scores predictions against truth. scores holds the positive-class
// score of each sample and drives the ROC curve; when nil the hard
// predictions are used as 0/1 scores. The binary counts, precision, recall,
// F1 and ROC are only filled for 0/1 labels.
func Evaluate(yTrue, yPred []int, scores []float64) (*Metrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, errors.Validation("truth and predictions differ in length: %d vs %d", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, errors.Validation("cannot evaluate an empty test set")
	}
	if scores != nil && len(scores) != len(yTrue) {
		return nil, errors.Validation("scores and truth differ in length: %d vs %d", len(scores), len(yTrue))
	}

	correct := 0
	for i := range yTrue {
		if yPred[i] == yTrue[i] {
			correct++
		}
	}

	classes := unionClasses(yTrue, yPred)
	m := &Metrics{
		Accuracy:   100 * safeDivide(float64(correct), float64(len(yTrue))),
		Matrix:     buildConfusionMatrix(yTrue, yPred, classes),
		Classes:    classes,
		NumSamples: len(yTrue),
		Binary:     isBinary(classes),
	}
	if !m.Binary {
		return m, nil
	}

	cm := confusionAt(yTrue, yPred)
	m.Confusion = cm

	var precision, recall float64
	if cm.TP > 0 {
		precision = safeDivide(float64(cm.TP), float64(cm.TP+cm.FP))
		recall = safeDivide(float64(cm.TP), float64(cm.TP+cm.FN))
	}
	m.Precision = 100 * precision
	m.Recall = 100 * recall
	m.F1Score = 100 * safeDivide(2*precision*recall, precision+recall)

	if scores == nil {
		scores = make([]float64, len(yPred))
		for i, p := range yPred {
			scores[i] = float64(p)
		}
	}
	m.ROC = rocCurve(yTrue, scores)
	m.AUC = AUC(m.ROC)

	return m, nil
}

func confusionAt(yTrue, yPred []int) ConfusionMatrix {
	var cm ConfusionMatrix
	for i := range yTrue {
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			cm.TP++
		case yPred[i] == 0 && yTrue[i] == 0:
			cm.TN++
		case yPred[i] == 1 && yTrue[i] == 0:
			cm.FP++
		case yPred[i] == 0 && yTrue[i] == 1:
			cm.FN++
		}
	}
	return cm
}

func rocCurve(yTrue []int, scores []float64) []ROCPoint {
	points := make([]ROCPoint, ROCThresholds)
	pred := make([]int, len(scores))

	for k := 0; k < ROCThresholds; k++ {
		threshold := float64(k) / float64(ROCThresholds-1)
		for i, s := range scores {
			pred[i] = 0
			if s >= threshold {
				pred[i] = 1
			}
		}
		cm := confusionAt(yTrue, pred)
		points[k] = ROCPoint{
			Threshold: threshold,
			FPR:       safeDivide(float64(cm.FP), float64(cm.FP+cm.TN)),
			TPR:       safeDivide(float64(cm.TP), float64(cm.TP+cm.FN)),
		}
	}
	return points
}

// AUC integrates the curve with the trapezoid rule after sorting by false
// positive rate. The (0,0) and (1,1) corners are always included.
func AUC(points []ROCPoint) float64 {
	curve := make([]ROCPoint, 0, len(points)+2)
	curve = append(curve, ROCPoint{FPR: 0, TPR: 0})
	curve = append(curve, points...)
	curve = append(curve, ROCPoint{FPR: 1, TPR: 1})

	sort.SliceStable(curve, func(i, j int) bool {
		if curve[i].FPR != curve[j].FPR {
			return curve[i].FPR < curve[j].FPR
		}
		return curve[i].TPR < curve[j].TPR
	})

	area := 0.0
	for i := 1; i < len(curve); i++ {
		dx := curve[i].FPR - curve[i-1].FPR
		area += dx * (curve[i].TPR + curve[i-1].TPR) / 2
	}
	return area
}

func unionClasses(a, b []int) []int {
	seen := make(map[int]bool)
	for _, c := range a {
		seen[c] = true
	}
	for _, c := range b {
		seen[c] = true
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

func isBinary(classes []int) bool {
	for _, c := range classes {
		if c != 0 && c != 1 {
			return false
		}
	}
	return true
}

func buildConfusionMatrix(yTrue, yPred []int, classes []int) [][]int {
	numClasses := len(classes)
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}

	classToIdx := make(map[int]int)
	for i, class := range classes {
		classToIdx[class] = i
	}

	for i := range yTrue {
		trueIdx, trueOk := classToIdx[yTrue[i]]
		predIdx, predOk := classToIdx[yPred[i]]
		if trueOk && predOk {
			matrix[trueIdx][predIdx]++
		}
	}

	return matrix
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0.0
	}
	result := numerator / denominator
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0.0
	}
	return result
}

// ClassAt returns the class id of row and column i of Matrix. Metrics
// saved without a class list fall back to the index.
func (m *Metrics) ClassAt(i int) int {
	if i < len(m.Classes) {
		return m.Classes[i]
	}
	return i
}

func (m *Metrics) FormatMetrics() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Accuracy: %.2f%%\n", m.Accuracy)
	if m.Binary {
		fmt.Fprintf(&b, "Precision: %.2f%%, Recall: %.2f%%, F1: %.2f%%\n", m.Precision, m.Recall, m.F1Score)
		fmt.Fprintf(&b, "AUC: %.4f\n", m.AUC)
		fmt.Fprintf(&b, "TP=%d TN=%d FP=%d FN=%d\n", m.Confusion.TP, m.Confusion.TN, m.Confusion.FP, m.Confusion.FN)
	}
	return b.String()
}
