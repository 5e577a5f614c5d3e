package models

import "sort"

// Classifier is what cross-validation and importance estimation need from
// a model.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(sample []float64) (int, error)
	PredictBatch(X [][]float64) ([]int, error)
	GetName() string
	GetParams() map[string]any
}

type BaseModel struct {
	Name    string
	Params  map[string]any
	Classes []int
}

func (bm *BaseModel) GetName() string {
	return bm.Name
}

func (bm *BaseModel) GetParams() map[string]any {
	return bm.Params
}

// ExtractClasses returns the distinct labels of y in ascending order.
func ExtractClasses(y []int) []int {
	classMap := make(map[int]bool)
	for _, label := range y {
		classMap[label] = true
	}

	classes := make([]int, 0, len(classMap))
	for class := range classMap {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	return classes
}
