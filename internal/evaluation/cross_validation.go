package evaluation

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	mstats "github.com/montanaflynn/stats"

	"tabforest/internal/errors"
	"tabforest/internal/models"
)

// TrainerFactory builds a fresh, unfitted model for the given fold.
type TrainerFactory func(fold int) models.Classifier

type CrossValidationResult struct {
	// Model and Params describe the model built for the first fold.
	Model  string
	Params map[string]any
	// Scores holds per-fold accuracy in percent.
	Scores []float64
	Mean   float64
	StdDev float64
}

type CrossValidator struct {
	NFolds     int
	Shuffle    bool
	Parallel   bool
	MaxWorkers int
	rng        *rand.Rand
}

func NewCrossValidator(nFolds int, rng *rand.Rand) *CrossValidator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &CrossValidator{
		NFolds:     nFolds,
		Shuffle:    true,
		Parallel:   true,
		MaxWorkers: 4,
		rng:        rng,
	}
}

// CrossValidate fits one model per fold and reports its accuracy on the
// held-out rows.
func (cv *CrossValidator) CrossValidate(ctx context.Context, X [][]float64, y []int, newModel TrainerFactory) (*CrossValidationResult, error) {
	if len(X) != len(y) {
		return nil, errors.Validation("X has %d rows but y has %d", len(X), len(y))
	}
	folds, err := cv.KFoldSplit(len(X))
	if err != nil {
		return nil, err
	}

	scores := make([]float64, cv.NFolds)
	errs := make([]error, cv.NFolds)

	workers := 1
	if cv.Parallel {
		workers = min(max(cv.MaxWorkers, 1), cv.NFolds)
	}

	type foldJob struct {
		index       int
		testIndices []int
	}

	jobs := make(chan foldJob, cv.NFolds)
	var wg sync.WaitGroup
	var name string
	var params map[string]any

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if err := ctx.Err(); err != nil {
					errs[job.index] = err
					continue
				}
				model := newModel(job.index)
				if job.index == 0 {
					name, params = model.GetName(), model.GetParams()
				}
				scores[job.index], errs[job.index] = evaluateFold(X, y, model, job.testIndices)
			}
		}()
	}

	for i, fold := range folds {
		jobs <- foldJob{index: i, testIndices: fold}
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d failed", i)
		}
	}

	res := &CrossValidationResult{Model: name, Params: params, Scores: scores}
	if res.Mean, err = mstats.Mean(scores); err != nil {
		return nil, errors.Wrap(err, "mean")
	}
	if len(scores) > 1 {
		if res.StdDev, err = mstats.StandardDeviationSample(scores); err != nil {
			return nil, errors.Wrap(err, "standard deviation")
		}
	}
	return res, nil
}

func evaluateFold(X [][]float64, y []int, model models.Classifier, testIndices []int) (float64, error) {
	testSet := make(map[int]bool, len(testIndices))
	for _, idx := range testIndices {
		testSet[idx] = true
	}

	trainIndices := make([]int, 0, len(X)-len(testIndices))
	for i := range X {
		if !testSet[i] {
			trainIndices = append(trainIndices, i)
		}
	}

	XTrain, yTrain, err := Take(X, y, trainIndices)
	if err != nil {
		return 0, err
	}
	XTest, yTest, err := Take(X, y, testIndices)
	if err != nil {
		return 0, err
	}

	if err := model.Fit(XTrain, yTrain); err != nil {
		return 0, err
	}
	acc, err := accuracy(model, XTest, yTest)
	return acc * 100, err
}

// KFoldSplit partitions 0..n-1 into NFolds test folds; the last fold takes
// the remainder.
func (cv *CrossValidator) KFoldSplit(n int) ([][]int, error) {
	if cv.NFolds < 2 || cv.NFolds > n {
		return nil, errors.Validation("invalid number of folds: %d (must be between 2 and %d)", cv.NFolds, n)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if cv.Shuffle {
		cv.rng.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([][]int, cv.NFolds)
	foldSize := n / cv.NFolds
	for i := 0; i < cv.NFolds; i++ {
		start := i * foldSize
		end := start + foldSize
		if i == cv.NFolds-1 {
			end = n
		}
		folds[i] = make([]int, end-start)
		copy(folds[i], indices[start:end])
	}

	return folds, nil
}

func (r *CrossValidationResult) String() string {
	if r.Model == "" {
		return fmt.Sprintf("%.2f%% ± %.2f%% over %d folds", r.Mean, r.StdDev, len(r.Scores))
	}
	return fmt.Sprintf("%s %.2f%% ± %.2f%% over %d folds", r.Model, r.Mean, r.StdDev, len(r.Scores))
}
