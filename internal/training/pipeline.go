package training

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"tabforest/internal/config"
	"tabforest/internal/data"
	"tabforest/internal/errors"
	"tabforest/internal/evaluation"
	"tabforest/internal/logging"
	"tabforest/internal/models"
	"tabforest/internal/preprocessing"
)

// TrainedModel is everything needed to predict, inspect or export the
// result of one training run. It is not modified after Train returns.
type TrainedModel struct {
	Hyperparameters models.Hyperparameters
	Seed            int64
	Preprocessor    *preprocessing.Preprocessor
	Forest          *models.RandomForest
	Metrics         *evaluation.Metrics
	Importance      []evaluation.FeatureImportance
	CreatedAt       time.Time
	DatasetSize     int
}

func (m *TrainedModel) Features() []string {
	return m.Preprocessor.Config.Features
}

// Reporter receives coarse progress from a running pipeline. *jobs.Job
// satisfies it.
type Reporter interface {
	SetProgress(progress float64)
	AddLog(message string)
}

type Options struct {
	TestRatio        float64
	MinRows          int
	Seed             int64
	Stratified       bool
	ImportanceTrials int
	// Rand drives the split and the importance permutations. Nil means a
	// time-seeded source.
	Rand *rand.Rand
}

func OptionsFromConfig(cfg config.TrainingConfig) Options {
	return Options{
		TestRatio:        cfg.TestRatio,
		MinRows:          cfg.MinRows,
		Seed:             cfg.ForestSeed,
		Stratified:       cfg.Stratified,
		ImportanceTrials: cfg.ImportanceTrials,
	}
}

type Pipeline struct {
	opts      Options
	validator *data.DataValidator
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewPipeline(opts Options, logger *zap.SugaredLogger) *Pipeline {
	if opts.TestRatio <= 0 || opts.TestRatio >= 1 {
		opts.TestRatio = 0.2
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	validator := data.NewDataValidator()
	if opts.MinRows > validator.MinTrainingRows {
		validator.MinTrainingRows = opts.MinRows
	}

	return &Pipeline{
		opts:      opts,
		validator: validator,
		logger:    logging.OrNop(logger),
		now:       time.Now,
	}
}

// Train runs validation, preprocessing, hyperparameter selection, the
// train/test split, forest fitting, evaluation and permutation importance
// in that order. Any failure stops the run and nothing is returned.
func (p *Pipeline) Train(ctx context.Context, ds *data.Dataset, cfg data.FeatureConfig, reporter Reporter) (*TrainedModel, error) {
	report := func(progress float64, msg string) {
		p.logger.Infow(msg, "progress", progress)
		if reporter != nil {
			reporter.SetProgress(progress)
			reporter.AddLog(msg)
		}
	}

	if err := p.validator.ValidateForTraining(ds, cfg); err != nil {
		return nil, err
	}

	prep, err := preprocessing.Fit(ds, cfg)
	if err != nil {
		return nil, err
	}
	X, y, err := prep.Transform(ds)
	if err != nil {
		return nil, errors.Wrap(err, "transform dataset")
	}
	report(0.1, "preprocessing complete")

	hp := models.AutoHyperparameters(ds.Len(), len(cfg.Features))
	p.logger.Infow("hyperparameters selected",
		"rows", ds.Len(),
		"features", len(cfg.Features),
		"trees", hp.NEstimators,
		"max_depth", hp.MaxDepth,
		"min_samples", hp.MinNumSamples,
	)

	splitter := evaluation.NewTrainTestSplitter(p.opts.TestRatio, p.opts.Rand, p.opts.Stratified)
	trainIdx, testIdx, err := splitter.Split(y)
	if err != nil {
		return nil, err
	}
	XTrain, yTrain, err := evaluation.Take(X, y, trainIdx)
	if err != nil {
		return nil, err
	}
	XTest, yTest, err := evaluation.Take(X, y, testIdx)
	if err != nil {
		return nil, err
	}
	p.logger.Infow("split complete", "train", len(trainIdx), "test", len(testIdx), "stratified", p.opts.Stratified)
	report(0.2, "split complete")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	forest := models.NewRandomForest(hp, p.opts.Seed)
	if err := forest.Fit(XTrain, yTrain); err != nil {
		return nil, errors.Wrap(err, "fit forest")
	}
	p.logger.Debugw("forest parameters", "model", forest.GetName(), "params", forest.GetParams())
	report(0.7, "forest fitted")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	yPred, err := forest.PredictBatch(XTest)
	if err != nil {
		return nil, errors.Wrap(err, "predict test set")
	}
	var scores []float64
	if prep.Target.NumClasses() == 2 {
		scores = make([]float64, len(XTest))
		for i, sample := range XTest {
			scores[i] = forest.VoteShare(sample, 1)
		}
	}
	metrics, err := evaluation.Evaluate(yTest, yPred, scores)
	if err != nil {
		return nil, err
	}
	p.logger.Infow("evaluation complete", "accuracy", metrics.Accuracy, "auc", metrics.AUC)
	report(0.8, "evaluation complete")

	importance, err := evaluation.NewPermutationImportance(p.opts.Rand, p.opts.ImportanceTrials).
		Compute(forest, XTest, yTest, cfg.Features)
	if err != nil {
		return nil, errors.Wrap(err, "feature importance")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(1.0, "feature importance complete")

	return &TrainedModel{
		Hyperparameters: hp,
		Seed:            p.opts.Seed,
		Preprocessor:    prep,
		Forest:          forest,
		Metrics:         metrics,
		Importance:      importance,
		CreatedAt:       p.now(),
		DatasetSize:     ds.Len(),
	}, nil
}

// CrossValidate estimates how the forest Train would build generalises,
// using k folds over the whole dataset. Fold i grows its forest from
// Seed+i so runs with the same options repeat.
func (p *Pipeline) CrossValidate(ctx context.Context, ds *data.Dataset, cfg data.FeatureConfig, folds int) (*evaluation.CrossValidationResult, error) {
	if err := p.validator.ValidateForTraining(ds, cfg); err != nil {
		return nil, err
	}

	prep, err := preprocessing.Fit(ds, cfg)
	if err != nil {
		return nil, err
	}
	X, y, err := prep.Transform(ds)
	if err != nil {
		return nil, errors.Wrap(err, "transform dataset")
	}

	hp := models.AutoHyperparameters(ds.Len(), len(cfg.Features))
	cv := evaluation.NewCrossValidator(folds, p.opts.Rand)
	res, err := cv.CrossValidate(ctx, X, y, func(fold int) models.Classifier {
		return models.NewRandomForest(hp, p.opts.Seed+int64(fold))
	})
	if err != nil {
		return nil, err
	}

	p.logger.Infow("cross-validation complete", "model", res.Model, "folds", folds, "mean", res.Mean, "std", res.StdDev)
	return res, nil
}
