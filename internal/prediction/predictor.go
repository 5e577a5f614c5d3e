package prediction

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabforest/internal/data"
	"tabforest/internal/logging"
	"tabforest/internal/models"
	"tabforest/internal/training"
)

// DefaultConfidence is reported when no tree manages to vote.
const DefaultConfidence = 0.5

type Result struct {
	ClassID    int
	Label      string
	Confidence float64
	Votes      map[int]int
}

// Record is one entry of the prediction history.
type Record struct {
	ID         uuid.UUID
	Inputs     map[string]string
	Label      string
	ClassID    int
	Confidence float64
	Timestamp  time.Time
}

type Predictor struct {
	model  *training.TrainedModel
	logger *zap.SugaredLogger
}

func New(model *training.TrainedModel, logger *zap.SugaredLogger) *Predictor {
	return &Predictor{model: model, logger: logging.OrNop(logger)}
}

// Predict encodes row with the training-time encodings, rejecting unseen
// categories, and classifies it. Confidence is the winning class's share of
// the trees that voted.
func (p *Predictor) Predict(row data.Row) (*Result, error) {
	sample, err := p.model.Preprocessor.TransformRow(row)
	if err != nil {
		return nil, err
	}

	classID, err := p.model.Forest.Predict(sample)
	if err != nil {
		return nil, fmt.Errorf("forest prediction: %w", err)
	}

	votes, total := p.tally(sample)
	confidence := DefaultConfidence
	if total > 0 {
		confidence = float64(votes[classID]) / float64(total)
	}

	return &Result{
		ClassID:    classID,
		Label:      p.model.Preprocessor.Target.Decode(classID),
		Confidence: confidence,
		Votes:      votes,
	}, nil
}

// PredictStrings parses raw text inputs the way CSV cells are parsed and
// predicts. Features absent from inputs are treated as missing.
func (p *Predictor) PredictStrings(inputs map[string]string) (*Result, error) {
	row := make(data.Row, len(inputs))
	for _, feature := range p.model.Features() {
		row[feature] = data.ParseValue(inputs[feature])
	}
	return p.Predict(row)
}

// Record predicts and wraps the outcome for the history.
func (p *Predictor) Record(inputs map[string]string, now time.Time) (*Record, error) {
	res, err := p.PredictStrings(inputs)
	if err != nil {
		return nil, err
	}
	kept := make(map[string]string, len(p.model.Features()))
	for _, feature := range p.model.Features() {
		kept[feature] = inputs[feature]
	}
	return &Record{
		ID:         uuid.New(),
		Inputs:     kept,
		Label:      res.Label,
		ClassID:    res.ClassID,
		Confidence: res.Confidence,
		Timestamp:  now,
	}, nil
}

// tally polls each tree on its own, skipping trees that error or panic.
func (p *Predictor) tally(sample []float64) (map[int]int, int) {
	votes := make(map[int]int)
	total := 0
	for i, tree := range p.model.Forest.Trees {
		class, err := vote(tree, sample)
		if err != nil {
			p.logger.Debugw("tree skipped during confidence scoring", "tree", i, "error", err)
			continue
		}
		votes[class]++
		total++
	}
	return votes, total
}

func vote(tree *models.DecisionTree, sample []float64) (class int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tree panicked: %v", r)
		}
	}()
	if tree == nil {
		return 0, fmt.Errorf("nil tree")
	}
	return tree.Predict(sample)
}
