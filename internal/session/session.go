package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabforest/internal/data"
	"tabforest/internal/errors"
	"tabforest/internal/logging"
	"tabforest/internal/prediction"
	"tabforest/internal/training"
)

const DefaultHistoryLimit = 100

type ModelVersion struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	Model     *training.TrainedModel
}

// Session owns the working dataset, the active model, the append-only
// version list and the bounded prediction history. It is safe for
// concurrent use, so background training can commit while the REPL reads.
type Session struct {
	mu           sync.RWMutex
	dataset      *data.Dataset
	featureCfg   data.FeatureConfig
	active       *ModelVersion
	versions     []*ModelVersion
	history      []prediction.Record
	historyLimit int
	logger       *zap.SugaredLogger
	now          func() time.Time
}

func New(historyLimit int, logger *zap.SugaredLogger) *Session {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Session{
		historyLimit: historyLimit,
		logger:       logging.OrNop(logger),
		now:          time.Now,
	}
}

// SetDataset replaces the working dataset and resets the feature selection
// to every non-target column.
func (s *Session) SetDataset(ds *data.Dataset, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = ds
	s.featureCfg = ds.DefaultFeatureConfig(target)
}

func (s *Session) Dataset() (*data.Dataset, data.FeatureConfig) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset, s.featureCfg
}

func (s *Session) SetFeatureConfig(cfg data.FeatureConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.featureCfg = cfg
}

// Commit appends model as a new version and makes it active.
func (s *Session) Commit(model *training.TrainedModel, name string) *ModelVersion {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		name = fmt.Sprintf("Model v%d", len(s.versions)+1)
	}
	return s.commitLocked(model, name)
}

// Import activates a model loaded from file. It is recorded as a version
// like any trained model.
func (s *Session) Import(model *training.TrainedModel, source string) *ModelVersion {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commitLocked(model, fmt.Sprintf("Model v%d (imported from %s)", len(s.versions)+1, source))
}

func (s *Session) commitLocked(model *training.TrainedModel, name string) *ModelVersion {
	v := &ModelVersion{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: s.now(),
		Model:     model,
	}
	s.versions = append(s.versions, v)
	s.active = v

	s.logger.Infow("model version committed", "version", v.Name, "id", v.ID)
	return v
}

// Versions returns the versions oldest first.
func (s *Session) Versions() []*ModelVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ModelVersion, len(s.versions))
	copy(out, s.versions)
	return out
}

// LoadVersion makes an earlier version active again. Only the model is
// restored; the working dataset is left as it is.
func (s *Session) LoadVersion(id string) (*ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.versions {
		if v.ID.String() == id || v.Name == id {
			s.active = v
			s.logger.Infow("model version loaded", "version", v.Name, "id", v.ID)
			return v, nil
		}
	}
	return nil, errors.NotFound(fmt.Sprintf("model version %q", id))
}

func (s *Session) Active() (*ModelVersion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.active != nil
}

// Predict runs the active model on raw inputs and records the outcome.
// Failed predictions are not recorded and leave the session unchanged.
func (s *Session) Predict(inputs map[string]string) (*prediction.Record, error) {
	active, ok := s.Active()
	if !ok {
		return nil, errors.NotFound("active model")
	}

	rec, err := prediction.New(active.Model, s.logger).Record(inputs, s.now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.history = append([]prediction.Record{*rec}, s.history...)
	if len(s.history) > s.historyLimit {
		s.history = s.history[:s.historyLimit]
	}
	s.mu.Unlock()

	return rec, nil
}

// History returns recorded predictions, most recent first.
func (s *Session) History() []prediction.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]prediction.Record, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}
