package persistence

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"tabforest/internal/data"
	"tabforest/internal/errors"
	"tabforest/internal/evaluation"
	"tabforest/internal/models"
	"tabforest/internal/preprocessing"
	"tabforest/internal/training"
)

// FormatVersion is written to and required of every model file.
const FormatVersion = "1.0"

type ModelFile struct {
	Version           string                         `json:"version"`
	Timestamp         time.Time                      `json:"timestamp"`
	Classifier        ClassifierJSON                 `json:"classifier"`
	Metrics           *evaluation.Metrics            `json:"metrics"`
	FeatureImportance []evaluation.FeatureImportance `json:"featureImportance"`
	FeatureConfig     data.FeatureConfig             `json:"featureConfig"`
	DatasetSize       int                            `json:"datasetSize"`
}

type ClassifierJSON struct {
	Options OptionsJSON `json:"options"`
	Trees   []TreeJSON  `json:"trees"`
}

type OptionsJSON struct {
	NEstimators    int                                   `json:"nEstimators"`
	MaxDepth       int                                   `json:"maxDepth"`
	MinNumSamples  int                                   `json:"minNumSamples"`
	Seed           int64                                 `json:"seed"`
	EncodingMaps   map[string]preprocessing.LabelEncoder `json:"encodingMaps"`
	TargetEncoding *preprocessing.TargetEncoding         `json:"targetEncoding"`
	FeatureConfig  data.FeatureConfig                    `json:"featureConfig"`
	FeatureStats   map[string]preprocessing.FeatureStats `json:"featureStats"`
}

// NewModelFile snapshots a trained model into its exchange form.
func NewModelFile(m *training.TrainedModel) (*ModelFile, error) {
	prep := m.Preprocessor

	trees := make([]TreeJSON, 0, len(m.Forest.Trees))
	for i, tree := range m.Forest.Trees {
		root, err := encodeNode(tree.Root)
		if err != nil {
			return nil, errors.Serialization(fmt.Sprintf("tree %d", i), err)
		}
		trees = append(trees, TreeJSON{Root: root, Gain: tree.Gain})
	}

	return &ModelFile{
		Version:   FormatVersion,
		Timestamp: m.CreatedAt.UTC(),
		Classifier: ClassifierJSON{
			Options: OptionsJSON{
				NEstimators:    m.Hyperparameters.NEstimators,
				MaxDepth:       m.Hyperparameters.MaxDepth,
				MinNumSamples:  m.Hyperparameters.MinNumSamples,
				Seed:           m.Seed,
				EncodingMaps:   prep.Encodings,
				TargetEncoding: prep.Target,
				FeatureConfig:  prep.Config,
				FeatureStats:   prep.Stats,
			},
			Trees: trees,
		},
		Metrics:           m.Metrics,
		FeatureImportance: m.Importance,
		FeatureConfig:     prep.Config,
		DatasetSize:       m.DatasetSize,
	}, nil
}

// TrainedModel rebuilds the model, rejecting files that could not predict.
func (mf *ModelFile) TrainedModel() (*training.TrainedModel, error) {
	if mf.Version != FormatVersion {
		return nil, errors.Serialization(fmt.Sprintf("unsupported model file version %q", mf.Version), nil)
	}

	opts := mf.Classifier.Options
	cfg := opts.FeatureConfig
	if len(cfg.Features) == 0 {
		cfg = mf.FeatureConfig
	}
	if len(cfg.Features) == 0 {
		return nil, errors.Serialization("model file lists no features", nil)
	}
	if opts.TargetEncoding == nil || opts.TargetEncoding.NumClasses() < 2 {
		return nil, errors.Serialization("model file has no usable target encoding", nil)
	}
	if opts.TargetEncoding.Type == data.Numeric && opts.TargetEncoding.Median == nil {
		return nil, errors.Serialization("numeric target encoding lacks its median", nil)
	}

	prep := &preprocessing.Preprocessor{
		Config:    cfg,
		Encodings: opts.EncodingMaps,
		Stats:     opts.FeatureStats,
		Target:    opts.TargetEncoding,
	}
	if prep.Encodings == nil {
		prep.Encodings = make(map[string]preprocessing.LabelEncoder)
	}
	if prep.Stats == nil {
		prep.Stats = make(map[string]preprocessing.FeatureStats)
	}
	for _, feature := range cfg.Features {
		_, categorical := prep.Encodings[feature]
		_, numeric := prep.Stats[feature]
		if !categorical && !numeric {
			return nil, errors.Serialization(fmt.Sprintf("feature %q has no encoding or statistics", feature), nil)
		}
	}

	if len(mf.Classifier.Trees) == 0 {
		return nil, errors.Serialization("model file contains no trees", nil)
	}
	hp := models.Hyperparameters{
		NEstimators:   opts.NEstimators,
		MaxDepth:      opts.MaxDepth,
		MinNumSamples: opts.MinNumSamples,
	}
	trees := make([]*models.DecisionTree, len(mf.Classifier.Trees))
	for i, t := range mf.Classifier.Trees {
		root, err := decodeNode(t.Root, len(cfg.Features))
		if err != nil {
			return nil, errors.Serialization(fmt.Sprintf("tree %d", i), err)
		}
		trees[i] = &models.DecisionTree{
			Root:            root,
			Gain:            t.Gain,
			MaxDepth:        hp.MaxDepth,
			MinSamplesSplit: hp.MinNumSamples,
		}
	}

	return &training.TrainedModel{
		Hyperparameters: hp,
		Seed:            opts.Seed,
		Preprocessor:    prep,
		Forest:          models.FromTrees(hp, opts.Seed, trees),
		Metrics:         mf.Metrics,
		Importance:      mf.FeatureImportance,
		CreatedAt:       mf.Timestamp,
		DatasetSize:     mf.DatasetSize,
	}, nil
}

func Save(w io.Writer, m *training.TrainedModel) error {
	mf, err := NewModelFile(m)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(mf); err != nil {
		return errors.Serialization("failed to encode model", err)
	}
	return nil
}

func Load(r io.Reader) (*training.TrainedModel, error) {
	var mf ModelFile
	if err := json.NewDecoder(r).Decode(&mf); err != nil {
		return nil, errors.Serialization("failed to decode model file", err)
	}
	return mf.TrainedModel()
}

func SaveFile(filename string, m *training.TrainedModel) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Serialization("failed to create file", err)
	}
	if err := Save(file, m); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return errors.Serialization("failed to write file", err)
	}
	return nil
}

func LoadFile(filename string) (*training.TrainedModel, error) {
	file, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil, errors.WithCode(errors.CodeNotFound, err)
	}
	if err != nil {
		return nil, errors.Serialization("failed to open file", err)
	}
	defer file.Close()

	return Load(file)
}

// WriteSummary prints a short human-readable description of the model.
func WriteSummary(w io.Writer, m *training.TrainedModel) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("Created: %s\n", m.CreatedAt.Format(time.RFC3339))
	printf("Dataset rows: %d\n", m.DatasetSize)
	printf("Features: %v\n", m.Features())
	printf("Target: %s\n", m.Preprocessor.Config.Target)
	printf("%s: %d trees, max depth: %d (deepest grown: %d), min samples: %d, seed: %d\n",
		m.Forest.GetName(), len(m.Forest.Trees), m.Hyperparameters.MaxDepth, m.Forest.DeepestTree(),
		m.Hyperparameters.MinNumSamples, m.Seed)
	if m.Metrics != nil {
		printf("%s", m.Metrics.FormatMetrics())
	}
	for _, fi := range m.Importance {
		printf("  %-20s %6.2f%%\n", fi.Feature, fi.Importance)
	}
	return err
}
