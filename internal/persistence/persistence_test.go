package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabforest/internal/errors"
	"tabforest/internal/models"
	"tabforest/internal/prediction"
	"tabforest/internal/testutil"
)

func TestModelRoundTripPredictsIdentically(t *testing.T) {
	model := testutil.TrainSeparable(t)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, SaveFile(path, model))
	loaded, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, model.Hyperparameters, loaded.Hyperparameters)
	assert.Equal(t, model.Seed, loaded.Seed)
	assert.Equal(t, model.Preprocessor.Encodings, loaded.Preprocessor.Encodings)
	assert.Equal(t, model.Preprocessor.Target.Classes, loaded.Preprocessor.Target.Classes)
	assert.Equal(t, model.Importance, loaded.Importance)
	assert.True(t, model.CreatedAt.Equal(loaded.CreatedAt))
	require.Len(t, loaded.Forest.Trees, len(model.Forest.Trees))

	inputs := []map[string]string{
		{"x1": "-50", "x2": "0", "color": "red"},
		{"x1": "55", "x2": "3", "color": "blue"},
		{"x1": "104", "x2": "2", "color": "green"},
	}
	before, after := prediction.New(model, nil), prediction.New(loaded, nil)
	for _, in := range inputs {
		want, err := before.PredictStrings(in)
		require.NoError(t, err)
		got, err := after.PredictStrings(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestModelFileShape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, testutil.TrainSeparable(t)))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "1.0", doc["version"])
	_, err := time.Parse(time.RFC3339, doc["timestamp"].(string))
	assert.NoError(t, err)

	classifier := doc["classifier"].(map[string]any)
	options := classifier["options"].(map[string]any)
	for _, key := range []string{"nEstimators", "maxDepth", "minNumSamples", "seed", "encodingMaps", "targetEncoding", "featureConfig", "featureStats"} {
		assert.Contains(t, options, key)
	}

	trees := classifier["trees"].([]any)
	require.NotEmpty(t, trees)
	tree := trees[0].(map[string]any)
	assert.Contains(t, tree, "gain")

	root := tree["root"].(map[string]any)
	if _, leaf := root["category"]; !leaf {
		for _, key := range []string{"column", "value", "left", "right"} {
			assert.Contains(t, root, key)
		}
	}

	for _, key := range []string{"metrics", "featureImportance", "featureConfig"} {
		assert.Contains(t, doc, key)
	}
}

func TestNodeCodecRoundTrip(t *testing.T) {
	root := &models.Split{
		Feature:   1,
		Threshold: 0.25,
		Left:      &models.Leaf{Class: 0},
		Right: &models.Split{
			Feature:   0,
			Threshold: -1,
			Left:      &models.Leaf{Class: 1},
			Right:     &models.Leaf{Class: 0},
		},
	}

	encoded, err := encodeNode(root)
	require.NoError(t, err)
	decoded, err := decodeNode(encoded, 2)
	require.NoError(t, err)
	assert.Equal(t, models.Node(root), decoded)

	_, err = decodeNode(encoded, 1)
	assert.Error(t, err)
}

func TestLoadFileMissingIsNotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestWriteSummaryReportsGrownDepth(t *testing.T) {
	model := testutil.TrainSeparable(t)
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, model))

	out := buf.String()
	assert.Contains(t, out, "RandomForest: ")
	assert.Contains(t, out, fmt.Sprintf("deepest grown: %d", model.Forest.DeepestTree()))
	assert.Contains(t, out, "Target: label")
}

func TestLoadRejectsCorruptFiles(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, testutil.TrainSeparable(t)))
	valid := buf.String()

	cases := map[string]string{
		"not json":      "{not json",
		"wrong version": strings.Replace(valid, `"version": "1.0"`, `"version": "2.0"`, 1),
		"no trees":      `{"version":"1.0","classifier":{"options":{"featureConfig":{"features":["x"],"target":"y"},"featureStats":{"x":{"mean":0,"std":1}},"targetEncoding":{"type":"categorical","classes":{"a":0,"b":1}}},"trees":[]}}`,
		"bad column":    `{"version":"1.0","classifier":{"options":{"featureConfig":{"features":["x"],"target":"y"},"featureStats":{"x":{"mean":0,"std":1}},"targetEncoding":{"type":"categorical","classes":{"a":0,"b":1}}},"trees":[{"root":{"column":4,"value":1,"left":{"category":0},"right":{"category":1}},"gain":0}]}}`,
		"no encoding":   `{"version":"1.0","classifier":{"options":{"featureConfig":{"features":["x"],"target":"y"},"targetEncoding":{"type":"categorical","classes":{"a":0,"b":1}}},"trees":[{"root":{"category":0},"gain":0}]}}`,
		"no target":     `{"version":"1.0","classifier":{"options":{"featureConfig":{"features":["x"],"target":"y"},"featureStats":{"x":{"mean":0,"std":1}}},"trees":[{"root":{"category":0},"gain":0}]}}`,
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeSerialization), "got %v", err)
		})
	}
}

func TestLoadMinimalHandWrittenModel(t *testing.T) {
	input := `{"version":"1.0","timestamp":"2024-01-02T03:04:05Z","classifier":{"options":{"nEstimators":1,"maxDepth":1,"minNumSamples":2,"seed":42,
		"featureConfig":{"features":["x"],"target":"y"},"featureStats":{"x":{"mean":0,"std":1}},
		"targetEncoding":{"type":"categorical","classes":{"low":0,"high":1}}},
		"trees":[{"root":{"column":0,"value":0.5,"left":{"category":0},"right":{"category":1}},"gain":0.5}]}}`

	model, err := Load(strings.NewReader(input))
	require.NoError(t, err)

	p := prediction.New(model, nil)
	res, err := p.PredictStrings(map[string]string{"x": "0.2"})
	require.NoError(t, err)
	assert.Equal(t, "low", res.Label)
	res, err = p.PredictStrings(map[string]string{"x": "0.5"})
	require.NoError(t, err)
	assert.Equal(t, "high", res.Label)
}

func TestWritePredictions(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	records := []prediction.Record{
		{Inputs: map[string]string{"x1": "3", "color": "red"}, Label: "A", Confidence: 0.875, Timestamp: ts},
		{Inputs: map[string]string{"x1": "9", "color": "blue"}, Label: "B", Confidence: 2.0 / 3.0, Timestamp: ts},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePredictions(&buf, []string{"x1", "color"}, records))

	want := "Timestamp,x1,color,Prediction,Confidence %\n" +
		"2024-05-06T07:08:09Z,3,red,A,87.5\n" +
		"2024-05-06T07:08:09Z,9,blue,B,66.7\n"
	assert.Equal(t, want, buf.String())
}
