package model

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

type stump struct {
	Feature   int
	Threshold float64
	Values    []float64
}

func TestSaveLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stump.gob")
	in := stump{Feature: 2, Threshold: 0.5, Values: []float64{-1, 1}}

	require.NoError(t, SaveModel(&in, path))

	var out stump
	require.NoError(t, LoadModel(&out, path))
	assert.Equal(t, in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestLoadModelErrors(t *testing.T) {
	var out stump
	err := LoadModel(&out, filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)

	err = LoadModelFromReader(&out, bytes.NewBufferString("not gob"))
	var me *errors.ModelError
	assert.True(t, errors.As(err, &me))
}

func TestModelWeightsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	payload, err := json.Marshal(map[string]int{"trees": 3})
	require.NoError(t, err)

	mw := &ModelWeights{
		ModelType:       "XGBClassifier",
		Version:         "1",
		Hyperparameters: map[string]interface{}{"max_depth": 3.0},
		IsFitted:        true,
		NFeatures:       4,
		Payload:         payload,
	}
	require.NoError(t, SaveWeights(mw, path))

	loaded, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, mw.ModelType, loaded.ModelType)
	assert.Equal(t, mw.Hyperparameters, loaded.Hyperparameters)
	assert.JSONEq(t, string(payload), string(loaded.Payload))
}

func TestModelWeightsValidate(t *testing.T) {
	tests := []struct {
		name string
		mw   ModelWeights
		ok   bool
	}{
		{"unfitted without payload", ModelWeights{ModelType: "XGBClassifier", Version: "1"}, true},
		{"missing type", ModelWeights{Version: "1"}, false},
		{"missing version", ModelWeights{ModelType: "XGBClassifier"}, false},
		{"fitted without payload", ModelWeights{ModelType: "XGBClassifier", Version: "1", IsFitted: true, NFeatures: 2}, false},
		{"fitted without features", ModelWeights{ModelType: "XGBClassifier", Version: "1", IsFitted: true, Payload: json.RawMessage(`{}`)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mw.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("XGBClassifier", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Predict", nf.Method)

	s.SetFitted(3, 10)
	assert.NoError(t, s.RequireFitted("XGBClassifier", "Predict"))
	nFeatures, nSamples := s.GetDimensions()
	assert.Equal(t, 3, nFeatures)
	assert.Equal(t, 10, nSamples)

	assert.NoError(t, s.CheckFeatures("Predict", mat.NewDense(1, 3, nil)))
	var de *errors.DimensionError
	assert.True(t, errors.As(s.CheckFeatures("Predict", mat.NewDense(1, 2, nil)), &de))

	s.Reset()
	assert.False(t, s.IsFitted())
}
