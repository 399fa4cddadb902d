package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
	"github.com/YuminosukeSato/sentsim/pkg/log"
	"github.com/YuminosukeSato/sentsim/tracking"
)

func writePairs(t *testing.T, path string, n int, labeled bool) {
	t.Helper()
	var b strings.Builder
	if labeled {
		b.WriteString("cosine,len_diff,is_duplicate\n")
	} else {
		b.WriteString("cosine,len_diff\n")
	}
	for i := 0; i < n; i++ {
		jitter := float64(i%5) / 50
		cosine, diff, label := 0.1+jitter, 7+i%3, 0
		if i%2 == 0 {
			cosine, diff, label = 0.85+jitter, i%3, 1
		}
		fmt.Fprintf(&b, "%g,%d", cosine, diff)
		if labeled {
			fmt.Fprintf(&b, ",%d", label)
		}
		b.WriteString("\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
}

type env struct {
	dir    string
	config string
}

func setup(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	writePairs(t, filepath.Join(dir, "train.csv"), 60, true)
	writePairs(t, filepath.Join(dir, "test.csv"), 20, true)
	writePairs(t, filepath.Join(dir, "new.csv"), 6, false)

	conf := fmt.Sprintf(`
data:
  train: %[1]s/train.csv
  label_column: is_duplicate
search:
  num_folds: 3
  n_jobs: 2
  param_grid:
    max_depth: [1, 2]
    n_estimators: [5]
  results_path: %[1]s/out/xgb_results.csv
model:
  weights_path: %[1]s/out/xgb.json
tracking:
  path: %[1]s/out/runs.db
log:
  level: error
  format: json
`, dir)
	path := filepath.Join(dir, "sentsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(conf), 0o600))
	return env{dir: dir, config: path}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), append([]string{"sentsim"}, args...))
	return out.String(), err
}

func TestSearchTrainEvaluatePredict(t *testing.T) {
	e := setup(t)

	out, err := run(t, "--config", e.config, "search", "--seed", "5")
	require.NoError(t, err)
	var sr searchResult
	require.NoError(t, json.Unmarshal([]byte(out), &sr))
	assert.Equal(t, 1.0, sr.BestScore)
	assert.Equal(t, "accuracy", sr.Scoring)
	assert.EqualValues(t, 1, sr.BestParams["max_depth"])
	assert.FileExists(t, filepath.Join(e.dir, "out", "xgb_results.csv"))
	assert.FileExists(t, filepath.Join(e.dir, "out", "xgb.json"))

	out, err = run(t, "--config", e.config, "train")
	require.NoError(t, err)
	var tr evalResult
	require.NoError(t, json.Unmarshal([]byte(out), &tr))
	assert.Equal(t, 12, tr.Samples, "a fifth of 60 rows held out")
	assert.Equal(t, 1.0, tr.Accuracy)
	assert.Equal(t, 1.0, tr.F1)

	out, err = run(t, "--config", e.config, "--format", "yaml", "evaluate", "--data", filepath.Join(e.dir, "test.csv"))
	require.NoError(t, err)
	var er evalResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &er))
	assert.Equal(t, 20, er.Samples)
	assert.Equal(t, 1.0, er.Accuracy)

	scores := filepath.Join(e.dir, "out", "scores.csv")
	_, err = run(t, "--config", e.config, "predict", "--data", filepath.Join(e.dir, "new.csv"), "-o", scores)
	require.NoError(t, err)
	f, err := os.Open(scores)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7)
	assert.Equal(t, []string{"row", "probability", "label"}, records[0])
	for i, rec := range records[1:] {
		want := "0"
		if i%2 == 0 {
			want = "1"
		}
		assert.Equal(t, want, rec[2], "row %d", i)
	}

	store, err := tracking.Open(filepath.Join(e.dir, "out", "runs.db"))
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 5, runs[0].Seed)
	evals, err := store.Evaluations(context.Background(), filepath.Join(e.dir, "out", "xgb.json"))
	require.NoError(t, err)
	assert.Len(t, evals, 2)
}

func TestPredictToStdout(t *testing.T) {
	e := setup(t)
	_, err := run(t, "--config", e.config, "train")
	require.NoError(t, err)

	out, err := run(t, "--config", e.config, "predict", "--data", filepath.Join(e.dir, "new.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 7)
	assert.Equal(t, "row,probability,label", lines[0])
}

func TestCommandErrors(t *testing.T) {
	e := setup(t)

	_, err := run(t, "--config", filepath.Join(e.dir, "missing.yaml"), "train")
	assert.Error(t, err)

	_, err = run(t, "--config", e.config, "--format", "xml", "train")
	assert.Error(t, err)

	_, err = run(t, "--config", e.config, "evaluate")
	assert.ErrorContains(t, err, "no test data")

	_, err = run(t, "--config", e.config, "predict")
	assert.ErrorContains(t, err, "--data is required")

	_, err = run(t, "--config", e.config, "evaluate", "--data", filepath.Join(e.dir, "test.csv"),
		"--weights", filepath.Join(e.dir, "nope.json"))
	assert.Error(t, err)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{errors.NewNotFittedError("XGBClassifier", "Predict"), log.ErrorNotFitted},
		{errors.Wrap(errors.NewDimensionError("Predict", 2, 3, 1), "predict"), log.ErrorDimensionMismatch},
		{errors.NewValidationError("max_depth", "must be >= 0", -1), log.ErrorInvalidInput},
		{errors.NewValueError("predict", "--data is required"), log.ErrorInvalidInput},
		{errors.NewModelError("SetWeights", "bad payload", nil), "MODEL_ERROR"},
		{errors.Wrap(context.Canceled, "search"), "CANCELED"},
		{errors.New("boom"), "UNKNOWN"},
	}
	for _, tt := range tests {
		code, _ := errorCode(tt.err)
		assert.Equal(t, tt.code, code, "%v", tt.err)
	}
}
