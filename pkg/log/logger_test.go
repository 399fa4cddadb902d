package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestSetupJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "info", Writer: &buf}))
	t.Cleanup(func() { _ = Setup(Options{}) })

	logger := GetLoggerWithName("xgboost.classifier").With(ModelNameKey, "XGBClassifier")
	logger.Debug("dropped")
	logger.Info("Training started", OperationKey, OperationFit, SamplesKey, 120)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "Training started", lines[0]["message"])
	assert.Equal(t, "xgboost.classifier", lines[0]["logger"])
	assert.Equal(t, "XGBClassifier", lines[0][ModelNameKey])
	assert.Equal(t, OperationFit, lines[0][OperationKey])
	assert.Equal(t, 120.0, lines[0][SamplesKey])
}

func TestErrorFieldCarriesStacktrace(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Writer: &buf}))
	t.Cleanup(func() { _ = Setup(Options{}) })

	err := errors.NewValueError("Fit", "labels must be 0 or 1")
	GetLogger().Error("fit failed", err, OperationKey, OperationFit)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, err.Error(), lines[0][ErrAttrKey])
	assert.NotEmpty(t, lines[0][StacktraceAttrKey])
	assert.Equal(t, OperationFit, lines[0][OperationKey])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "error", Writer: &buf}))
	t.Cleanup(func() { _ = Setup(Options{}) })

	logger := GetLogger()
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	logger.Warn("hidden")
	SetLevel(LevelDebug)
	assert.True(t, logger.Enabled(context.Background(), LevelDebug))
	logger.Debug("visible")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "visible", lines[0]["message"])
}

func TestSetupRoutesWarnings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Writer: &buf}))
	t.Cleanup(func() {
		errors.SetZerologWarnFunc(nil)
		_ = Setup(Options{})
		errors.SetZerologWarnFunc(nil)
	})

	errors.Warn(errors.NewUndefinedMetricWarning("f1", "no positive samples", 0))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["level"])
	warning, ok := lines[0]["warning"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "UndefinedMetricWarning", warning["type"])
}

func TestSetupRejectsBadOptions(t *testing.T) {
	assert.Error(t, Setup(Options{Level: "verbose"}))
	assert.Error(t, Setup(Options{Format: "xml"}))
}

func TestSetupWithRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentsim.log")
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Writer: &buf, File: path, MaxSizeMB: 1}))
	t.Cleanup(func() {
		_ = Close()
		_ = Setup(Options{})
	})

	GetLogger().Info("to both sinks")
	require.NoError(t, Close())
	assert.FileExists(t, path)
	assert.Contains(t, buf.String(), "to both sinks")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestTestLoggerProvider(t *testing.T) {
	p, logger := NewTestLoggerProvider(LevelInfo)
	restore := SetProvider(p)
	defer restore()

	GetLoggerWithName("model_selection").Info("candidate scored", CandidateKey, 3, ScoreKey, 0.75)
	GetLogger().Debug("filtered")

	assert.True(t, logger.ContainsMessage("candidate scored"))
	assert.False(t, logger.ContainsMessage("filtered"))
	assert.True(t, logger.ContainsField(CandidateKey, 3.0))
	assert.True(t, logger.ContainsField("logger", "model_selection"))

	p.SetLevel(LevelDebug)
	GetLogger().Debug("now visible")
	assert.True(t, logger.ContainsMessage("now visible"))
}

func TestTestLoggerConcurrent(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			child := logger.With(FoldKey, id)
			for j := 0; j < 25; j++ {
				child.Info(fmt.Sprintf("fold %d step %d", id, j))
			}
		}(i)
	}
	wg.Wait()

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 200)
}

func TestTestLoggerLeadingError(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)
	logger.Error("load failed", fmt.Errorf("no such file"), PathKey, "weights.json")
	assert.True(t, logger.ContainsField(ErrAttrKey, "no such file"))
	assert.True(t, logger.ContainsField(PathKey, "weights.json"))
}
