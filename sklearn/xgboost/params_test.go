package xgboost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.Equal(t, 100, p.NEstimators)
	assert.Equal(t, 6, p.MaxDepth)
	assert.Equal(t, 0.3, p.LearningRate)
	assert.Equal(t, 0.5, p.BaseScore)
	assert.Equal(t, -1, p.NJobs)
}

func TestParamsSetAliases(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.SetAll(map[string]interface{}{
		"eta":     0.05,
		"nthread": -1,
		"seed":    int64(42),
		"lambda":  2,
		"alpha":   float32(0.5),
	}))
	assert.Equal(t, 0.05, p.LearningRate)
	assert.Equal(t, -1, p.NJobs)
	assert.Equal(t, 42, p.RandomState)
	assert.Equal(t, 2.0, p.RegLambda)
	assert.Equal(t, 0.5, p.RegAlpha)
}

func TestParamsIntegralFloats(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.SetAll(map[string]interface{}{"max_depth": 4.0}))
	assert.Equal(t, 4, p.MaxDepth)

	err := p.SetAll(map[string]interface{}{"max_depth": 4.5})
	require.Error(t, err)
	assert.Equal(t, 4, p.MaxDepth)
}

func TestParamsSetAllIsAtomic(t *testing.T) {
	p := DefaultParams()
	err := p.SetAll(map[string]interface{}{
		"max_depth": 3,
		"bogus":     1,
	})
	require.Error(t, err)

	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "bogus", verr.ParamName)
	assert.Equal(t, 6, p.MaxDepth)
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name  string
		param string
		value interface{}
	}{
		{"zero estimators", "n_estimators", 0},
		{"negative depth", "max_depth", -1},
		{"zero learning rate", "learning_rate", 0},
		{"subsample above one", "subsample", 1.5},
		{"colsample zero", "colsample_bytree", 0},
		{"base score one", "base_score", 1},
		{"negative gamma", "gamma", -0.1},
		{"wrong type", "max_depth", "deep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			err := p.SetAll(map[string]interface{}{tt.param: tt.value})
			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}
}

func TestParamsMapRoundTrip(t *testing.T) {
	p := DefaultParams()
	p.MaxDepth = 9
	p.Subsample = 0.7

	q := Params{}
	require.NoError(t, q.SetAll(p.Map()))
	assert.Equal(t, p, q)
}
