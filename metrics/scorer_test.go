package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

// fixedClassifier returns canned probabilities regardless of X.
type fixedClassifier struct {
	proba []float64
}

func (f *fixedClassifier) Fit(_, _ mat.Matrix) error { return nil }

func (f *fixedClassifier) Predict(_ mat.Matrix) (mat.Matrix, error) {
	out := mat.NewDense(len(f.proba), 1, nil)
	for i, p := range f.proba {
		if p >= 0.5 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

func (f *fixedClassifier) PredictProba(_ mat.Matrix) (mat.Matrix, error) {
	out := mat.NewDense(len(f.proba), 2, nil)
	for i, p := range f.proba {
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

func TestScorers(t *testing.T) {
	clf := &fixedClassifier{proba: []float64{0.1, 0.4, 0.35, 0.8}}
	X := mat.NewDense(4, 1, nil)
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	tests := []struct {
		name string
		want float64
	}{
		{"accuracy", 0.75},
		{"precision", 1.0},
		{"recall", 0.5},
		{"f1", 2.0 / 3.0},
		{"roc_auc", 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := GetScorer(tt.name)
			require.NoError(t, err)
			got, err := s.Score(clf, X, y)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	s, err := GetScorer("neg_log_loss")
	require.NoError(t, err)
	got, err := s.Score(clf, X, y)
	require.NoError(t, err)
	assert.Less(t, got, 0.0, "loss scorers are negated")
}

func TestGetScorerUnknown(t *testing.T) {
	_, err := GetScorer("r2")
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Reason, "accuracy")
	assert.Equal(t, []string{"accuracy", "f1", "neg_log_loss", "precision", "recall", "roc_auc"}, ScorerNames())
}
