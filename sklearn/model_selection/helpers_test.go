package model_selection

import (
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentsim/core/model"
	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

// stumpClassifier predicts 1 when the first feature exceeds Threshold.
type stumpClassifier struct {
	Threshold float64
	fitted    bool
	fitCalls  *atomic.Int64
}

func newStump(threshold float64) *stumpClassifier {
	return &stumpClassifier{Threshold: threshold, fitCalls: new(atomic.Int64)}
}

func (s *stumpClassifier) Fit(X, y mat.Matrix) error {
	s.fitCalls.Add(1)
	s.fitted = true
	return nil
}

func (s *stumpClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !s.fitted {
		return nil, errors.NewNotFittedError("stumpClassifier", "Predict")
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if X.At(i, 0) > s.Threshold {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

func (s *stumpClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	pred, err := s.Predict(X)
	if err != nil {
		return nil, err
	}
	n, _ := pred.Dims()
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := 0.1 + 0.8*pred.At(i, 0)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

func (s *stumpClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{"threshold": s.Threshold}
}

func (s *stumpClassifier) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		if k != "threshold" {
			return errors.NewValidationError(k, "unknown parameter", v)
		}
		f, ok := v.(float64)
		if !ok {
			return errors.NewValidationError(k, "must be float64", v)
		}
		s.Threshold = f
	}
	return nil
}

func (s *stumpClassifier) Clone() model.SearchableEstimator {
	return &stumpClassifier{Threshold: s.Threshold, fitCalls: s.fitCalls}
}

// lineData returns x = 0..n-1 in one column and y = 1 for x >= n/2.
func lineData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		if i >= n/2 {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}
