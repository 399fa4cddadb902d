package metrics

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentsim/core/model"
	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

// Scorer evaluates a fitted classifier on (X, y). Scores are always
// "greater is better"; loss metrics are negated, as scikit-learn does for
// neg_log_loss.
type Scorer struct {
	Name string

	// UsesProba selects PredictProba (positive-class column) instead of
	// Predict as the input to the metric.
	UsesProba bool

	metric func(yTrue, yPred *mat.VecDense) (float64, error)
	sign   float64
}

// Score predicts X with est and applies the metric against y.
func (s Scorer) Score(est model.ProbabilisticClassifier, X, y mat.Matrix) (float64, error) {
	yTrue, err := VecFromMatrix(s.Name, y)
	if err != nil {
		return 0, err
	}

	var yPred *mat.VecDense
	if s.UsesProba {
		proba, err := est.PredictProba(X)
		if err != nil {
			return 0, err
		}
		rows, cols := proba.Dims()
		if cols < 2 {
			return 0, errors.NewDimensionError(s.Name, 2, cols, 1)
		}
		yPred = mat.NewVecDense(rows, nil)
		for i := 0; i < rows; i++ {
			yPred.SetVec(i, proba.At(i, 1))
		}
	} else {
		pred, err := est.Predict(X)
		if err != nil {
			return 0, err
		}
		if yPred, err = VecFromMatrix(s.Name, pred); err != nil {
			return 0, err
		}
	}

	v, err := s.metric(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return s.sign * v, nil
}

var scorers = map[string]Scorer{
	"accuracy":     {Name: "accuracy", metric: Accuracy, sign: 1},
	"f1":           {Name: "f1", metric: F1Score, sign: 1},
	"precision":    {Name: "precision", metric: Precision, sign: 1},
	"recall":       {Name: "recall", metric: Recall, sign: 1},
	"roc_auc":      {Name: "roc_auc", UsesProba: true, metric: AUC, sign: 1},
	"neg_log_loss": {Name: "neg_log_loss", UsesProba: true, metric: BinaryLogLoss, sign: -1},
}

// GetScorer looks up a scorer by its scikit-learn name.
func GetScorer(name string) (Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return Scorer{}, errors.NewValidationError("scoring", "unknown scorer, expected one of "+joinNames(), name)
	}
	return s, nil
}

// ScorerNames lists the registered scorers in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func joinNames() string {
	return strings.Join(ScorerNames(), ", ")
}
