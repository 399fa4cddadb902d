package model_selection

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/sentsim/core/model"
	"github.com/YuminosukeSato/sentsim/core/parallel"
	"github.com/YuminosukeSato/sentsim/metrics"
	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

// CVResult stores cross-validation results for one parameter setting.
type CVResult struct {
	TestScores  []float64
	TrainScores []float64 // nil unless train scores were requested
	FitTimes    []float64 // seconds
	ScoreTimes  []float64 // seconds
}

// MeanTestScore returns the mean test score
func (cv *CVResult) MeanTestScore() float64 {
	mean, _ := meanStd(cv.TestScores)
	return mean
}

// StdTestScore returns the population standard deviation of test scores,
// matching scikit-learn's std_test_score.
func (cv *CVResult) StdTestScore() float64 {
	_, std := meanStd(cv.TestScores)
	return std
}

// MeanTrainScore returns the mean train score, or 0 when train scores
// were not collected.
func (cv *CVResult) MeanTrainScore() float64 {
	mean, _ := meanStd(cv.TrainScores)
	return mean
}

func meanStd(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(x, nil)
}

// foldData holds the materialised train/test matrices of one fold. It is
// shared read-only between jobs.
type foldData struct {
	trainX, trainY *mat.Dense
	testX, testY   *mat.Dense
}

func prepareFolds(X, y mat.Matrix, folds []Fold) []foldData {
	data := make([]foldData, len(folds))
	for i, fold := range folds {
		data[i].trainX, data[i].trainY = extractSubset(X, y, fold.TrainIndices)
		data[i].testX, data[i].testY = extractSubset(X, y, fold.TestIndices)
	}
	return data
}

type foldScore struct {
	test, train        float64
	fitTime, scoreTime float64
}

// fitAndScore fits a fresh clone of base with params on one fold.
func fitAndScore(base model.SearchableEstimator, params map[string]interface{}, fold foldData,
	scorer metrics.Scorer, returnTrain bool) (res foldScore, err error) {
	defer errors.Recover(&err, "fitAndScore")

	est := base.Clone()
	if len(params) > 0 {
		if err := est.SetParams(params); err != nil {
			return res, err
		}
	}

	start := time.Now()
	if err := est.Fit(fold.trainX, fold.trainY); err != nil {
		return res, err
	}
	res.fitTime = time.Since(start).Seconds()

	start = time.Now()
	if res.test, err = scorer.Score(est, fold.testX, fold.testY); err != nil {
		return res, err
	}
	if returnTrain {
		if res.train, err = scorer.Score(est, fold.trainX, fold.trainY); err != nil {
			return res, err
		}
	}
	res.scoreTime = time.Since(start).Seconds()
	return res, nil
}

func checkXY(op string, X, y mat.Matrix) error {
	if X == nil || y == nil {
		return errors.NewValueError(op, "X and y must not be nil")
	}
	xRows, _ := X.Dims()
	yRows, yCols := y.Dims()
	if xRows != yRows {
		return errors.NewDimensionError(op, xRows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError(op, 1, yCols, 1)
	}
	return nil
}

// CrossValidate fits a clone of est on every fold of cv and scores it on
// the held-out rows. Folds run concurrently on all CPUs; cancelling ctx
// stops scheduling new folds.
func CrossValidate(ctx context.Context, est model.SearchableEstimator, X, y mat.Matrix,
	cv Splitter, scorer metrics.Scorer, returnTrain bool) (*CVResult, error) {
	if err := checkXY("CrossValidate", X, y); err != nil {
		return nil, err
	}
	folds, err := cv.Split(X, y)
	if err != nil {
		return nil, err
	}
	data := prepareFolds(X, y, folds)

	scores := make([]foldScore, len(folds))
	err = parallel.ForEach(ctx, len(folds), -1, func(_ context.Context, i int) error {
		s, err := fitAndScore(est, nil, data[i], scorer, returnTrain)
		if err != nil {
			return fmt.Errorf("fold %d: %w", i, err)
		}
		scores[i] = s
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "cross-validation failed")
	}

	result := &CVResult{
		TestScores: make([]float64, len(folds)),
		FitTimes:   make([]float64, len(folds)),
		ScoreTimes: make([]float64, len(folds)),
	}
	if returnTrain {
		result.TrainScores = make([]float64, len(folds))
	}
	for i, s := range scores {
		result.TestScores[i] = s.test
		result.FitTimes[i] = s.fitTime
		result.ScoreTimes[i] = s.scoreTime
		if returnTrain {
			result.TrainScores[i] = s.train
		}
	}
	return result, nil
}
