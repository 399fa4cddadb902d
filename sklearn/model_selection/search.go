package model_selection

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentsim/core/model"
	"github.com/YuminosukeSato/sentsim/core/parallel"
	"github.com/YuminosukeSato/sentsim/metrics"
	"github.com/YuminosukeSato/sentsim/pkg/errors"
	"github.com/YuminosukeSato/sentsim/pkg/log"
)

// GridSearchCV evaluates every candidate of ParamGrid with cross-validation
// and keeps the best one.
type GridSearchCV struct {
	Estimator model.SearchableEstimator
	ParamGrid map[string][]interface{}

	// Scoring names a metrics scorer. Empty means "accuracy".
	Scoring string
	// CV defaults to a non-shuffled 5-fold StratifiedKFold.
	CV Splitter
	// NJobs bounds concurrent (candidate, fold) fits; -1 uses every CPU.
	NJobs int
	// Refit fits BestEstimator on all of X, y with BestParams.
	Refit bool
	// Verbose 1 logs the search plan and result, 2 adds one record per
	// candidate, 3 adds one record per fold.
	Verbose          int
	ReturnTrainScore bool

	// Set by Fit.
	CVResults     *CVResults
	BestParams    map[string]interface{}
	BestScore     float64
	BestIndex     int
	BestEstimator model.SearchableEstimator
	RefitTime     time.Duration
}

// Fit runs the search. A candidate whose parameters the estimator rejects,
// or a fit that fails, aborts the whole search with that error. Cancelling
// ctx stops scheduling new fits and returns the context error.
func (gs *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GridSearchCV.Fit")

	if gs.Estimator == nil {
		return errors.NewValueError("GridSearchCV.Fit", "Estimator must not be nil")
	}
	if err := checkXY("GridSearchCV.Fit", X, y); err != nil {
		return err
	}

	scoring := gs.Scoring
	if scoring == "" {
		scoring = "accuracy"
	}
	scorer, err := metrics.GetScorer(scoring)
	if err != nil {
		return err
	}
	cv := gs.CV
	if cv == nil {
		cv = NewStratifiedKFold(5, false, 0)
	}

	candidates := ParameterGrid(gs.ParamGrid)
	if len(candidates) == 0 {
		return errors.NewValidationError("param_grid", "has a parameter with no values", gs.ParamGrid)
	}
	for _, c := range candidates {
		if err := gs.Estimator.Clone().SetParams(c); err != nil {
			return errors.Wrapf(err, "invalid candidate %v", c)
		}
	}

	folds, err := cv.Split(X, y)
	if err != nil {
		return err
	}
	data := prepareFolds(X, y, folds)
	nFolds := len(folds)
	nJobs := len(candidates) * nFolds

	logger := log.GetLoggerWithName("model_selection.grid_search")
	if gs.Verbose > 0 {
		logger.Info(fmt.Sprintf("Fitting %d folds for each of %d candidates, totalling %d fits",
			nFolds, len(candidates), nJobs),
			log.OperationKey, log.OperationSearch,
			log.CandidatesKey, len(candidates),
			log.ScoringKey, scoring)
	}

	start := time.Now()
	scores := make([]foldScore, nJobs)
	err = parallel.ForEach(ctx, nJobs, gs.NJobs, func(_ context.Context, j int) error {
		c, f := j/nFolds, j%nFolds
		s, err := fitAndScore(gs.Estimator, candidates[c], data[f], scorer, gs.ReturnTrainScore)
		if err != nil {
			return errors.Wrapf(err, "candidate %d fold %d", c, f)
		}
		scores[j] = s
		if gs.Verbose > 2 {
			logger.Debug("Fold scored",
				log.CandidateKey, c,
				log.FoldKey, f,
				log.ScoreKey, s.test,
				log.DurationMsKey, int64(s.fitTime*1000))
		}
		return nil
	})
	if err != nil {
		return err
	}

	results := newCVResults(scoring, candidates, scores, nFolds, gs.ReturnTrainScore)
	gs.CVResults = results
	gs.BestIndex = results.BestIndex()
	gs.BestScore = results.MeanTestScore[gs.BestIndex]
	gs.BestParams = results.Params[gs.BestIndex]

	if gs.Verbose > 1 {
		for c := range candidates {
			logger.Info("Candidate scored",
				log.CandidateKey, c,
				log.HyperParamsKey, results.Params[c],
				log.ScoreKey, results.MeanTestScore[c],
				"std_test_score", results.StdTestScore[c],
				"rank_test_score", results.RankTestScore[c])
		}
	}
	if gs.Verbose > 0 {
		logger.Info("Grid search finished",
			log.ScoreKey, gs.BestScore,
			log.HyperParamsKey, gs.BestParams,
			log.DurationMsKey, time.Since(start).Milliseconds())
	}

	gs.BestEstimator = nil
	if gs.Refit {
		best := gs.Estimator.Clone()
		if err := best.SetParams(gs.BestParams); err != nil {
			return err
		}
		refitStart := time.Now()
		if err := best.Fit(X, y); err != nil {
			return errors.Wrap(err, "refit failed")
		}
		gs.RefitTime = time.Since(refitStart)
		gs.BestEstimator = best
	}
	return nil
}

// Predict delegates to BestEstimator.
func (gs *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if gs.BestEstimator == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "Predict")
	}
	return gs.BestEstimator.Predict(X)
}

// Score evaluates BestEstimator on (X, y) with the search's scorer.
func (gs *GridSearchCV) Score(X, y mat.Matrix) (float64, error) {
	if gs.BestEstimator == nil || gs.CVResults == nil {
		return math.NaN(), errors.NewNotFittedError("GridSearchCV", "Score")
	}
	scorer, err := metrics.GetScorer(gs.CVResults.Scoring)
	if err != nil {
		return math.NaN(), err
	}
	return scorer.Score(gs.BestEstimator, X, y)
}
