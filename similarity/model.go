// Package similarity is the sentence-pair similarity model: a gradient
// boosted classifier that is either loaded from saved weights or built from
// a cross-validated grid search, then trained, used for prediction and
// evaluated with accuracy and F1.
//
//	m, err := similarity.FromParams(ctx, X, y, similarity.SearchOptions{
//		NumFolds:  5,
//		ParamGrid: map[string][]interface{}{"max_depth": {3, 6}},
//		Seed:      7,
//	})
//	if err != nil {
//		return err
//	}
//	if err := m.Train(X, y); err != nil {
//		return err
//	}
//	pred, _ := m.Predict(Xtest)
//	acc, f1, _ := m.Evaluate(yTest, pred)
package similarity

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentsim/metrics"
	"github.com/YuminosukeSato/sentsim/pkg/errors"
	"github.com/YuminosukeSato/sentsim/pkg/log"
	"github.com/YuminosukeSato/sentsim/sklearn/model_selection"
	"github.com/YuminosukeSato/sentsim/sklearn/xgboost"
	"github.com/YuminosukeSato/sentsim/tracking"
)

// DefaultResultsPath is where SearchParams writes the results table unless
// SearchOptions.ResultsPath says otherwise.
const DefaultResultsPath = "data/xgb_results.csv"

// Recorder stores a finished search. *tracking.Store implements it.
type Recorder interface {
	RecordSearch(ctx context.Context, summary tracking.SearchSummary, results *model_selection.CVResults) (int64, error)
}

var _ Recorder = (*tracking.Store)(nil)

// SearchOptions configures SearchParams and FromParams.
type SearchOptions struct {
	NumFolds  int // default 5
	ParamGrid map[string][]interface{}
	Scoring   string // default "accuracy"
	Seed      int
	NJobs     int // concurrent fits; 0 or -1 means all CPUs
	Verbose   int

	// Refit fits the best candidate on the full data after the search.
	Refit bool

	ResultsPath string // default DefaultResultsPath
	PlotPath    string // optional PNG/SVG of mean scores per candidate
	WeightsPath string // FromParams saves the chosen classifier here when set
	Recorder    Recorder
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.NumFolds == 0 {
		o.NumFolds = 5
	}
	if o.Scoring == "" {
		o.Scoring = "accuracy"
	}
	if o.NJobs == 0 {
		o.NJobs = -1
	}
	if o.ResultsPath == "" {
		o.ResultsPath = DefaultResultsPath
	}
	return o
}

// Model wraps an XGBClassifier.
type Model struct {
	clf         *xgboost.XGBClassifier
	weightsPath string
	bestParams  map[string]interface{}
	search      *model_selection.GridSearchCV
}

// New returns a model around an unfitted classifier with default
// parameters.
func New() *Model {
	return &Model{clf: xgboost.NewXGBClassifier(), bestParams: map[string]interface{}{}}
}

// FromWeights loads a classifier previously written by Save.
func FromWeights(path string) (*Model, error) {
	clf, err := xgboost.LoadXGBClassifier(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load weights from %s", path)
	}
	log.GetLoggerWithName("similarity").Info("Model loaded",
		log.PathKey, path,
		"fitted", clf.IsFitted())
	return &Model{clf: clf, weightsPath: path, bestParams: map[string]interface{}{}}, nil
}

// FromParams searches opts.ParamGrid and returns a model whose classifier
// uses the best parameters on all CPUs. The classifier is unfitted unless
// opts.Refit is set. It is saved to opts.WeightsPath when that is set.
func FromParams(ctx context.Context, X, y mat.Matrix, opts SearchOptions) (*Model, error) {
	m := New()
	if _, _, err := m.SearchParams(ctx, X, y, opts); err != nil {
		return nil, err
	}

	var clf *xgboost.XGBClassifier
	if best, ok := m.search.BestEstimator.(*xgboost.XGBClassifier); ok && best != nil {
		clf = best
	} else {
		clf = m.search.Estimator.Clone().(*xgboost.XGBClassifier)
		if err := clf.SetParams(m.bestParams); err != nil {
			return nil, err
		}
	}
	clf.NJobs = -1
	m.clf = clf

	if opts.WeightsPath != "" {
		if err := m.Save(opts.WeightsPath); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SearchParams runs a grid search over opts.ParamGrid with shuffled,
// seeded stratified k-fold cross-validation and writes one row per
// candidate (parameters, mean_test_score, mean_train_score) to
// opts.ResultsPath. The best parameters are kept on m.
func (m *Model) SearchParams(ctx context.Context, X, y mat.Matrix, opts SearchOptions) (bestScore float64, bestParams map[string]interface{}, err error) {
	opts = opts.withDefaults()
	logger := log.GetLoggerWithName("similarity")

	base := xgboost.NewXGBClassifier().WithRandomState(opts.Seed)
	if opts.NJobs != 1 {
		// candidates already run concurrently
		base.NJobs = 1
	}
	gs := &model_selection.GridSearchCV{
		Estimator:        base,
		ParamGrid:        opts.ParamGrid,
		Scoring:          opts.Scoring,
		CV:               model_selection.NewStratifiedKFold(opts.NumFolds, true, opts.Seed),
		NJobs:            opts.NJobs,
		Refit:            opts.Refit,
		Verbose:          opts.Verbose,
		ReturnTrainScore: true,
	}

	started := time.Now()
	if err := gs.Fit(ctx, X, y); err != nil {
		return 0, nil, errors.Wrap(err, "parameter search failed")
	}
	duration := time.Since(started)

	if err := gs.CVResults.SaveCSV(opts.ResultsPath); err != nil {
		return 0, nil, err
	}
	if opts.PlotPath != "" {
		if err := gs.CVResults.PlotScores(opts.PlotPath); err != nil {
			return 0, nil, err
		}
	}
	if opts.Recorder != nil {
		rows, cols := X.Dims()
		summary := tracking.SearchSummary{
			Scoring:     opts.Scoring,
			NFolds:      opts.NumFolds,
			Seed:        opts.Seed,
			NSamples:    rows,
			NFeatures:   cols,
			BestIndex:   gs.BestIndex,
			BestScore:   gs.BestScore,
			BestParams:  gs.BestParams,
			ResultsPath: opts.ResultsPath,
			StartedAt:   started,
			Duration:    duration,
		}
		id, err := opts.Recorder.RecordSearch(ctx, summary, gs.CVResults)
		if err != nil {
			return 0, nil, errors.Wrap(err, "failed to record search")
		}
		logger.Debug("Search recorded", "run_id", id)
	}

	logger.Info("Best parameters found",
		log.ScoringKey, opts.Scoring,
		log.RandomSeedKey, opts.Seed,
		log.ScoreKey, gs.BestScore,
		log.HyperParamsKey, gs.BestParams,
		log.PathKey, opts.ResultsPath,
		log.DurationMsKey, duration.Milliseconds())

	m.search = gs
	m.bestParams = copyParams(gs.BestParams)
	return gs.BestScore, copyParams(gs.BestParams), nil
}

// Train fits the classifier on X and y (n×1 labels in {0, 1}).
func (m *Model) Train(X, y mat.Matrix) error {
	if err := m.clf.Fit(X, y); err != nil {
		return errors.Wrap(err, "training failed")
	}
	return nil
}

// Predict returns 0/1 labels for the rows of X.
func (m *Model) Predict(X mat.Matrix) (*mat.VecDense, error) {
	pred, err := m.clf.Predict(X)
	if err != nil {
		return nil, err
	}
	return metrics.VecFromMatrix("Predict", pred)
}

// PredictProba returns the probability that each pair is similar.
func (m *Model) PredictProba(X mat.Matrix) (*mat.VecDense, error) {
	proba, err := m.clf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		out.SetVec(i, proba.At(i, 1))
	}
	return out, nil
}

// Evaluate returns accuracy and F1 (positive label 1) of yPred against
// yTrue.
func (m *Model) Evaluate(yTrue, yPred *mat.VecDense) (accuracy, f1 float64, err error) {
	if accuracy, err = metrics.Accuracy(yTrue, yPred); err != nil {
		return 0, 0, err
	}
	if f1, err = metrics.F1Score(yTrue, yPred); err != nil {
		return 0, 0, err
	}
	return accuracy, f1, nil
}

// Save writes the classifier to path and remembers it as the weights path.
func (m *Model) Save(path string) error {
	if err := m.clf.Save(path); err != nil {
		return errors.Wrapf(err, "failed to save weights to %s", path)
	}
	m.weightsPath = path
	return nil
}

// BestParams returns a copy of the parameters chosen by the last search.
// It is empty for models loaded from weights.
func (m *Model) BestParams() map[string]interface{} {
	return copyParams(m.bestParams)
}

// Classifier returns the underlying classifier.
func (m *Model) Classifier() *xgboost.XGBClassifier {
	return m.clf
}

// WeightsPath returns the path the model was loaded from or last saved to.
func (m *Model) WeightsPath() string {
	return m.weightsPath
}

// CVResults returns the table of the last search, or nil.
func (m *Model) CVResults() *model_selection.CVResults {
	if m.search == nil {
		return nil
	}
	return m.search.CVResults
}

func copyParams(p map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
