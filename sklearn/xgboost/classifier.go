package xgboost

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentsim/core/model"
	"github.com/YuminosukeSato/sentsim/core/parallel"
	"github.com/YuminosukeSato/sentsim/metrics"
	"github.com/YuminosukeSato/sentsim/pkg/errors"
	"github.com/YuminosukeSato/sentsim/pkg/log"
)

const modelName = "XGBClassifier"

// XGBClassifier is a binary gradient-boosted tree classifier with a
// scikit-learn style API. Labels must be 0 or 1.
type XGBClassifier struct {
	Params

	state   *model.StateManager
	booster *Booster
}

var _ model.SearchableEstimator = (*XGBClassifier)(nil)

// NewXGBClassifier creates a classifier with XGBoost's default parameters
func NewXGBClassifier() *XGBClassifier {
	return &XGBClassifier{
		Params: DefaultParams(),
		state:  model.NewStateManager(),
	}
}

// WithNEstimators sets the number of boosting rounds
func (c *XGBClassifier) WithNEstimators(n int) *XGBClassifier {
	c.NEstimators = n
	return c
}

// WithMaxDepth sets the maximum tree depth
func (c *XGBClassifier) WithMaxDepth(d int) *XGBClassifier {
	c.MaxDepth = d
	return c
}

// WithLearningRate sets eta
func (c *XGBClassifier) WithLearningRate(lr float64) *XGBClassifier {
	c.LearningRate = lr
	return c
}

// WithRandomState sets the random seed
func (c *XGBClassifier) WithRandomState(seed int) *XGBClassifier {
	c.RandomState = seed
	return c
}

// WithNJobs sets the number of goroutines used for split search
func (c *XGBClassifier) WithNJobs(n int) *XGBClassifier {
	c.NJobs = n
	return c
}

// WithEarlyStopping sets early_stopping_rounds for FitWithEvalSet
func (c *XGBClassifier) WithEarlyStopping(rounds int) *XGBClassifier {
	c.EarlyStoppingRounds = rounds
	return c
}

func (c *XGBClassifier) stateManager() *model.StateManager {
	if c.state == nil {
		c.state = model.NewStateManager()
	}
	return c.state
}

// IsFitted reports whether the classifier holds a trained booster.
func (c *XGBClassifier) IsFitted() bool {
	return c.stateManager().IsFitted()
}

// Booster returns the fitted ensemble, or nil before Fit.
func (c *XGBClassifier) Booster() *Booster {
	return c.booster
}

// Fit trains the classifier on X (n×d) and y (n×1 of 0/1).
func (c *XGBClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "XGBClassifier.Fit")
	return c.fit(X, y, nil, nil)
}

// FitWithEvalSet trains while tracking log loss on (evalX, evalY). With
// EarlyStoppingRounds > 0 training stops once the eval loss has not
// improved for that many rounds and the ensemble is cut back to the best
// round.
func (c *XGBClassifier) FitWithEvalSet(X, y, evalX, evalY mat.Matrix) (err error) {
	defer errors.Recover(&err, "XGBClassifier.FitWithEvalSet")
	if evalX == nil || evalY == nil {
		return errors.NewValueError("FitWithEvalSet", "eval set must not be nil")
	}
	return c.fit(X, y, evalX, evalY)
}

func (c *XGBClassifier) fit(X, y, evalX, evalY mat.Matrix) error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	rows, labels, err := trainingData("Fit", X, y)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("xgboost.classifier")
	if c.Verbosity > 0 {
		logger.Info("Training XGBClassifier",
			log.ModelNameKey, modelName,
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.SamplesKey, len(rows),
			log.FeaturesKey, len(rows[0]),
			log.HyperParamsKey, c.GetParams())
	}

	tr := newTrainer(c.Params, rows, labels)
	if evalX != nil {
		evalRows, evalLabels, err := trainingData("FitWithEvalSet", evalX, evalY)
		if err != nil {
			return err
		}
		if len(evalRows[0]) != len(rows[0]) {
			return errors.NewDimensionError("FitWithEvalSet", len(rows[0]), len(evalRows[0]), 1)
		}
		tr = tr.withEvalSet(evalRows, evalLabels)
	}

	c.booster = tr.train()
	c.stateManager().SetFitted(len(rows[0]), len(rows))
	return nil
}

// trainingData copies X into rows and checks y is n×1 binary.
func trainingData(op string, X, y mat.Matrix) ([][]float64, []float64, error) {
	if X == nil || y == nil {
		return nil, nil, errors.NewValueError(op, "X and y must not be nil")
	}
	n, d := X.Dims()
	yRows, yCols := y.Dims()
	if n == 0 || d == 0 {
		return nil, nil, errors.Wrapf(errors.ErrEmptyData, "%s: X is %dx%d", op, n, d)
	}
	if n != yRows {
		return nil, nil, errors.NewDimensionError(op, n, yRows, 0)
	}
	if yCols != 1 {
		return nil, nil, errors.NewDimensionError(op, 1, yCols, 1)
	}

	labels := make([]float64, n)
	for i := range labels {
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return nil, nil, errors.NewValueError(op,
				fmt.Sprintf("labels must be 0 or 1, found %v at row %d", v, i))
		}
		labels[i] = v
	}
	rows := denseRows(X)
	for i, row := range rows {
		for j, v := range row {
			if math.IsInf(v, 0) {
				return nil, nil, errors.NewValueError(op,
					fmt.Sprintf("X must be finite or NaN, found %v at row %d column %d", v, i, j))
			}
		}
	}
	return rows, labels, nil
}

func denseRows(X mat.Matrix) [][]float64 {
	n, d := X.Dims()
	rows := make([][]float64, n)
	if dense, ok := X.(mat.RawMatrixer); ok {
		raw := dense.RawMatrix()
		for i := range rows {
			rows[i] = raw.Data[i*raw.Stride : i*raw.Stride+d]
		}
		return rows
	}
	for i := range rows {
		row := make([]float64, d)
		for j := range row {
			row[j] = X.At(i, j)
		}
		rows[i] = row
	}
	return rows
}

func (c *XGBClassifier) checkPredict(op string, X mat.Matrix) error {
	if err := c.stateManager().RequireFitted(modelName, op); err != nil {
		return err
	}
	if X == nil {
		return errors.NewValueError(op, "X must not be nil")
	}
	return c.stateManager().CheckFeatures(op, X)
}

// predictParallelRows is the batch size above which rows are scored
// concurrently.
const predictParallelRows = 1000

func (c *XGBClassifier) margins(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	parallel.ParallelizeWithThreshold(len(rows), predictParallelRows, parallel.Workers(c.NJobs), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = c.booster.Margin(rows[i])
		}
	})
	return out
}

// PredictMargin returns the raw log-odds score of each row as n×1.
func (c *XGBClassifier) PredictMargin(X mat.Matrix) (mat.Matrix, error) {
	if err := c.checkPredict("PredictMargin", X); err != nil {
		return nil, err
	}
	rows := denseRows(X)
	if len(rows) == 0 {
		return &mat.Dense{}, nil
	}
	return mat.NewDense(len(rows), 1, c.margins(rows)), nil
}

// PredictProba returns n×2 probabilities [P(y=0), P(y=1)].
func (c *XGBClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := c.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}
	rows := denseRows(X)
	if len(rows) == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(len(rows), 2, nil)
	for i, m := range c.margins(rows) {
		p := sigmoid(m)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict returns n×1 labels: 1 where P(y=1) > 0.5, else 0.
func (c *XGBClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := c.checkPredict("Predict", X); err != nil {
		return nil, err
	}
	rows := denseRows(X)
	if len(rows) == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(len(rows), 1, nil)
	for i, m := range c.margins(rows) {
		if sigmoid(m) > 0.5 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// Score returns the mean accuracy on (X, y).
func (c *XGBClassifier) Score(X, y mat.Matrix) (float64, error) {
	if err := c.stateManager().RequireFitted(modelName, "Score"); err != nil {
		return 0, err
	}
	pred, err := c.Predict(X)
	if err != nil {
		return 0, err
	}
	yVec, err := metrics.VecFromMatrix("Score", y)
	if err != nil {
		return 0, err
	}
	predVec, err := metrics.VecFromMatrix("Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(yVec, predVec)
}

// GetParams returns the hyperparameters keyed by XGBoost names.
func (c *XGBClassifier) GetParams() map[string]interface{} {
	return c.Params.Map()
}

// SetParams updates hyperparameters by name. Aliases such as "eta" and
// "nthread" are accepted. Unknown names and out-of-range values return a
// ValidationError and leave the classifier unchanged. A fitted classifier
// keeps its booster until the next Fit.
func (c *XGBClassifier) SetParams(params map[string]interface{}) error {
	return c.Params.SetAll(params)
}

// Clone returns an unfitted classifier with the same hyperparameters.
func (c *XGBClassifier) Clone() model.SearchableEstimator {
	return &XGBClassifier{
		Params: c.Params,
		state:  model.NewStateManager(),
	}
}

// FeatureImportances returns per-feature importances normalised to sum to
// one. importanceType is "gain" (mean split gain, the default for ""),
// "total_gain" or "weight" (number of splits).
func (c *XGBClassifier) FeatureImportances(importanceType string) ([]float64, error) {
	if err := c.stateManager().RequireFitted(modelName, "FeatureImportances"); err != nil {
		return nil, err
	}
	nFeatures := c.booster.NFeatures
	totalGain := make([]float64, nFeatures)
	splits := make([]float64, nFeatures)
	for i := range c.booster.Trees {
		for _, node := range c.booster.Trees[i].Nodes {
			if node.IsLeaf() {
				continue
			}
			totalGain[node.SplitFeature] += node.Gain
			splits[node.SplitFeature]++
		}
	}

	var importance []float64
	switch importanceType {
	case "", "gain":
		importance = make([]float64, nFeatures)
		for j := range importance {
			if splits[j] > 0 {
				importance[j] = totalGain[j] / splits[j]
			}
		}
	case "total_gain":
		importance = totalGain
	case "weight":
		importance = splits
	default:
		return nil, errors.NewValidationError("importance_type", "must be gain, total_gain or weight", importanceType)
	}

	var sum float64
	for _, v := range importance {
		sum += v
	}
	if sum > 0 && !math.IsInf(sum, 0) {
		for j := range importance {
			importance[j] /= sum
		}
	}
	return importance, nil
}

// TopFeatures returns feature indices ordered by decreasing gain importance.
func (c *XGBClassifier) TopFeatures(k int) ([]int, error) {
	importance, err := c.FeatureImportances("gain")
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(importance))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return importance[idx[a]] > importance[idx[b]]
	})
	if k > 0 && k < len(idx) {
		idx = idx[:k]
	}
	return idx, nil
}
