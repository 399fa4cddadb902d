package xgboost

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

// Params are the XGBClassifier hyperparameters. JSON names match the
// Python package.
type Params struct {
	NEstimators     int     `json:"n_estimators"`
	MaxDepth        int     `json:"max_depth"` // 0 means unlimited
	LearningRate    float64 `json:"learning_rate"`
	MinChildWeight  float64 `json:"min_child_weight"`
	Gamma           float64 `json:"gamma"`
	Subsample       float64 `json:"subsample"`
	ColsampleBytree float64 `json:"colsample_bytree"`
	RegLambda       float64 `json:"reg_lambda"`
	RegAlpha        float64 `json:"reg_alpha"`
	ScalePosWeight  float64 `json:"scale_pos_weight"`
	BaseScore       float64 `json:"base_score"`
	RandomState     int     `json:"random_state"`
	NJobs           int     `json:"n_jobs"` // -1 uses every CPU

	// EarlyStoppingRounds stops training when the eval-set log loss has not
	// improved for this many rounds. Only used by FitWithEvalSet.
	EarlyStoppingRounds int `json:"early_stopping_rounds"`

	// Verbosity > 0 logs training progress.
	Verbosity int `json:"verbosity"`
}

// DefaultParams returns XGBoost's defaults.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		MaxDepth:        6,
		LearningRate:    0.3,
		MinChildWeight:  1,
		Gamma:           0,
		Subsample:       1,
		ColsampleBytree: 1,
		RegLambda:       1,
		RegAlpha:        0,
		ScalePosWeight:  1,
		BaseScore:       0.5,
		RandomState:     0,
		NJobs:           -1,
	}
}

// aliases maps alternative XGBoost parameter names to the canonical ones.
var aliases = map[string]string{
	"eta":             "learning_rate",
	"num_boost_round": "n_estimators",
	"min_split_loss":  "gamma",
	"lambda":          "reg_lambda",
	"alpha":           "reg_alpha",
	"seed":            "random_state",
	"nthread":         "n_jobs",
	"n_thread":        "n_jobs",
}

// CanonicalName resolves aliases such as "eta" or "nthread".
func CanonicalName(name string) string {
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// Map returns the parameters keyed by their canonical names.
func (p Params) Map() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":          p.NEstimators,
		"max_depth":             p.MaxDepth,
		"learning_rate":         p.LearningRate,
		"min_child_weight":      p.MinChildWeight,
		"gamma":                 p.Gamma,
		"subsample":             p.Subsample,
		"colsample_bytree":      p.ColsampleBytree,
		"reg_lambda":            p.RegLambda,
		"reg_alpha":             p.RegAlpha,
		"scale_pos_weight":      p.ScalePosWeight,
		"base_score":            p.BaseScore,
		"random_state":          p.RandomState,
		"n_jobs":                p.NJobs,
		"early_stopping_rounds": p.EarlyStoppingRounds,
		"verbosity":             p.Verbosity,
	}
}

// Set assigns one parameter by name. Numeric values may be any Go integer
// or float type; integer parameters reject non-integral floats.
func (p *Params) Set(name string, value interface{}) error {
	name = CanonicalName(name)
	var err error
	switch name {
	case "n_estimators":
		p.NEstimators, err = toInt(name, value)
	case "max_depth":
		p.MaxDepth, err = toInt(name, value)
	case "learning_rate":
		p.LearningRate, err = toFloat(name, value)
	case "min_child_weight":
		p.MinChildWeight, err = toFloat(name, value)
	case "gamma":
		p.Gamma, err = toFloat(name, value)
	case "subsample":
		p.Subsample, err = toFloat(name, value)
	case "colsample_bytree":
		p.ColsampleBytree, err = toFloat(name, value)
	case "reg_lambda":
		p.RegLambda, err = toFloat(name, value)
	case "reg_alpha":
		p.RegAlpha, err = toFloat(name, value)
	case "scale_pos_weight":
		p.ScalePosWeight, err = toFloat(name, value)
	case "base_score":
		p.BaseScore, err = toFloat(name, value)
	case "random_state":
		p.RandomState, err = toInt(name, value)
	case "n_jobs":
		p.NJobs, err = toInt(name, value)
	case "early_stopping_rounds":
		p.EarlyStoppingRounds, err = toInt(name, value)
	case "verbosity":
		p.Verbosity, err = toInt(name, value)
	default:
		return errors.NewValidationError(name, "unknown parameter", value)
	}
	return err
}

// SetAll applies params in sorted key order and validates the result. On
// error p is left unchanged.
func (p *Params) SetAll(params map[string]interface{}) error {
	next := *p
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := next.Set(k, params[k]); err != nil {
			return err
		}
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*p = next
	return nil
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be at least 1", p.NEstimators)
	case p.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be non-negative", p.MaxDepth)
	case !(p.LearningRate > 0):
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.MinChildWeight < 0:
		return errors.NewValidationError("min_child_weight", "must be non-negative", p.MinChildWeight)
	case p.Gamma < 0:
		return errors.NewValidationError("gamma", "must be non-negative", p.Gamma)
	case !(p.Subsample > 0 && p.Subsample <= 1):
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.Subsample)
	case !(p.ColsampleBytree > 0 && p.ColsampleBytree <= 1):
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", p.ColsampleBytree)
	case p.RegLambda < 0:
		return errors.NewValidationError("reg_lambda", "must be non-negative", p.RegLambda)
	case p.RegAlpha < 0:
		return errors.NewValidationError("reg_alpha", "must be non-negative", p.RegAlpha)
	case !(p.ScalePosWeight > 0):
		return errors.NewValidationError("scale_pos_weight", "must be positive", p.ScalePosWeight)
	case !(p.BaseScore > 0 && p.BaseScore < 1):
		return errors.NewValidationError("base_score", "must be in (0, 1)", p.BaseScore)
	case p.EarlyStoppingRounds < 0:
		return errors.NewValidationError("early_stopping_rounds", "must be non-negative", p.EarlyStoppingRounds)
	}
	return nil
}

func toFloat(name string, value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, errors.NewValidationError(name, fmt.Sprintf("expected a number, got %T", value), value)
	}
}

func toInt(name string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float32, float64:
		f, _ := toFloat(name, v)
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, errors.NewValidationError(name, "expected an integer", value)
		}
		return int(f), nil
	default:
		return 0, errors.NewValidationError(name, fmt.Sprintf("expected an integer, got %T", value), value)
	}
}
