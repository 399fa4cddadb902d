package xgboost

import (
	"encoding/json"

	"github.com/YuminosukeSato/sentsim/core/model"
	"github.com/YuminosukeSato/sentsim/pkg/errors"
	"github.com/YuminosukeSato/sentsim/pkg/log"
)

const formatVersion = "1"

// Weights returns the persisted form of the classifier.
func (c *XGBClassifier) Weights() (*model.ModelWeights, error) {
	mw := &model.ModelWeights{
		ModelType:       modelName,
		Version:         formatVersion,
		Hyperparameters: c.GetParams(),
		IsFitted:        c.IsFitted(),
	}
	if !mw.IsFitted {
		return mw, nil
	}
	payload, err := json.Marshal(c.booster)
	if err != nil {
		return nil, errors.NewModelError("Weights", "failed to encode booster", err)
	}
	mw.Payload = payload
	mw.NFeatures = c.booster.NFeatures
	mw.Metadata = map[string]interface{}{
		"n_trees":        len(c.booster.Trees),
		"best_iteration": c.booster.BestIteration,
	}
	return mw, nil
}

// SetWeights restores hyperparameters and, when present, the fitted
// booster. The classifier is unchanged on error.
func (c *XGBClassifier) SetWeights(mw *model.ModelWeights) error {
	if err := mw.Validate(); err != nil {
		return err
	}
	if mw.ModelType != modelName {
		return errors.NewModelError("SetWeights", "unexpected model type "+mw.ModelType, nil)
	}
	if mw.Version != formatVersion {
		return errors.NewModelError("SetWeights", "unsupported format version "+mw.Version, nil)
	}

	params := DefaultParams()
	if err := params.SetAll(mw.Hyperparameters); err != nil {
		return errors.Wrap(err, "invalid hyperparameters in weights")
	}

	var booster *Booster
	if mw.IsFitted {
		booster = &Booster{}
		if err := json.Unmarshal(mw.Payload, booster); err != nil {
			return errors.NewModelError("SetWeights", "invalid booster payload", err)
		}
		if booster.NFeatures != mw.NFeatures {
			return errors.NewModelError("SetWeights", "n_features disagrees with booster", nil)
		}
		if err := booster.validate(); err != nil {
			return errors.NewModelError("SetWeights", "invalid booster", err)
		}
	}

	c.Params = params
	c.booster = booster
	c.state = model.NewStateManager()
	if booster != nil {
		c.state.SetFitted(booster.NFeatures, 0)
	}
	return nil
}

// Save writes the classifier to path as JSON.
func (c *XGBClassifier) Save(path string) error {
	mw, err := c.Weights()
	if err != nil {
		return err
	}
	if err := model.SaveWeights(mw, path); err != nil {
		return err
	}
	log.GetLoggerWithName("xgboost.classifier").Debug("Model saved",
		log.PathKey, path,
		log.OperationKey, log.OperationSave)
	return nil
}

// LoadXGBClassifier reads a classifier written by Save.
func LoadXGBClassifier(path string) (*XGBClassifier, error) {
	mw, err := model.LoadWeights(path)
	if err != nil {
		return nil, err
	}
	c := NewXGBClassifier()
	if err := c.SetWeights(mw); err != nil {
		return nil, errors.Wrapf(err, "weights file %s", path)
	}
	log.GetLoggerWithName("xgboost.classifier").Debug("Model loaded",
		log.PathKey, path,
		log.OperationKey, log.OperationLoad)
	return c, nil
}

// MarshalJSON encodes the classifier as its ModelWeights document.
func (c *XGBClassifier) MarshalJSON() ([]byte, error) {
	mw, err := c.Weights()
	if err != nil {
		return nil, err
	}
	return json.Marshal(mw)
}

// UnmarshalJSON decodes a ModelWeights document.
func (c *XGBClassifier) UnmarshalJSON(data []byte) error {
	mw := &model.ModelWeights{}
	if err := mw.FromJSON(data); err != nil {
		return err
	}
	return c.SetWeights(mw)
}

// GobEncode lets core/model.SaveModel persist the unexported booster.
func (c *XGBClassifier) GobEncode() ([]byte, error) {
	return c.MarshalJSON()
}

// GobDecode is the inverse of GobEncode.
func (c *XGBClassifier) GobDecode(data []byte) error {
	return c.UnmarshalJSON(data)
}
