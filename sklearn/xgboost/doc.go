// Package xgboost implements a binary gradient-boosted tree classifier with
// XGBoost's hyperparameter names and training rule.
//
// Trees are grown depth-wise with exact greedy split finding on the first
// and second order gradients of the logistic loss. Split gain and leaf
// weights follow XGBoost, including L1/L2 regularisation, gamma pruning,
// min_child_weight, learned default directions for missing (NaN) values,
// and per-tree row and column subsampling.
//
//	clf := xgboost.NewXGBClassifier()
//	if err := clf.SetParams(map[string]interface{}{"max_depth": 3, "n_estimators": 200}); err != nil {
//	    return err
//	}
//	if err := clf.Fit(X, y); err != nil {
//	    return err
//	}
//	proba, err := clf.PredictProba(Xtest) // n×2: [P(y=0), P(y=1)]
//
// A fitted classifier is persisted with Save/LoadXGBClassifier (JSON) or
// with core/model.SaveModel (gob).
package xgboost
