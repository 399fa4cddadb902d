// Package model_selection provides cross-validation splitters, parameter
// grids, cross-validated scoring and exhaustive grid search for estimators
// implementing core/model.SearchableEstimator.
//
//	search := &model_selection.GridSearchCV{
//	    Estimator: xgboost.NewXGBClassifier(),
//	    ParamGrid: map[string][]interface{}{"max_depth": {3, 6}, "learning_rate": {0.1, 0.3}},
//	    Scoring:   "accuracy",
//	    CV:        model_selection.NewStratifiedKFold(5, true, 42),
//	    NJobs:     -1,
//	    Refit:     true,
//	}
//	if err := search.Fit(ctx, X, y); err != nil {
//	    return err
//	}
//	err := search.CVResults.SaveCSV("data/xgb_results.csv")
package model_selection
