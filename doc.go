// Package sentsim trains and serves a gradient boosted classifier that scores
// whether two sentences are paraphrases of each other.
//
// The feature rows (one per sentence pair) are produced upstream; sentsim
// takes them as a numeric table with a 0/1 label column and offers a small
// facade for the usual lifecycle: search hyperparameters, train, predict,
// evaluate and persist.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/sentsim/dataset"
//	    "github.com/YuminosukeSato/sentsim/similarity"
//	)
//
//	func main() {
//	    d, err := dataset.LoadCSV("data/train.csv", dataset.LoadOptions{LabelColumn: "is_duplicate"})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    train, test, err := dataset.TrainTestSplit(d, 0.2, 7, true)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    m, err := similarity.FromParams(context.Background(), train.X, train.Labels(), similarity.SearchOptions{
//	        NumFolds:  5,
//	        ParamGrid: map[string][]interface{}{"max_depth": {4, 6}, "learning_rate": {0.1, 0.3}},
//	        Seed:      7,
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := m.Train(train.X, train.Labels()); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    pred, err := m.Predict(test.X)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    acc, f1, err := m.Evaluate(test.Y, pred)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("accuracy=%.3f f1=%.3f\n", acc, f1)
//	}
//
// # Packages
//
//   - similarity: the model facade (FromWeights, FromParams, Train, Predict, Evaluate)
//   - sklearn/xgboost: XGBClassifier, exact greedy gradient boosted trees with logistic loss
//   - sklearn/model_selection: KFold, StratifiedKFold, CrossValidate, GridSearchCV, result tables and plots
//   - metrics: accuracy, precision, recall, F1, log loss, AUC and named scorers
//   - dataset: CSV loading and train/test splits
//   - tracking: SQLite history of searches and evaluations
//   - config: YAML configuration of the sentsim command
//   - core/model: estimator interfaces, state and persistence
//   - core/parallel: CPU parallelism helpers
//   - pkg/errors, pkg/log: error types and structured logging
//
// The cmd/sentsim command wires these together behind search, train,
// evaluate and predict subcommands.
package sentsim
