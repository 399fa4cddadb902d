package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/YuminosukeSato/sentsim/core/model"
	"github.com/YuminosukeSato/sentsim/dataset"
	"github.com/YuminosukeSato/sentsim/pkg/errors"
	"github.com/YuminosukeSato/sentsim/pkg/log"
	"github.com/YuminosukeSato/sentsim/similarity"
	"github.com/YuminosukeSato/sentsim/tracking"
)

type searchResult struct {
	BestScore   float64                `json:"best_score" yaml:"best_score"`
	BestParams  map[string]interface{} `json:"best_params" yaml:"best_params"`
	Scoring     string                 `json:"scoring" yaml:"scoring"`
	ResultsPath string                 `json:"results_path" yaml:"results_path"`
	WeightsPath string                 `json:"weights_path,omitempty" yaml:"weights_path,omitempty"`
}

type evalResult struct {
	WeightsPath string  `json:"weights_path" yaml:"weights_path"`
	DataPath    string  `json:"data_path" yaml:"data_path"`
	Samples     int     `json:"samples" yaml:"samples"`
	Accuracy    float64 `json:"accuracy" yaml:"accuracy"`
	F1          float64 `json:"f1" yaml:"f1"`
}

func (a *app) searchCmd() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Grid-search hyperparameters with stratified k-fold CV and save the best classifier",
		Flags: []cli.Flag{
			newDataFlag(),
			newWeightsFlag(),
			newSeedFlag(),
			&cli.IntFlag{Name: "folds", Usage: "Number of CV folds (overrides search.num_folds)"},
			&cli.StringFlag{Name: "scoring", Usage: "Scorer name (overrides search.scoring)"},
			&cli.StringFlag{Name: "results", Usage: "Results CSV path (overrides search.results_path)"},
			&cli.StringFlag{Name: "plot", Usage: "Score plot path, .png or .svg (overrides search.plot_path)"},
			&cli.BoolFlag{Name: "refit", Usage: "Fit the best candidate on all rows before saving"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts := a.conf.SearchOptions()
			opts.Seed = a.seed(cmd)
			opts.WeightsPath = a.weightsPath(cmd)
			if cmd.IsSet("folds") {
				opts.NumFolds = int(cmd.Int("folds"))
			}
			if s := cmd.String("scoring"); s != "" {
				opts.Scoring = s
			}
			if p := cmd.String("results"); p != "" {
				opts.ResultsPath = p
			}
			if p := cmd.String("plot"); p != "" {
				opts.PlotPath = p
			}
			if cmd.Bool("refit") {
				opts.Refit = true
			}
			if a.store != nil {
				opts.Recorder = a.store
			}

			train, _, _, err := a.trainingSplit(cmd, opts.Seed)
			if err != nil {
				return err
			}
			m, err := similarity.FromParams(ctx, train.X, train.Labels(), opts)
			if err != nil {
				return err
			}
			cv := m.CVResults()
			best := cv.BestIndex()
			return a.encode(searchResult{
				BestScore:   cv.MeanTestScore[best],
				BestParams:  m.BestParams(),
				Scoring:     opts.Scoring,
				ResultsPath: opts.ResultsPath,
				WeightsPath: m.WeightsPath(),
			})
		},
	}
}

func (a *app) trainCmd() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "Train the classifier, save its weights and report held-out accuracy and F1",
		Flags: []cli.Flag{newDataFlag(), newWeightsFlag(), newSeedFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			weights := a.weightsPath(cmd)
			m, err := a.modelForTraining(weights)
			if err != nil {
				return err
			}

			train, test, path, err := a.trainingSplit(cmd, a.seed(cmd))
			if err != nil {
				return err
			}
			if err := m.Train(train.X, train.Labels()); err != nil {
				return err
			}
			if err := m.Save(weights); err != nil {
				return err
			}
			if a.conf.Data.Test != "" {
				path = a.conf.Data.Test
			}
			return a.evaluate(ctx, m, test, path)
		},
	}
}

func (a *app) evaluateCmd() *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "Evaluate saved weights on a labeled table",
		Flags: []cli.Flag{newDataFlag(), newWeightsFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String(dataFlag)
			if path == "" {
				path = a.conf.Data.Test
			}
			if path == "" {
				return errors.NewValueError("evaluate", "no test data: set --data or data.test")
			}
			m, err := similarity.FromWeights(a.weightsPath(cmd))
			if err != nil {
				return err
			}
			d, err := dataset.LoadCSV(path, a.loadOptions(true))
			if err != nil {
				return err
			}
			return a.evaluate(ctx, m, d, path)
		},
	}
}

func (a *app) predictCmd() *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "Score an unlabeled table; writes row,probability,label as CSV",
		Flags: []cli.Flag{
			newDataFlag(),
			newWeightsFlag(),
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output CSV path (default: stdout)"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			path := cmd.String(dataFlag)
			if path == "" {
				return errors.NewValueError("predict", "--data is required")
			}
			m, err := similarity.FromWeights(a.weightsPath(cmd))
			if err != nil {
				return err
			}
			d, err := dataset.LoadCSV(path, a.loadOptions(false))
			if err != nil {
				return err
			}
			proba, err := m.PredictProba(d.X)
			if err != nil {
				return err
			}
			labels, err := m.Predict(d.X)
			if err != nil {
				return err
			}
			log.GetLoggerWithName("cli").Info("Pairs scored",
				log.OperationKey, log.OperationPredict,
				log.PhaseKey, log.PhaseInference,
				log.PathKey, path,
				log.SamplesKey, d.Len())

			write := func(w io.Writer) error {
				cw := csv.NewWriter(w)
				if err := cw.Write([]string{"row", "probability", "label"}); err != nil {
					return err
				}
				for i := 0; i < proba.Len(); i++ {
					if err := cw.Write([]string{
						strconv.Itoa(i),
						strconv.FormatFloat(proba.AtVec(i), 'g', -1, 64),
						strconv.Itoa(int(labels.AtVec(i))),
					}); err != nil {
						return err
					}
				}
				cw.Flush()
				return cw.Error()
			}
			if out := cmd.String("output"); out != "" {
				return model.WriteFileAtomic(out, write)
			}
			return write(a.out)
		},
	}
}

// modelForTraining continues from existing weights, or starts from
// model.params when there are none.
func (a *app) modelForTraining(weights string) (*similarity.Model, error) {
	if _, err := os.Stat(weights); err == nil {
		return similarity.FromWeights(weights)
	}
	m := similarity.New()
	if err := m.Classifier().SetParams(a.conf.Model.Params); err != nil {
		return nil, errors.Wrap(err, "model.params")
	}
	return m, nil
}

// trainingSplit loads the training table and returns its path. With
// data.test configured the whole table is used for training and data.test
// is the held-out set; otherwise data.test_fraction of the rows are held
// out.
func (a *app) trainingSplit(cmd *cli.Command, seed int) (train, test *dataset.Dataset, path string, err error) {
	path = cmd.String(dataFlag)
	if path == "" {
		path = a.conf.Data.Train
	}
	d, err := dataset.LoadCSV(path, a.loadOptions(true))
	if err != nil {
		return nil, nil, "", err
	}
	if a.conf.Data.Test != "" {
		test, err := dataset.LoadCSV(a.conf.Data.Test, a.loadOptions(true))
		if err != nil {
			return nil, nil, "", err
		}
		return d, test, path, nil
	}
	train, test, err = dataset.TrainTestSplit(d, a.conf.Data.TestFraction, seed, a.conf.Data.Stratify)
	return train, test, path, err
}

func (a *app) evaluate(ctx context.Context, m *similarity.Model, d *dataset.Dataset, dataPath string) error {
	pred, err := m.Predict(d.X)
	if err != nil {
		return err
	}
	acc, f1, err := m.Evaluate(d.Y, pred)
	if err != nil {
		return err
	}
	log.GetLoggerWithName("cli").Info("Model evaluated",
		log.OperationKey, log.OperationScore,
		log.PhaseKey, log.PhaseValidation,
		log.PathKey, dataPath,
		log.SamplesKey, d.Len(),
		log.AccuracyKey, acc,
		log.F1Key, f1)

	if a.store != nil {
		if _, err := a.store.RecordEvaluation(ctx, tracking.Evaluation{
			WeightsPath: m.WeightsPath(),
			DataPath:    dataPath,
			NSamples:    d.Len(),
			Accuracy:    acc,
			F1:          f1,
		}); err != nil {
			return err
		}
	}
	return a.encode(evalResult{
		WeightsPath: m.WeightsPath(),
		DataPath:    dataPath,
		Samples:     d.Len(),
		Accuracy:    acc,
		F1:          f1,
	})
}
