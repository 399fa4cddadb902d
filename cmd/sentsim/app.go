package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/sentsim/config"
	"github.com/YuminosukeSato/sentsim/dataset"
	"github.com/YuminosukeSato/sentsim/pkg/errors"
	"github.com/YuminosukeSato/sentsim/pkg/log"
	"github.com/YuminosukeSato/sentsim/tracking"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var version = "v0.1.0-dev"

const (
	configFlag   = "config"
	logLevelFlag = "log-level"
	formatFlag   = "format"
	dataFlag     = "data"
	weightsFlag  = "weights"
	seedFlag     = "seed"
)

// Flags are built per app; urfave flags keep parsed state.

func newDataFlag() cli.Flag {
	return &cli.StringFlag{Name: dataFlag, Usage: "Path to a CSV feature table (overrides the config)"}
}

func newWeightsFlag() cli.Flag {
	return &cli.StringFlag{Name: weightsFlag, Usage: "Path to the model weights (overrides model.weights_path)"}
}

func newSeedFlag() cli.Flag {
	return &cli.IntFlag{Name: seedFlag, Usage: "Random seed (overrides search.seed)"}
}

// app carries state shared by the commands of one invocation.
type app struct {
	out    io.Writer
	format string
	conf   *config.Config
	store  *tracking.Store
}

func newApp(out io.Writer) *cli.Command {
	a := &app{out: out}
	return &cli.Command{
		Name:    "sentsim",
		Usage:   "Sentence-pair similarity with gradient boosted trees",
		Version: version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file (optional, defaults are used when empty)",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "Overrides log.level [debug, info, warn, error]",
			},
			&cli.StringFlag{
				Name:  formatFlag,
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
		},
		Commands: []*cli.Command{
			a.searchCmd(),
			a.trainCmd(),
			a.evaluateCmd(),
			a.predictCmd(),
		},
		Before: a.before,
		After:  a.after,
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	conf := config.Default()
	if path := cmd.String(configFlag); path != "" {
		var err error
		if conf, err = config.Load(path); err != nil {
			return ctx, err
		}
	}
	if level := cmd.String(logLevelFlag); level != "" {
		conf.Log.Level = level
	}
	if err := log.Setup(conf.LogOptions()); err != nil {
		return ctx, errors.Wrap(err, "initializing logging")
	}

	switch f := cmd.String(formatFlag); f {
	case formatJSON:
		a.format = formatJSON
	case formatYAML, "yml":
		a.format = formatYAML
	default:
		return ctx, errors.NewValidationError("format", "must be json or yaml", f)
	}

	if conf.Tracking.Path != "" {
		store, err := tracking.Open(conf.Tracking.Path)
		if err != nil {
			return ctx, errors.Wrap(err, "opening tracking database")
		}
		a.store = store
	}
	a.conf = conf
	return ctx, nil
}

func (a *app) after(_ context.Context, _ *cli.Command) error {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.GetLoggerWithName("cli").Warn("Closing tracking database failed", err)
		}
		a.store = nil
	}
	return log.Close()
}

func (a *app) encode(v any) error {
	if a.format == formatYAML {
		return yaml.NewEncoder(a.out).Encode(v)
	}
	e := json.NewEncoder(a.out)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

func (a *app) loadOptions(labeled bool) dataset.LoadOptions {
	opts := dataset.LoadOptions{FeatureColumns: a.conf.Data.Features}
	if labeled {
		opts.LabelColumn = a.conf.Data.LabelColumn
	}
	return opts
}

func (a *app) weightsPath(cmd *cli.Command) string {
	if p := cmd.String(weightsFlag); p != "" {
		return p
	}
	return a.conf.Model.WeightsPath
}

func (a *app) seed(cmd *cli.Command) int {
	if cmd.IsSet(seedFlag) {
		return int(cmd.Int(seedFlag))
	}
	return a.conf.Search.Seed
}
