// Command sentsim searches, trains, evaluates and applies the sentence-pair
// similarity classifier.
//
//	sentsim --config sentsim.yaml search
//	sentsim --config sentsim.yaml train
//	sentsim evaluate --data data/test.csv
//	sentsim predict --data data/new_pairs.csv --output data/scores.csv
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
	"github.com/YuminosukeSato/sentsim/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		code, typ := errorCode(err)
		log.GetLoggerWithName("cli").Error("Command failed", err,
			log.ErrorCodeKey, code,
			log.ErrorTypeKey, typ)
		fmt.Fprintf(os.Stderr, "sentsim: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// errorCode classifies err for the failure record.
func errorCode(err error) (code, typ string) {
	var (
		notFitted  *errors.NotFittedError
		dimension  *errors.DimensionError
		validation *errors.ValidationError
		value      *errors.ValueError
		model      *errors.ModelError
	)
	switch {
	case errors.As(err, &notFitted):
		return log.ErrorNotFitted, "NotFittedError"
	case errors.As(err, &dimension):
		return log.ErrorDimensionMismatch, "DimensionError"
	case errors.As(err, &validation):
		return log.ErrorInvalidInput, "ValidationError"
	case errors.As(err, &value):
		return log.ErrorInvalidInput, "ValueError"
	case errors.As(err, &model):
		return "MODEL_ERROR", "ModelError"
	case errors.Is(err, context.Canceled):
		return "CANCELED", "Canceled"
	default:
		return "UNKNOWN", fmt.Sprintf("%T", err)
	}
}
