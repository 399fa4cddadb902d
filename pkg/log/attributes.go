package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "XGBClassifier".
	ModelNameKey = "model.name"

	// OperationKey is the operation being performed: fit, predict, score, search.
	OperationKey = "ml.operation"

	// PhaseKey is the lifecycle phase: training, validation, inference.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	PathKey     = "data.path"
)

// Performance and metrics.
const (
	// DurationMsKey is the elapsed time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	AccuracyKey = "metrics.accuracy"
	F1Key       = "metrics.f1"
	LossKey     = "metrics.loss"

	// IterationKey is the boosting round.
	IterationKey = "training.iteration"
)

// Hyperparameter search.
const (
	// HyperParamsKey holds a candidate's parameter map.
	HyperParamsKey = "model.hyperparams"

	// CandidateKey is the index of a grid-search candidate.
	CandidateKey = "search.candidate"

	// CandidatesKey is the total number of candidates.
	CandidatesKey = "search.candidates"

	// FoldKey is the cross-validation fold index.
	FoldKey = "search.fold"

	// ScoringKey is the scorer name, e.g. "accuracy".
	ScoringKey = "search.scoring"

	// ScoreKey is a cross-validation score.
	ScoreKey = "search.score"

	// RandomSeedKey records the seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error context.
const (
	ErrorCodeKey = "error.code"
	ErrorTypeKey = "error.type"
)

// Standard values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationSearch  = "search"
	OperationLoad    = "load"
	OperationSave    = "save"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorInvalidInput      = "INVALID_INPUT"
)
