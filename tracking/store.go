// Package tracking records grid-search runs and evaluations in a SQLite
// database so results can be compared across invocations.
package tracking

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
	"github.com/YuminosukeSato/sentsim/pkg/log"
	"github.com/YuminosukeSato/sentsim/sklearn/model_selection"
)

const driverName = "sqlite"

//go:embed sql/schema.sql
var schema string

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("tracking: not found")

// Store is a SQLite-backed run log. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	path   string
	logger log.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.NewValidationError("tracking.path", "must not be empty", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", path)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to create database schema in: %s", path)
	}

	s := &Store{db: db, path: path, logger: log.GetLoggerWithName("tracking")}
	s.logger.Debug("Tracking store opened", log.PathKey, path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SearchSummary describes one grid search.
type SearchSummary struct {
	Scoring     string
	NFolds      int
	Seed        int
	NSamples    int
	NFeatures   int
	BestIndex   int
	BestScore   float64
	BestParams  map[string]interface{}
	ResultsPath string
	StartedAt   time.Time
	Duration    time.Duration
}

// Run is a stored SearchSummary.
type Run struct {
	ID int64
	SearchSummary
}

// Candidate is one stored row of a run's results table.
type Candidate struct {
	RunID          int64
	Index          int
	Params         map[string]interface{}
	MeanTestScore  float64
	StdTestScore   float64
	MeanTrainScore *float64 // nil when train scores were not collected
	Rank           int
}

// RecordSearch stores summary and every candidate of results in one
// transaction and returns the run id.
func (s *Store) RecordSearch(ctx context.Context, summary SearchSummary, results *model_selection.CVResults) (id int64, err error) {
	if results == nil {
		return 0, errors.NewValueError("RecordSearch", "results must not be nil")
	}
	bestParams, err := json.Marshal(summary.BestParams)
	if err != nil {
		return 0, errors.Wrap(err, "failed to encode best params")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warn("Rollback failed", rbErr)
			}
		}
	}()

	res, err := tx.ExecContext(ctx, `INSERT INTO search_run
		(scoring, n_folds, seed, n_samples, n_features, best_index, best_score, best_params, results_path, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.Scoring, summary.NFolds, summary.Seed, summary.NSamples, summary.NFeatures,
		summary.BestIndex, summary.BestScore, string(bestParams), summary.ResultsPath,
		summary.StartedAt.UTC().Format(time.RFC3339Nano), summary.Duration.Milliseconds())
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert search run")
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, errors.Wrap(err, "failed to read run id")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO search_candidate
		(run_id, idx, params, mean_test_score, std_test_score, mean_train_score, rank_test_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prepare candidate statement")
	}
	defer stmt.Close()

	for i, row := range results.Rows() {
		params, err := json.Marshal(row.Params)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to encode params of candidate %d", i)
		}
		var train sql.NullFloat64
		if results.HasTrainScores() {
			train = sql.NullFloat64{Float64: row.MeanTrainScore, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, i, string(params), row.MeanTestScore, row.StdTestScore, train, row.Rank); err != nil {
			return 0, errors.Wrapf(err, "failed to insert candidate %d", i)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit transaction")
	}
	s.logger.Info("Search recorded",
		"run_id", id,
		log.CandidatesKey, len(results.Params),
		log.ScoringKey, summary.Scoring,
		log.ScoreKey, summary.BestScore)
	return id, nil
}

const runColumns = `id, scoring, n_folds, seed, n_samples, n_features, best_index, best_score, best_params, results_path, started_at, duration_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (*Run, error) {
	var (
		run        Run
		bestParams string
		startedAt  string
		durationMs int64
	)
	if err := r.Scan(&run.ID, &run.Scoring, &run.NFolds, &run.Seed, &run.NSamples, &run.NFeatures,
		&run.BestIndex, &run.BestScore, &bestParams, &run.ResultsPath, &startedAt, &durationMs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(bestParams), &run.BestParams); err != nil {
		return nil, errors.Wrapf(err, "run %d has invalid best_params", run.ID)
	}
	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "run %d has invalid started_at", run.ID)
	}
	run.StartedAt = t
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return &run, nil
}

// Runs returns the most recent runs first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM search_run ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, *run)
	}
	return runs, errors.Wrap(rows.Err(), "failed to iterate runs")
}

// BestRun returns the run with the highest best score for scoring.
func (s *Store) BestRun(ctx context.Context, scoring string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM search_run
		WHERE scoring = ? ORDER BY best_score DESC, id ASC LIMIT 1`, scoring)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "no run with scoring %q", scoring)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query best run")
	}
	return run, nil
}

// Candidates returns the rows of one run in grid order.
func (s *Store) Candidates(ctx context.Context, runID int64) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, idx, params, mean_test_score, std_test_score, mean_train_score, rank_test_score
		FROM search_candidate WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query candidates")
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c      Candidate
			params string
			train  sql.NullFloat64
		)
		if err := rows.Scan(&c.RunID, &c.Index, &params, &c.MeanTestScore, &c.StdTestScore, &train, &c.Rank); err != nil {
			return nil, errors.Wrap(err, "failed to scan candidate")
		}
		if err := json.Unmarshal([]byte(params), &c.Params); err != nil {
			return nil, errors.Wrapf(err, "candidate %d has invalid params", c.Index)
		}
		if train.Valid {
			v := train.Float64
			c.MeanTrainScore = &v
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate candidates")
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "no candidates for run %d", runID)
	}
	return out, nil
}

// Evaluation is one held-out evaluation of a persisted model.
type Evaluation struct {
	ID          int64
	WeightsPath string
	DataPath    string
	NSamples    int
	Accuracy    float64
	F1          float64
	CreatedAt   time.Time
}

// RecordEvaluation stores e and returns its id. A zero CreatedAt is set to
// the current time.
func (s *Store) RecordEvaluation(ctx context.Context, e Evaluation) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO evaluation
		(weights_path, data_path, n_samples, accuracy, f1, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.WeightsPath, e.DataPath, e.NSamples, e.Accuracy, e.F1, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert evaluation")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read evaluation id")
	}
	s.logger.Info("Evaluation recorded",
		"evaluation_id", id,
		log.AccuracyKey, e.Accuracy,
		log.F1Key, e.F1)
	return id, nil
}

// Evaluations returns stored evaluations of weightsPath, newest first.
func (s *Store) Evaluations(ctx context.Context, weightsPath string) ([]Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, weights_path, data_path, n_samples, accuracy, f1, created_at
		FROM evaluation WHERE weights_path = ? ORDER BY id DESC`, weightsPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query evaluations")
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		var (
			e         Evaluation
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.WeightsPath, &e.DataPath, &e.NSamples, &e.Accuracy, &e.F1, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan evaluation")
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, errors.Wrapf(err, "evaluation %d has invalid created_at", e.ID)
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate evaluations")
}
