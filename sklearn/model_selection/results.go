package model_selection

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/sentsim/core/model"
	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

// CVResults is the per-candidate table produced by GridSearchCV, laid out
// like scikit-learn's cv_results_. Slices are indexed by candidate.
type CVResults struct {
	Scoring    string
	ParamNames []string
	Params     []map[string]interface{}

	SplitTestScores  [][]float64 // [candidate][fold]
	SplitTrainScores [][]float64 // nil unless train scores were requested
	MeanTestScore    []float64
	StdTestScore     []float64
	MeanTrainScore   []float64
	StdTrainScore    []float64
	MeanFitTime      []float64 // seconds
	MeanScoreTime    []float64 // seconds
	RankTestScore    []int
}

// Row is one candidate of the results table.
type Row struct {
	Params         map[string]interface{}
	MeanTestScore  float64
	MeanTrainScore float64
	StdTestScore   float64
	Rank           int
}

func newCVResults(scoring string, candidates []map[string]interface{}, scores []foldScore,
	nFolds int, returnTrain bool) *CVResults {
	n := len(candidates)
	r := &CVResults{
		Scoring:         scoring,
		ParamNames:      ParamNames(candidates),
		Params:          candidates,
		SplitTestScores: make([][]float64, n),
		MeanTestScore:   make([]float64, n),
		StdTestScore:    make([]float64, n),
		MeanFitTime:     make([]float64, n),
		MeanScoreTime:   make([]float64, n),
	}
	if returnTrain {
		r.SplitTrainScores = make([][]float64, n)
		r.MeanTrainScore = make([]float64, n)
		r.StdTrainScore = make([]float64, n)
	}

	for c := 0; c < n; c++ {
		cand := CVResult{
			TestScores: make([]float64, nFolds),
			FitTimes:   make([]float64, nFolds),
			ScoreTimes: make([]float64, nFolds),
		}
		if returnTrain {
			cand.TrainScores = make([]float64, nFolds)
		}
		for f := 0; f < nFolds; f++ {
			s := scores[c*nFolds+f]
			cand.TestScores[f] = s.test
			cand.FitTimes[f] = s.fitTime
			cand.ScoreTimes[f] = s.scoreTime
			if returnTrain {
				cand.TrainScores[f] = s.train
			}
		}
		r.SplitTestScores[c] = cand.TestScores
		r.MeanTestScore[c], r.StdTestScore[c] = meanStd(cand.TestScores)
		r.MeanFitTime[c], _ = meanStd(cand.FitTimes)
		r.MeanScoreTime[c], _ = meanStd(cand.ScoreTimes)
		if returnTrain {
			r.SplitTrainScores[c] = cand.TrainScores
			r.MeanTrainScore[c], r.StdTrainScore[c] = meanStd(cand.TrainScores)
		}
	}
	r.RankTestScore = rankDescending(r.MeanTestScore)
	return r
}

// rankDescending ranks scores with the highest at 1. Ties share the
// smallest rank, as scipy's rankdata(method="min") does.
func rankDescending(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	ranks := make([]int, len(scores))
	for pos, idx := range order {
		if pos > 0 && scores[idx] == scores[order[pos-1]] {
			ranks[idx] = ranks[order[pos-1]]
			continue
		}
		ranks[idx] = pos + 1
	}
	return ranks
}

// BestIndex is the first candidate with rank 1.
func (r *CVResults) BestIndex() int {
	for i, rank := range r.RankTestScore {
		if rank == 1 {
			return i
		}
	}
	return 0
}

// HasTrainScores reports whether train scores were collected.
func (r *CVResults) HasTrainScores() bool {
	return r.MeanTrainScore != nil
}

// Rows returns one record per candidate in grid order.
func (r *CVResults) Rows() []Row {
	rows := make([]Row, len(r.Params))
	for i := range rows {
		rows[i] = Row{
			Params:        r.Params[i],
			MeanTestScore: r.MeanTestScore[i],
			StdTestScore:  r.StdTestScore[i],
			Rank:          r.RankTestScore[i],
		}
		if r.HasTrainScores() {
			rows[i].MeanTrainScore = r.MeanTrainScore[i]
		}
	}
	return rows
}

// WriteCSV writes one line per candidate with the sorted parameter names
// followed by mean_test_score and mean_train_score. mean_train_score is
// empty when train scores were not collected.
func (r *CVResults) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append(append([]string{}, r.ParamNames...), "mean_test_score", "mean_train_score")
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}
	for _, row := range r.Rows() {
		record := make([]string, 0, len(header))
		for _, name := range r.ParamNames {
			v, ok := row.Params[name]
			if !ok {
				record = append(record, "")
				continue
			}
			record = append(record, formatValue(v))
		}
		record = append(record, formatFloat(row.MeanTestScore))
		if r.HasTrainScores() {
			record = append(record, formatFloat(row.MeanTrainScore))
		} else {
			record = append(record, "")
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "failed to write CSV record")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush CSV")
}

// SaveCSV writes the table to path, creating parent directories.
func (r *CVResults) SaveCSV(path string) error {
	return model.WriteFileAtomic(path, r.WriteCSV)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
