// Package dataset loads sentence-pair feature tables from CSV and splits
// them into train and test sets.
package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
	"github.com/YuminosukeSato/sentsim/pkg/log"
)

// Dataset is a feature matrix with optional binary labels.
type Dataset struct {
	X            *mat.Dense
	Y            *mat.VecDense // nil when the table has no label column
	FeatureNames []string
	LabelName    string
}

// LoadOptions selects columns when reading a CSV table.
type LoadOptions struct {
	// LabelColumn names the label column. Empty means the table is
	// unlabeled (e.g. rows to predict).
	LabelColumn string
	// FeatureColumns restricts and orders the features. Empty means every
	// column except LabelColumn, in file order.
	FeatureColumns []string
	// Comma is the field separator. Zero means ','.
	Comma rune
}

// missing cells become NaN; the classifier learns a default direction.
var missingTokens = map[string]bool{"": true, "na": true, "nan": true, "null": true}

// LoadCSV reads a headed CSV file.
func LoadCSV(path string, opts LoadOptions) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dataset %s", path)
	}
	defer file.Close()

	d, err := ReadCSV(bufio.NewReader(file), opts)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s", path)
	}
	log.GetLoggerWithName("dataset").Debug("Dataset loaded",
		log.PathKey, path,
		log.SamplesKey, d.Len(),
		log.FeaturesKey, len(d.FeatureNames))
	return d, nil
}

// ReadCSV reads a headed CSV table from r. Labels must be 0 or 1.
func ReadCSV(r io.Reader, opts LoadOptions) (*Dataset, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "missing header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := columns[name]; dup {
			return nil, errors.NewValueError("ReadCSV", fmt.Sprintf("duplicate column %q", name))
		}
		columns[name] = i
	}

	labelIdx := -1
	if opts.LabelColumn != "" {
		idx, ok := columns[opts.LabelColumn]
		if !ok {
			return nil, errors.NewValueError("ReadCSV", fmt.Sprintf("label column %q not found", opts.LabelColumn))
		}
		labelIdx = idx
	}

	var featureIdx []int
	var featureNames []string
	if len(opts.FeatureColumns) > 0 {
		for _, name := range opts.FeatureColumns {
			idx, ok := columns[name]
			if !ok {
				return nil, errors.NewValueError("ReadCSV", fmt.Sprintf("feature column %q not found", name))
			}
			if idx == labelIdx {
				return nil, errors.NewValueError("ReadCSV", fmt.Sprintf("column %q is both label and feature", name))
			}
			featureIdx = append(featureIdx, idx)
			featureNames = append(featureNames, name)
		}
	} else {
		for i, name := range header {
			if i == labelIdx {
				continue
			}
			featureIdx = append(featureIdx, i)
			featureNames = append(featureNames, strings.TrimSpace(name))
		}
	}
	if len(featureIdx) == 0 {
		return nil, errors.NewValueError("ReadCSV", "no feature columns")
	}

	var data, labels []float64
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		for k, idx := range featureIdx {
			v, err := parseCell(record[idx])
			if err != nil {
				return nil, errors.NewValueError("ReadCSV",
					fmt.Sprintf("line %d column %q: %v", line, featureNames[k], err))
			}
			data = append(data, v)
		}
		if labelIdx >= 0 {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[labelIdx]), 64)
			if err != nil || (v != 0 && v != 1) {
				return nil, errors.NewValueError("ReadCSV",
					fmt.Sprintf("line %d: label must be 0 or 1, got %q", line, record[labelIdx]))
			}
			labels = append(labels, v)
		}
	}

	n := len(data) / len(featureIdx)
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "no data rows")
	}
	d := &Dataset{
		X:            mat.NewDense(n, len(featureIdx), data),
		FeatureNames: featureNames,
		LabelName:    opts.LabelColumn,
	}
	if labelIdx >= 0 {
		d.Y = mat.NewVecDense(n, labels)
	}
	return d, nil
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if missingTokens[strings.ToLower(s)] {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return 0, errors.Newf("infinite value %q", s)
	}
	return v, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	n, _ := d.X.Dims()
	return n
}

// HasLabels reports whether Y is set.
func (d *Dataset) HasLabels() bool {
	return d.Y != nil
}

// Labels returns Y as an n×1 matrix for Fit.
func (d *Dataset) Labels() *mat.Dense {
	if d.Y == nil {
		return nil
	}
	return mat.NewDense(d.Y.Len(), 1, mat.Col(nil, 0, d.Y))
}

// Subset copies the listed rows. indices must be non-empty.
func (d *Dataset) Subset(indices []int) *Dataset {
	_, cols := d.X.Dims()
	out := &Dataset{
		X:            mat.NewDense(len(indices), cols, nil),
		FeatureNames: d.FeatureNames,
		LabelName:    d.LabelName,
	}
	if d.Y != nil {
		out.Y = mat.NewVecDense(len(indices), nil)
	}
	for i, idx := range indices {
		out.X.SetRow(i, d.X.RawRowView(idx))
		if out.Y != nil {
			out.Y.SetVec(i, d.Y.AtVec(idx))
		}
	}
	return out
}

// TrainTestSplit shuffles rows with seed and holds out testSize of them.
// With stratify, each class contributes round(testSize * classCount) rows
// to the test set. Both parts keep the original row order.
func TrainTestSplit(d *Dataset, testSize float64, seed int, stratify bool) (train, test *Dataset, err error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	if stratify && d.Y == nil {
		return nil, nil, errors.NewValueError("TrainTestSplit", "stratify requires labels")
	}
	n := d.Len()
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))

	groups := [][]int{make([]int, n)}
	for i := range groups[0] {
		groups[0][i] = i
	}
	if stratify {
		var neg, pos []int
		for i := 0; i < n; i++ {
			if d.Y.AtVec(i) == 1 {
				pos = append(pos, i)
			} else {
				neg = append(neg, i)
			}
		}
		groups = [][]int{neg, pos}
	}

	var trainIdx, testIdx []int
	for _, g := range groups {
		r.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
		k := int(math.Round(testSize * float64(len(g))))
		testIdx = append(testIdx, g[:k]...)
		trainIdx = append(trainIdx, g[k:]...)
	}
	if len(trainIdx) == 0 || len(testIdx) == 0 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("test_size=%v leaves an empty split of %d rows", testSize, n))
	}
	sort.Ints(trainIdx)
	sort.Ints(testIdx)
	return d.Subset(trainIdx), d.Subset(testIdx), nil
}
