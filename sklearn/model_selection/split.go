package model_selection

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

// Splitter generates train/test folds.
type Splitter interface {
	Split(X, y mat.Matrix) ([]Fold, error)
	GetNSplits() int
}

// Fold is one train/test partition. Both index slices are sorted.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split assigns consecutive (optionally shuffled) blocks of rows to each
// fold. The first n%k folds get one extra row.
func (kf *KFold) Split(X, _ mat.Matrix) ([]Fold, error) {
	nSamples, err := checkSplits("KFold", kf.NSplits, X)
	if err != nil {
		return nil, err
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := newRand(kf.RandomSeed)
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	assignment := make([]int, nSamples)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	current := 0
	for fold := 0; fold < kf.NSplits; fold++ {
		testSize := foldSize
		if fold < remainder {
			testSize++
		}
		for _, idx := range indices[current : current+testSize] {
			assignment[idx] = fold
		}
		current += testSize
	}
	return foldsFromAssignment(assignment, kf.NSplits), nil
}

// StratifiedKFold implements stratified k-fold cross-validation
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split keeps the class proportions of y in every test fold. Classes are
// visited in ascending label order and each class's leftover rows continue
// where the previous class stopped, so fold sizes differ by at most one.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]Fold, error) {
	nSamples, err := checkSplits("StratifiedKFold", skf.NSplits, X)
	if err != nil {
		return nil, err
	}
	if y == nil {
		return nil, errors.NewValueError("StratifiedKFold.Split", "y is required for stratification")
	}
	if yRows, _ := y.Dims(); yRows != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, yRows, 0)
	}

	classIndices := make(map[float64][]int)
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		classIndices[label] = append(classIndices[label], i)
	}
	labels := make([]float64, 0, len(classIndices))
	for label := range classIndices {
		labels = append(labels, label)
	}
	sort.Float64s(labels)

	minCount := nSamples
	for _, label := range labels {
		minCount = min(minCount, len(classIndices[label]))
	}
	if minCount < skf.NSplits {
		errors.Warn(errors.NewSplitWarning("StratifiedKFold",
			fmt.Sprintf("the least populated class in y has only %d members, which is less than n_splits=%d", minCount, skf.NSplits)))
	}

	if skf.Shuffle {
		r := newRand(skf.RandomSeed)
		for _, label := range labels {
			indices := classIndices[label]
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
	}

	assignment := make([]int, nSamples)
	offset := 0
	for _, label := range labels {
		indices := classIndices[label]
		nClass := len(indices)
		foldSize := nClass / skf.NSplits
		remainder := nClass % skf.NSplits

		current := 0
		for k := 0; k < skf.NSplits; k++ {
			fold := (offset + k) % skf.NSplits
			testSize := foldSize
			if k < remainder {
				testSize++
			}
			for _, idx := range indices[current : current+testSize] {
				assignment[idx] = fold
			}
			current += testSize
		}
		offset = (offset + remainder) % skf.NSplits
	}
	return foldsFromAssignment(assignment, skf.NSplits), nil
}

func checkSplits(splitter string, nSplits int, X mat.Matrix) (int, error) {
	if X == nil {
		return 0, errors.NewValueError(splitter+".Split", "X must not be nil")
	}
	if nSplits < 2 {
		return 0, errors.NewValidationError("n_splits", "must be at least 2", nSplits)
	}
	nSamples, _ := X.Dims()
	if nSplits > nSamples {
		return 0, errors.NewValidationError("n_splits",
			fmt.Sprintf("cannot be greater than the number of samples (%d)", nSamples), nSplits)
	}
	return nSamples, nil
}

func foldsFromAssignment(assignment []int, nSplits int) []Fold {
	folds := make([]Fold, nSplits)
	for idx, fold := range assignment {
		for k := range folds {
			if k == fold {
				folds[k].TestIndices = append(folds[k].TestIndices, idx)
			} else {
				folds[k].TrainIndices = append(folds[k].TrainIndices, idx)
			}
		}
	}
	return folds
}

func newRand(seed int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// extractSubset copies the rows of X and y listed in indices.
func extractSubset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, xCols := X.Dims()
	_, yCols := y.Dims()

	xSubset := mat.NewDense(len(indices), xCols, nil)
	ySubset := mat.NewDense(len(indices), yCols, nil)
	for i, idx := range indices {
		for j := 0; j < xCols; j++ {
			xSubset.Set(i, j, X.At(idx, j))
		}
		for j := 0; j < yCols; j++ {
			ySubset.Set(i, j, y.At(idx, j))
		}
	}
	return xSubset, ySubset
}
