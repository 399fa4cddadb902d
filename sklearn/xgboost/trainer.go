package xgboost

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/YuminosukeSato/sentsim/core/parallel"
	"github.com/YuminosukeSato/sentsim/pkg/log"
)

// featureParallelThreshold is the node size below which split search over
// features runs on one goroutine.
const featureParallelThreshold = 256

// kRtEps is the smallest loss reduction treated as a real split.
const kRtEps = 1e-6

// trainer grows one Booster with exact greedy split finding.
type trainer struct {
	params Params

	rows   [][]float64
	labels []float64

	evalRows   [][]float64
	evalLabels []float64

	gradients []float64
	hessians  []float64
	margins   []float64

	workers int
	rng     *rand.Rand
	logger  log.Logger
}

type splitInfo struct {
	Feature     int
	Threshold   float64
	Gain        float64
	DefaultLeft bool
	valid       bool
}

func newTrainer(params Params, rows [][]float64, labels []float64) *trainer {
	seed := uint64(params.RandomState)
	return &trainer{
		params:  params,
		rows:    rows,
		labels:  labels,
		workers: parallel.Workers(params.NJobs),
		rng:     rand.New(rand.NewPCG(seed, seed)),
		logger:  log.GetLoggerWithName("xgboost.trainer"),
	}
}

func (t *trainer) withEvalSet(rows [][]float64, labels []float64) *trainer {
	t.evalRows = rows
	t.evalLabels = labels
	return t
}

// train runs the boosting loop.
func (t *trainer) train() *Booster {
	start := time.Now()
	n := len(t.rows)
	nFeatures := len(t.rows[0])

	booster := &Booster{
		BaseMargin: logit(t.params.BaseScore),
		NFeatures:  nFeatures,
	}

	t.gradients = make([]float64, n)
	t.hessians = make([]float64, n)
	t.margins = make([]float64, n)
	for i := range t.margins {
		t.margins[i] = booster.BaseMargin
	}

	var evalMargins []float64
	if t.evalRows != nil {
		evalMargins = make([]float64, len(t.evalRows))
		for i := range evalMargins {
			evalMargins[i] = booster.BaseMargin
		}
	}
	bestLoss := math.Inf(1)
	bestIter := -1

	for iter := 0; iter < t.params.NEstimators; iter++ {
		t.calculateGradients()

		sample := t.sampleRows()
		features := t.sampleFeatures(nFeatures)
		tree := t.buildTree(sample, features)
		booster.Trees = append(booster.Trees, tree)

		for i, row := range t.rows {
			t.margins[i] += tree.Predict(row)
		}

		if evalMargins != nil {
			for i, row := range t.evalRows {
				evalMargins[i] += tree.Predict(row)
			}
			loss := logLoss(evalMargins, t.evalLabels)
			if loss < bestLoss {
				bestLoss = loss
				bestIter = iter
			}
			if t.params.Verbosity > 0 {
				t.logger.Debug("Evaluation",
					log.IterationKey, iter,
					log.LossKey, loss)
			}
			if t.params.EarlyStoppingRounds > 0 && iter-bestIter >= t.params.EarlyStoppingRounds {
				if t.params.Verbosity > 0 {
					t.logger.Info("Early stopping",
						log.IterationKey, iter,
						"best_iteration", bestIter,
						"best_score", bestLoss)
				}
				break
			}
		}

		if t.params.Verbosity > 0 && iter%10 == 0 {
			t.logger.Debug("Training progress",
				log.IterationKey, iter,
				log.LossKey, logLoss(t.margins, t.labels))
		}
	}

	booster.BestIteration = len(booster.Trees) - 1
	if evalMargins != nil {
		booster.BestScore = bestLoss
		if t.params.EarlyStoppingRounds > 0 && bestIter >= 0 {
			booster.Trees = booster.Trees[:bestIter+1]
			booster.BestIteration = bestIter
		}
	}

	if t.params.Verbosity > 0 {
		t.logger.Info("Training finished",
			"n_trees", len(booster.Trees),
			log.SamplesKey, n,
			log.FeaturesKey, nFeatures,
			log.DurationMsKey, time.Since(start).Milliseconds())
	}
	return booster
}

func (t *trainer) calculateGradients() {
	for i, m := range t.margins {
		t.gradients[i], t.hessians[i] = gradHess(m, t.labels[i], t.params.ScalePosWeight)
	}
}

// sampleRows draws rows without replacement with probability subsample.
// An empty draw falls back to every row.
func (t *trainer) sampleRows() []int {
	n := len(t.rows)
	indices := make([]int, 0, n)
	if t.params.Subsample >= 1 {
		for i := 0; i < n; i++ {
			indices = append(indices, i)
		}
		return indices
	}
	for i := 0; i < n; i++ {
		if t.rng.Float64() < t.params.Subsample {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		for i := 0; i < n; i++ {
			indices = append(indices, i)
		}
	}
	return indices
}

// sampleFeatures picks max(1, round(nFeatures*colsample_bytree)) columns.
func (t *trainer) sampleFeatures(nFeatures int) []int {
	k := nFeatures
	if t.params.ColsampleBytree < 1 {
		k = max(1, int(math.Round(float64(nFeatures)*t.params.ColsampleBytree)))
	}
	if k >= nFeatures {
		features := make([]int, nFeatures)
		for i := range features {
			features[i] = i
		}
		return features
	}
	features := t.rng.Perm(nFeatures)[:k]
	sort.Ints(features)
	return features
}

func (t *trainer) buildTree(indices, features []int) Tree {
	tree := Tree{Nodes: make([]Node, 0, 31)}
	t.buildNode(&tree, indices, features, 0)
	return tree
}

// buildNode grows the subtree for indices depth-first and returns its
// index in tree.Nodes.
func (t *trainer) buildNode(tree *Tree, indices, features []int, depth int) int {
	nodeIdx := len(tree.Nodes)
	sumGrad, sumHess := t.sums(indices)

	leaf := func() int {
		tree.Nodes = append(tree.Nodes, Node{
			LeftChild:  -1,
			RightChild: -1,
			LeafValue:  t.calculateLeafValue(sumGrad, sumHess),
			Cover:      sumHess,
		})
		return nodeIdx
	}

	if (t.params.MaxDepth > 0 && depth >= t.params.MaxDepth) ||
		sumHess < 2*t.params.MinChildWeight || len(indices) < 2 {
		return leaf()
	}

	best := t.findBestSplit(indices, features, sumGrad, sumHess)
	if !best.valid || best.Gain <= kRtEps || best.Gain < t.params.Gamma {
		return leaf()
	}

	tree.Nodes = append(tree.Nodes, Node{
		SplitFeature: best.Feature,
		Threshold:    best.Threshold,
		DefaultLeft:  best.DefaultLeft,
		Gain:         best.Gain,
		Cover:        sumHess,
	})

	leftIndices, rightIndices := t.splitData(indices, best)
	leftChild := t.buildNode(tree, leftIndices, features, depth+1)
	rightChild := t.buildNode(tree, rightIndices, features, depth+1)

	tree.Nodes[nodeIdx].LeftChild = leftChild
	tree.Nodes[nodeIdx].RightChild = rightChild
	return nodeIdx
}

func (t *trainer) sums(indices []int) (float64, float64) {
	var g, h float64
	for _, idx := range indices {
		g += t.gradients[idx]
		h += t.hessians[idx]
	}
	return g, h
}

// findBestSplit searches features concurrently. The reduction is sequential
// in feature order so ties always resolve to the lowest feature index.
func (t *trainer) findBestSplit(indices, features []int, sumGrad, sumHess float64) splitInfo {
	candidates := make([]splitInfo, len(features))
	workers := t.workers
	if len(indices) < featureParallelThreshold {
		workers = 1
	}
	parallel.Parallelize(len(features), workers, func(start, end int) {
		for k := start; k < end; k++ {
			candidates[k] = t.findBestSplitForFeature(indices, features[k], sumGrad, sumHess)
		}
	})

	best := splitInfo{Gain: math.Inf(-1)}
	for _, c := range candidates {
		if c.valid && c.Gain > best.Gain {
			best = c
		}
	}
	return best
}

// findBestSplitForFeature scans the sorted non-missing values of feature.
// Each boundary is tried twice when missing values exist: once sending
// them right and once sending them left. With missing values the
// present/missing partition is tried as well.
func (t *trainer) findBestSplitForFeature(indices []int, feature int, sumGrad, sumHess float64) splitInfo {
	type entry struct {
		value float64
		idx   int
	}
	values := make([]entry, 0, len(indices))
	var missGrad, missHess float64
	for _, idx := range indices {
		v := t.rows[idx][feature]
		if math.IsNaN(v) {
			missGrad += t.gradients[idx]
			missHess += t.hessians[idx]
			continue
		}
		values = append(values, entry{value: v, idx: idx})
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].value < values[j].value
	})

	best := splitInfo{Feature: feature, Gain: math.Inf(-1)}
	parent := t.score(sumGrad, sumHess)
	hasMissing := len(values) < len(indices)

	var leftGrad, leftHess float64
	for i := 0; i < len(values)-1; i++ {
		leftGrad += t.gradients[values[i].idx]
		leftHess += t.hessians[values[i].idx]
		if values[i].value == values[i+1].value {
			continue
		}
		threshold := values[i].value + (values[i+1].value-values[i].value)/2
		if !(threshold > values[i].value) {
			threshold = values[i+1].value
		}

		// missing go right; a column without missing values defaults left
		rightGrad, rightHess := sumGrad-leftGrad, sumHess-leftHess
		t.consider(&best, leftGrad, leftHess, rightGrad, rightHess, parent, threshold, !hasMissing)

		if hasMissing {
			t.consider(&best, leftGrad+missGrad, leftHess+missHess,
				rightGrad-missGrad, rightHess-missHess, parent, threshold, true)
		}
	}

	if hasMissing && len(values) > 0 {
		last := values[len(values)-1].value
		threshold := math.Nextafter(last, math.Inf(1))
		if !math.IsInf(threshold, 0) {
			t.consider(&best, sumGrad-missGrad, sumHess-missHess,
				missGrad, missHess, parent, threshold, false)
		}
	}
	return best
}

func (t *trainer) consider(best *splitInfo, gl, hl, gr, hr, parent, threshold float64, defaultLeft bool) {
	if hl < t.params.MinChildWeight || hr < t.params.MinChildWeight {
		return
	}
	gain := t.score(gl, hl) + t.score(gr, hr) - parent
	if gain > best.Gain {
		best.Gain = gain
		best.Threshold = threshold
		best.DefaultLeft = defaultLeft
		best.valid = true
	}
}

// score is T(G)^2 / (H + lambda), the structure score of one node.
func (t *trainer) score(g, h float64) float64 {
	tg := thresholdL1(g, t.params.RegAlpha)
	return tg * tg / (h + t.params.RegLambda)
}

// calculateLeafValue is -T(G)/(H+lambda), scaled by the learning rate.
func (t *trainer) calculateLeafValue(sumGrad, sumHess float64) float64 {
	denom := sumHess + t.params.RegLambda
	if denom <= 0 {
		return 0
	}
	return -thresholdL1(sumGrad, t.params.RegAlpha) / denom * t.params.LearningRate
}

func (t *trainer) splitData(indices []int, split splitInfo) ([]int, []int) {
	var leftIndices, rightIndices []int
	for _, idx := range indices {
		v := t.rows[idx][split.Feature]
		goLeft := v < split.Threshold
		if math.IsNaN(v) {
			goLeft = split.DefaultLeft
		}
		if goLeft {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}
	return leftIndices, rightIndices
}
