package xgboost

import (
	"fmt"
	"math"
)

// Node is one node of a regression tree. Leaves have LeftChild == -1.
type Node struct {
	LeftChild    int     `json:"left"`
	RightChild   int     `json:"right"`
	SplitFeature int     `json:"feature"`
	Threshold    float64 `json:"threshold"`    // x < Threshold goes left
	DefaultLeft  bool    `json:"default_left"` // direction for NaN
	Gain         float64 `json:"gain,omitempty"`
	LeafValue    float64 `json:"leaf,omitempty"` // already scaled by the learning rate
	Cover        float64 `json:"cover"`          // sum of hessians
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1
}

// Tree is a single boosted regression tree stored as a flat node slice with
// the root at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict returns the leaf value reached by features.
func (t *Tree) Predict(features []float64) float64 {
	return t.Nodes[t.leafIndex(features)].LeafValue
}

func (t *Tree) leafIndex(features []float64) int {
	nodeID := 0
	for {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return nodeID
		}
		v := features[node.SplitFeature]
		switch {
		case math.IsNaN(v):
			if node.DefaultLeft {
				nodeID = node.LeftChild
			} else {
				nodeID = node.RightChild
			}
		case v < node.Threshold:
			nodeID = node.LeftChild
		default:
			nodeID = node.RightChild
		}
	}
}

// NumLeaves counts leaf nodes.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(id int) int
	walk = func(id int) int {
		node := &t.Nodes[id]
		if node.IsLeaf() {
			return 0
		}
		return 1 + max(walk(node.LeftChild), walk(node.RightChild))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// validate checks child indices and split features so a loaded tree cannot
// loop or index out of range during prediction.
func (t *Tree) validate(nFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i := range t.Nodes {
		node := &t.Nodes[i]
		if node.IsLeaf() {
			continue
		}
		if node.LeftChild <= i || node.LeftChild >= len(t.Nodes) ||
			node.RightChild <= i || node.RightChild >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children (%d, %d)", i, node.LeftChild, node.RightChild)
		}
		if node.SplitFeature < 0 || node.SplitFeature >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d, model has %d features", i, node.SplitFeature, nFeatures)
		}
	}
	return nil
}

// Booster is the fitted tree ensemble.
type Booster struct {
	Trees      []Tree  `json:"trees"`
	BaseMargin float64 `json:"base_margin"`
	NFeatures  int     `json:"n_features"`
	// BestIteration is the last round kept by early stopping, or the last
	// round trained.
	BestIteration int     `json:"best_iteration"`
	BestScore     float64 `json:"best_score,omitempty"`
}

// Margin returns the raw (log-odds) score of one row.
func (b *Booster) Margin(features []float64) float64 {
	m := b.BaseMargin
	for i := range b.Trees {
		m += b.Trees[i].Predict(features)
	}
	return m
}

func (b *Booster) validate() error {
	if b.NFeatures <= 0 {
		return fmt.Errorf("n_features must be positive, got %d", b.NFeatures)
	}
	for i := range b.Trees {
		if err := b.Trees[i].validate(b.NFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
