package ml

import (
	"fmt"

	"github.com/pkg/errors"
)

// DecisionTree is a fitted regression tree stored as a flat node array.
// Node 0 is the root; a row goes left when its feature is <= the threshold.
type DecisionTree struct {
	schema
	Nodes []TreeNode `json:"nodes"`
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

func (dt *DecisionTree) Predict(features []float64) (float64, error) {
	if len(dt.Nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	idx := 0
	for steps := 0; steps <= len(dt.Nodes); steps++ {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
	return 0, errors.New("tree contains a cycle")
}

func (dt *DecisionTree) NumFeatures() int {
	if n := dt.schema.NumFeatures(); n > 0 {
		return n
	}
	return dt.maxFeature() + 1
}

func (dt *DecisionTree) maxFeature() int {
	max := -1
	for _, node := range dt.Nodes {
		if !node.IsLeaf && node.FeatureIdx > max {
			max = node.FeatureIdx
		}
	}
	return max
}

func (dt *DecisionTree) validate() error {
	if len(dt.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, node := range dt.Nodes {
		if node.IsLeaf {
			continue
		}
		if node.LeftChild <= 0 || node.LeftChild >= len(dt.Nodes) ||
			node.RightChild <= 0 || node.RightChild >= len(dt.Nodes) {
			return fmt.Errorf("node %d has children out of range", i)
		}
		if node.FeatureIdx < 0 {
			return fmt.Errorf("node %d splits on a negative feature", i)
		}
	}
	if width := dt.schema.NumFeatures(); width > 0 && dt.maxFeature() >= width {
		return fmt.Errorf("tree splits on feature %d but declares %d features", dt.maxFeature(), width)
	}
	return nil
}

// RandomForest averages the predictions of its trees.
type RandomForest struct {
	schema
	Trees []*DecisionTree `json:"trees"`
}

func (f *RandomForest) Predict(features []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, errors.New("forest has no trees")
	}
	sum := 0.0
	for i, tree := range f.Trees {
		v, err := tree.Predict(features)
		if err != nil {
			return 0, errors.Wrapf(err, "tree %d", i)
		}
		sum += v
	}
	return sum / float64(len(f.Trees)), nil
}

func (f *RandomForest) NumFeatures() int {
	if n := f.schema.NumFeatures(); n > 0 {
		return n
	}
	return widestTree(f.Trees)
}

func (f *RandomForest) validate() error {
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	return validateTrees(f.Trees, f.NumFeatures())
}

// GradientBoosting sums scaled tree outputs on top of the initial estimate.
type GradientBoosting struct {
	schema
	Init         float64         `json:"init"`
	LearningRate float64         `json:"learning_rate"`
	Trees        []*DecisionTree `json:"trees"`
}

func (g *GradientBoosting) Predict(features []float64) (float64, error) {
	out := g.Init
	for i, tree := range g.Trees {
		v, err := tree.Predict(features)
		if err != nil {
			return 0, errors.Wrapf(err, "stage %d", i)
		}
		out += g.LearningRate * v
	}
	return out, nil
}

func (g *GradientBoosting) NumFeatures() int {
	if n := g.schema.NumFeatures(); n > 0 {
		return n
	}
	return widestTree(g.Trees)
}

func (g *GradientBoosting) validate() error {
	if len(g.Trees) == 0 {
		return errors.New("boosting model has no stages")
	}
	if g.LearningRate <= 0 {
		return errors.New("learning_rate must be positive")
	}
	return validateTrees(g.Trees, g.NumFeatures())
}

func widestTree(trees []*DecisionTree) int {
	width := 0
	for _, tree := range trees {
		if n := tree.NumFeatures(); n > width {
			width = n
		}
	}
	return width
}

func validateTrees(trees []*DecisionTree, width int) error {
	for i, tree := range trees {
		if tree == nil {
			return fmt.Errorf("tree %d is empty", i)
		}
		if err := tree.validate(); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		if tree.maxFeature() >= width {
			return fmt.Errorf("tree %d splits on feature %d but model has %d features", i, tree.maxFeature(), width)
		}
	}
	return nil
}
