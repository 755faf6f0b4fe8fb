package ml

import (
	"math"
	"testing"
)

func stump(feature int, threshold, left, right float64) *DecisionTree {
	return &DecisionTree{Nodes: []TreeNode{
		{FeatureIdx: feature, Threshold: threshold, LeftChild: 1, RightChild: 2},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, Value: left, IsLeaf: true},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, Value: right, IsLeaf: true},
	}}
}

func TestDecisionTreePredict(t *testing.T) {
	model := stump(1, 0.5, 100, 250)
	if err := model.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.NumFeatures() != 2 {
		t.Fatalf("expected 2 features, got %d", model.NumFeatures())
	}

	value, err := model.Predict([]float64{9, 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 100 {
		t.Fatalf("expected left leaf 100, got %f", value)
	}
	value, err = model.Predict([]float64{9, 0.6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 250 {
		t.Fatalf("expected right leaf 250, got %f", value)
	}

	if _, err := model.Predict([]float64{1}); err == nil {
		t.Fatal("expected error for short feature row")
	}
}

func TestDecisionTreeRejectsBadChildren(t *testing.T) {
	model := &DecisionTree{Nodes: []TreeNode{{FeatureIdx: 0, LeftChild: 1, RightChild: 7}}}
	if err := model.validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRandomForestAverages(t *testing.T) {
	forest := &RandomForest{Trees: []*DecisionTree{stump(0, 1, 10, 20), stump(0, 1, 30, 40)}}
	if err := forest.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, err := forest.Predict([]float64{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 20 {
		t.Fatalf("expected 20, got %f", value)
	}
}

func TestGradientBoostingSumsStages(t *testing.T) {
	model := &GradientBoosting{
		Init:         100,
		LearningRate: 0.5,
		Trees:        []*DecisionTree{stump(0, 1, -10, 10), stump(0, 1, -4, 4)},
	}
	if err := model.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, err := model.Predict([]float64{2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(value-107) > 1e-9 {
		t.Fatalf("expected 107, got %f", value)
	}
}
