package ml

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// PCA is a fitted linear projection: (x - mean) dotted with each component.
type PCA struct {
	Mean       []float64   `json:"mean"`
	Components [][]float64 `json:"components"`
}

func (p *PCA) NumFeatures() int {
	return len(p.Mean)
}

func (p *PCA) NumComponents() int {
	return len(p.Components)
}

func (p *PCA) validate() error {
	if len(p.Mean) == 0 {
		return errors.New("pca has no mean")
	}
	if len(p.Components) == 0 {
		return errors.New("pca has no components")
	}
	for i, c := range p.Components {
		if len(c) != len(p.Mean) {
			return fmt.Errorf("component %d has %d dimensions, expected %d", i, len(c), len(p.Mean))
		}
	}
	return nil
}

func (p *PCA) Project(features []float64) ([]float64, error) {
	if len(features) != len(p.Mean) {
		return nil, fmt.Errorf("expected %d features, got %d", len(p.Mean), len(features))
	}
	centered := make([]float64, len(features))
	floats.SubTo(centered, features, p.Mean)
	out := make([]float64, len(p.Components))
	for i, c := range p.Components {
		out[i] = floats.Dot(centered, c)
	}
	return out, nil
}
