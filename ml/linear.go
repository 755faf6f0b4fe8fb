package ml

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

type LinearRegression struct {
	schema
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (m *LinearRegression) NumFeatures() int {
	return len(m.Coef)
}

func (m *LinearRegression) validate() error {
	if len(m.Coef) == 0 {
		return errors.New("linear model has no coefficients")
	}
	if len(m.Names) > 0 && len(m.Names) != len(m.Coef) {
		return fmt.Errorf("linear model has %d feature names but %d coefficients", len(m.Names), len(m.Coef))
	}
	return nil
}

func (m *LinearRegression) Predict(features []float64) (float64, error) {
	if len(features) != len(m.Coef) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.Coef), len(features))
	}
	return floats.Dot(m.Coef, features) + m.Intercept, nil
}
