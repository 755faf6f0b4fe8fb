package ml

import (
	"fmt"

	"github.com/pkg/errors"
)

// StandardScaler centers each column on its training mean and divides by the
// training standard deviation. A zero scale is treated as one.
type StandardScaler struct {
	ColumnNames []string  `json:"columns"`
	Mean        []float64 `json:"mean"`
	Scale       []float64 `json:"scale"`
}

func (s *StandardScaler) Columns() []string {
	return s.ColumnNames
}

func (s *StandardScaler) validate() error {
	if len(s.ColumnNames) == 0 {
		return errors.New("scaler has no columns")
	}
	if len(s.Mean) != len(s.ColumnNames) || len(s.Scale) != len(s.ColumnNames) {
		return errors.New("columns/mean/scale length mismatch")
	}
	return nil
}

func (s *StandardScaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.ColumnNames) {
		return nil, fmt.Errorf("expected %d numeric values, got %d", len(s.ColumnNames), len(values))
	}
	out := make([]float64, len(values))
	for i, v := range values {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

// MinMaxScaler maps each column into [0, 1] using the training minimum and maximum.
type MinMaxScaler struct {
	ColumnNames []string  `json:"columns"`
	DataMin     []float64 `json:"data_min"`
	DataMax     []float64 `json:"data_max"`
}

func (s *MinMaxScaler) Columns() []string {
	return s.ColumnNames
}

func (s *MinMaxScaler) validate() error {
	if len(s.ColumnNames) == 0 {
		return errors.New("scaler has no columns")
	}
	if len(s.DataMin) != len(s.ColumnNames) || len(s.DataMax) != len(s.ColumnNames) {
		return errors.New("columns/data_min/data_max length mismatch")
	}
	return nil
}

func (s *MinMaxScaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.ColumnNames) {
		return nil, fmt.Errorf("expected %d numeric values, got %d", len(s.ColumnNames), len(values))
	}
	return NormalizeVector(values, s.DataMin, s.DataMax)
}

func NormalizeFeature(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

func NormalizeVector(values []float64, mins []float64, maxs []float64) ([]float64, error) {
	if len(values) != len(mins) || len(values) != len(maxs) {
		return nil, errors.New("values/mins/maxs length mismatch")
	}
	result := make([]float64, len(values))
	for i := range values {
		result[i] = NormalizeFeature(values[i], mins[i], maxs[i])
	}
	return result, nil
}
