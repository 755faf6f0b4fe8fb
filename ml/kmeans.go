package ml

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// KMeans assigns a row to the centroid with the smallest Euclidean distance.
type KMeans struct {
	schema
	Centroids [][]float64 `json:"centroids"`
}

func (k *KMeans) NumFeatures() int {
	if len(k.Centroids) == 0 {
		return 0
	}
	return len(k.Centroids[0])
}

func (k *KMeans) validate() error {
	if len(k.Centroids) == 0 {
		return errors.New("kmeans has no centroids")
	}
	width := len(k.Centroids[0])
	if width == 0 {
		return errors.New("kmeans centroids are empty")
	}
	for i, c := range k.Centroids {
		if len(c) != width {
			return fmt.Errorf("centroid %d has %d dimensions, expected %d", i, len(c), width)
		}
	}
	if len(k.Names) > 0 && len(k.Names) != width {
		return fmt.Errorf("kmeans has %d feature names but %d dimensions", len(k.Names), width)
	}
	return nil
}

func (k *KMeans) Predict(features []float64) (int, error) {
	if len(k.Centroids) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(features) != k.NumFeatures() {
		return 0, fmt.Errorf("expected %d features, got %d", k.NumFeatures(), len(features))
	}
	best := 0
	bestDist := floats.Distance(features, k.Centroids[0], 2)
	for i := 1; i < len(k.Centroids); i++ {
		if d := floats.Distance(features, k.Centroids[i], 2); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}
