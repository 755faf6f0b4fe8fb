package ml

// Sentinel is the reserved category that stands in for any value an encoder
// never saw during training.
const Sentinel = "__desconocido__"

// Regressor predicts a single continuous value for one feature row.
type Regressor interface {
	Predict(features []float64) (float64, error)
	FeatureNames() []string
	NumFeatures() int
}

// Clusterer assigns one feature row to a learned group.
type Clusterer interface {
	Predict(features []float64) (int, error)
	FeatureNames() []string
	NumFeatures() int
}

// Projector maps a feature row into a lower dimensional space.
type Projector interface {
	Project(features []float64) ([]float64, error)
	NumFeatures() int
	NumComponents() int
}

// Scaler rescales numeric columns the way they were rescaled at training time.
type Scaler interface {
	Columns() []string
	Transform(values []float64) ([]float64, error)
}

// TableEncoder encodes several categorical columns at once. Transform
// receives the values in Columns() order and returns named output columns.
type TableEncoder interface {
	Columns() []string
	Knows(column int, value string) bool
	Transform(values []string) (map[string]float64, error)
	WithCategory(category string) TableEncoder
}

type schema struct {
	Names []string `json:"feature_names,omitempty"`
	Width int      `json:"n_features_in,omitempty"`
}

func (s schema) FeatureNames() []string {
	return s.Names
}

func (s schema) NumFeatures() int {
	if s.Width > 0 {
		return s.Width
	}
	return len(s.Names)
}
