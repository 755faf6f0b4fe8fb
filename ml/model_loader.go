package ml

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

const (
	KindLabelEncoder     = "label_encoder"
	KindOrdinalEncoder   = "ordinal_encoder"
	KindOneHotEncoder    = "one_hot_encoder"
	KindStandardScaler   = "standard_scaler"
	KindMinMaxScaler     = "min_max_scaler"
	KindLinearRegression = "linear_regression"
	KindDecisionTree     = "decision_tree"
	KindRandomForest     = "random_forest"
	KindGradientBoosting = "gradient_boosting"
	KindKMeans           = "kmeans"
	KindPCA              = "pca"
)

type envelope struct {
	Kind string `json:"kind"`
}

// Kind reports the artifact kind declared in payload.
func Kind(payload []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", errors.Wrap(err, "decode artifact")
	}
	if env.Kind == "" {
		return "", errors.New("artifact has no kind")
	}
	return env.Kind, nil
}

type validator interface {
	validate() error
}

func decode(payload []byte, v validator) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Wrap(err, "decode artifact")
	}
	return v.validate()
}

func LoadRegressor(payload []byte) (Regressor, error) {
	kind, err := Kind(payload)
	if err != nil {
		return nil, err
	}
	var model interface {
		Regressor
		validator
	}
	switch kind {
	case KindLinearRegression:
		model = &LinearRegression{}
	case KindDecisionTree:
		model = &DecisionTree{}
	case KindRandomForest:
		model = &RandomForest{}
	case KindGradientBoosting:
		model = &GradientBoosting{}
	default:
		return nil, fmt.Errorf("unsupported regressor kind %q", kind)
	}
	if err := decode(payload, model); err != nil {
		return nil, errors.Wrap(err, kind)
	}
	return model, nil
}

func LoadClusterer(payload []byte) (Clusterer, error) {
	kind, err := Kind(payload)
	if err != nil {
		return nil, err
	}
	if kind != KindKMeans {
		return nil, fmt.Errorf("unsupported clusterer kind %q", kind)
	}
	model := &KMeans{}
	if err := decode(payload, model); err != nil {
		return nil, errors.Wrap(err, kind)
	}
	return model, nil
}

func LoadProjector(payload []byte) (Projector, error) {
	kind, err := Kind(payload)
	if err != nil {
		return nil, err
	}
	if kind != KindPCA {
		return nil, fmt.Errorf("unsupported projector kind %q", kind)
	}
	model := &PCA{}
	if err := decode(payload, model); err != nil {
		return nil, errors.Wrap(err, kind)
	}
	return model, nil
}

func LoadScaler(payload []byte) (Scaler, error) {
	kind, err := Kind(payload)
	if err != nil {
		return nil, err
	}
	var scaler interface {
		Scaler
		validator
	}
	switch kind {
	case KindStandardScaler:
		scaler = &StandardScaler{}
	case KindMinMaxScaler:
		scaler = &MinMaxScaler{}
	default:
		return nil, fmt.Errorf("unsupported scaler kind %q", kind)
	}
	if err := decode(payload, scaler); err != nil {
		return nil, errors.Wrap(err, kind)
	}
	return scaler, nil
}

type labelEncoderFile struct {
	Classes []string `json:"classes"`
}

func LoadLabelEncoder(payload []byte) (*LabelEncoder, error) {
	kind, err := Kind(payload)
	if err != nil {
		return nil, err
	}
	if kind != KindLabelEncoder {
		return nil, fmt.Errorf("expected %s, got %q", KindLabelEncoder, kind)
	}
	var file labelEncoderFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, errors.Wrap(err, "decode label encoder")
	}
	return NewLabelEncoder(file.Classes)
}

type tableEncoderFile struct {
	Columns    []string   `json:"columns"`
	Categories [][]string `json:"categories"`
}

func LoadTableEncoder(payload []byte) (TableEncoder, error) {
	kind, err := Kind(payload)
	if err != nil {
		return nil, err
	}
	var file tableEncoderFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, errors.Wrap(err, "decode table encoder")
	}
	switch kind {
	case KindOrdinalEncoder:
		return NewOrdinalEncoder(file.Columns, file.Categories)
	case KindOneHotEncoder:
		return NewOneHotEncoder(file.Columns, file.Categories)
	default:
		return nil, fmt.Errorf("unsupported table encoder kind %q", kind)
	}
}
