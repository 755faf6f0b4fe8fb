package predict

import (
	"fmt"

	"github.com/pkg/errors"

	"prendaml/ml"
)

// Source yields artifact payloads by name.
type Source interface {
	Read(name string) ([]byte, error)
}

type model struct {
	artifact  string
	regressor ml.Regressor
	clusterer ml.Clusterer
	order     []string
}

// Variant is one loaded prediction endpoint. It is immutable once built and
// safe for concurrent use.
type Variant struct {
	cfg       VariantConfig
	required  []string
	encoder   categoricalEncoder
	scaler    ml.Scaler
	models    map[string]*model
	projector ml.Projector
}

// Result is the outcome of one prediction.
type Result struct {
	Variant     string             `json:"variant"`
	Output      string             `json:"output"`
	Price       float64            `json:"price"`
	Transaction string             `json:"transaction,omitempty"`
	Cluster     int                `json:"cluster"`
	Projection  []float64          `json:"projection,omitempty"`
	Model       string             `json:"model"`
	Features    map[string]float64 `json:"features"`
}

func NewVariant(cfg VariantConfig, src Source) (*Variant, error) {
	v := &Variant{
		cfg:      cfg,
		required: cfg.RequiredFields(),
		models:   make(map[string]*model, len(cfg.Models)),
	}

	var err error
	if v.encoder, err = loadCategoricalEncoder(cfg, src); err != nil {
		return nil, err
	}
	if v.scaler, err = loadScaler(cfg, src); err != nil {
		return nil, err
	}

	for key, name := range cfg.Models {
		m, err := v.loadModel(name, src)
		if err != nil {
			return nil, errors.Wrapf(err, "model %s", key)
		}
		v.models[key] = m
	}

	if cfg.Output == OutputCluster {
		payload, err := src.Read(cfg.Projector)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", cfg.Projector)
		}
		if v.projector, err = ml.LoadProjector(payload); err != nil {
			return nil, errors.Wrapf(err, "load %s", cfg.Projector)
		}
		width := v.models[defaultModelKey].clusterer.NumFeatures()
		if v.projector.NumFeatures() != width {
			return nil, fmt.Errorf("projector expects %d features, clusterer %d", v.projector.NumFeatures(), width)
		}
		if v.projector.NumComponents() < 2 {
			return nil, errors.New("projector must have at least two components")
		}
	}
	return v, nil
}

func (v *Variant) loadModel(name string, src Source) (*model, error) {
	payload, err := src.Read(name)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	m := &model{artifact: name}
	var names []string
	var width int
	if v.cfg.Output == OutputCluster {
		if m.clusterer, err = ml.LoadClusterer(payload); err != nil {
			return nil, errors.Wrapf(err, "load %s", name)
		}
		names, width = m.clusterer.FeatureNames(), m.clusterer.NumFeatures()
	} else {
		if m.regressor, err = ml.LoadRegressor(payload); err != nil {
			return nil, errors.Wrapf(err, "load %s", name)
		}
		names, width = m.regressor.FeatureNames(), m.regressor.NumFeatures()
	}

	m.order = names
	if len(m.order) == 0 {
		m.order = v.cfg.FeatureOrder
	}
	if len(m.order) == 0 {
		return nil, fmt.Errorf("%s has no feature names and the variant declares no feature_order", name)
	}
	if len(m.order) != width {
		return nil, fmt.Errorf("%s expects %d features but the order lists %d", name, width, len(m.order))
	}
	return m, nil
}

func (v *Variant) Config() VariantConfig {
	return v.cfg
}

func (v *Variant) Name() string {
	return v.cfg.Name
}

func (v *Variant) Route() string {
	return v.cfg.Route
}

func (v *Variant) Body() string {
	return v.cfg.Body
}

// Predict validates rec, replays the training encoding, picks the model and
// runs it on exactly one row.
func (v *Variant) Predict(rec Record) (*Result, error) {
	if err := RequireFields(rec, v.required); err != nil {
		return nil, err
	}

	var tx Transaction
	if v.cfg.TransactionField != "" {
		var err error
		if tx, err = ParseTransaction(v.cfg.TransactionField, rec[v.cfg.TransactionField]); err != nil {
			return nil, err
		}
	}

	columns, err := v.encode(rec, tx)
	if err != nil {
		return nil, err
	}

	key := defaultModelKey
	if v.cfg.Selection == SelectionTransaction {
		key = tx.String()
	}
	m := v.models[key]

	row, err := Assemble(columns, m.order)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Variant:  v.cfg.Name,
		Output:   v.cfg.Output,
		Model:    m.artifact,
		Features: make(map[string]float64, len(row)),
	}
	for i, name := range m.order {
		result.Features[name] = row[i]
	}
	if v.cfg.Selection == SelectionTransaction {
		result.Transaction = tx.String()
	}

	switch v.cfg.Output {
	case OutputCluster:
		if result.Cluster, err = m.clusterer.Predict(row); err != nil {
			return nil, err
		}
		if result.Projection, err = v.projector.Project(row); err != nil {
			return nil, err
		}
	default:
		if result.Price, err = m.regressor.Predict(row); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (v *Variant) encode(rec Record, tx Transaction) (map[string]float64, error) {
	columns := make(map[string]float64, len(v.cfg.Categorical)+len(v.cfg.Numeric)+1)

	if v.encoder != nil {
		values := make(map[string]string, len(v.cfg.Categorical))
		for _, col := range v.cfg.Categorical {
			values[col] = NormalizeCategorical(rec[col])
		}
		encoded, err := v.encoder.encode(values)
		if err != nil {
			return nil, err
		}
		for name, value := range encoded {
			columns[name] = value
		}
	}

	for _, col := range v.cfg.Numeric {
		if col == v.cfg.TransactionField {
			continue
		}
		value, err := NumericValue(col, rec[col])
		if err != nil {
			return nil, err
		}
		columns[col] = value
	}

	if v.cfg.TransactionField != "" {
		columns[v.cfg.TransactionField] = float64(tx)
	}

	if v.scaler != nil {
		names := v.scaler.Columns()
		raw := make([]float64, len(names))
		for i, name := range names {
			raw[i] = columns[name]
		}
		scaled, err := v.scaler.Transform(raw)
		if err != nil {
			return nil, err
		}
		for i, name := range names {
			columns[name] = scaled[i]
		}
	}
	return columns, nil
}
