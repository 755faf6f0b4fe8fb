package predict

import (
	"fmt"

	"github.com/pkg/errors"

	"prendaml/ml"
)

// categoricalEncoder replays a fitted categorical encoding. Values arrive
// already normalized, keyed by column.
type categoricalEncoder interface {
	encode(values map[string]string) (map[string]float64, error)
}

func unknownCategory(column, value string) error {
	return fmt.Errorf("valor desconocido %q en la columna %s", value, column)
}

// sharedEncoder applies one label encoder to every categorical column.
type sharedEncoder struct {
	columns  []string
	encoder  *ml.LabelEncoder
	sentinel bool
}

func (e *sharedEncoder) encode(values map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(e.columns))
	for _, col := range e.columns {
		code, err := transformLabel(e.encoder, col, values[col], e.sentinel)
		if err != nil {
			return nil, err
		}
		out[col] = float64(code)
	}
	return out, nil
}

// perColumnEncoder holds one label encoder per categorical column.
type perColumnEncoder struct {
	columns  []string
	encoders map[string]*ml.LabelEncoder
	sentinel bool
}

func (e *perColumnEncoder) encode(values map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(e.columns))
	for _, col := range e.columns {
		code, err := transformLabel(e.encoders[col], col, values[col], e.sentinel)
		if err != nil {
			return nil, err
		}
		out[col] = float64(code)
	}
	return out, nil
}

func transformLabel(enc *ml.LabelEncoder, column, value string, sentinel bool) (int, error) {
	if !enc.Knows(value) {
		if !sentinel {
			return 0, unknownCategory(column, value)
		}
		value = ml.Sentinel
	}
	return enc.Transform(value)
}

// tableEncoder passes every categorical column through one multi-column encoder.
type tableEncoder struct {
	encoder  ml.TableEncoder
	sentinel bool
}

func (e *tableEncoder) encode(values map[string]string) (map[string]float64, error) {
	columns := e.encoder.Columns()
	row := make([]string, len(columns))
	for i, col := range columns {
		value := values[col]
		if !e.encoder.Knows(i, value) {
			if !e.sentinel {
				return nil, unknownCategory(col, value)
			}
			value = ml.Sentinel
		}
		row[i] = value
	}
	return e.encoder.Transform(row)
}

func loadCategoricalEncoder(cfg VariantConfig, src Source) (categoricalEncoder, error) {
	enc := cfg.Encoding
	if len(cfg.Categorical) == 0 {
		return nil, nil
	}
	switch enc.Strategy {
	case StrategyShared:
		label, err := readLabelEncoder(src, enc.Encoder, enc.Sentinel)
		if err != nil {
			return nil, err
		}
		return &sharedEncoder{columns: cfg.Categorical, encoder: label, sentinel: enc.Sentinel}, nil

	case StrategyPerColumn:
		encoders := make(map[string]*ml.LabelEncoder, len(cfg.Categorical))
		for _, col := range cfg.Categorical {
			label, err := readLabelEncoder(src, enc.Encoders[col], enc.Sentinel)
			if err != nil {
				return nil, errors.Wrapf(err, "column %s", col)
			}
			encoders[col] = label
		}
		return &perColumnEncoder{columns: cfg.Categorical, encoders: encoders, sentinel: enc.Sentinel}, nil

	case StrategyMultiColumn:
		payload, err := src.Read(enc.Encoder)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", enc.Encoder)
		}
		table, err := ml.LoadTableEncoder(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", enc.Encoder)
		}
		if err := sameColumns(table.Columns(), cfg.Categorical); err != nil {
			return nil, errors.Wrapf(err, "encoder %s", enc.Encoder)
		}
		if enc.Sentinel {
			table = table.WithCategory(ml.Sentinel)
		}
		return &tableEncoder{encoder: table, sentinel: enc.Sentinel}, nil
	}
	return nil, fmt.Errorf("unsupported encoding strategy %q", enc.Strategy)
}

// readLabelEncoder loads a label encoder and, when sentinel is set, adds the
// sentinel class once so requests never have to.
func readLabelEncoder(src Source, name string, sentinel bool) (*ml.LabelEncoder, error) {
	payload, err := src.Read(name)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	label, err := ml.LoadLabelEncoder(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}
	if sentinel {
		label = label.WithClass(ml.Sentinel)
	}
	return label, nil
}

func loadScaler(cfg VariantConfig, src Source) (ml.Scaler, error) {
	name := cfg.Encoding.Scaler
	if name == "" {
		return nil, nil
	}
	payload, err := src.Read(name)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	scaler, err := ml.LoadScaler(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}
	numeric := make(map[string]bool, len(cfg.Numeric))
	for _, col := range cfg.Numeric {
		numeric[col] = true
	}
	for _, col := range scaler.Columns() {
		if !numeric[col] {
			return nil, fmt.Errorf("scaler %s uses column %s which is not numeric", name, col)
		}
	}
	return scaler, nil
}

func sameColumns(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("expects columns %v, variant declares %v", got, want)
	}
	declared := make(map[string]bool, len(want))
	for _, col := range want {
		declared[col] = true
	}
	for _, col := range got {
		if !declared[col] {
			return fmt.Errorf("expects column %s which the variant does not declare", col)
		}
	}
	return nil
}
