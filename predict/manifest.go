package predict

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ManifestName is the artifact every source must provide at its root.
const ManifestName = "manifest.yaml"

const (
	BodyJSON = "json"
	BodyForm = "form"

	StrategyShared      = "shared"
	StrategyPerColumn   = "per_column"
	StrategyMultiColumn = "multi_column"

	SelectionSingle      = "single"
	SelectionTransaction = "transaction"

	OutputPrice   = "price"
	OutputCluster = "cluster"

	defaultModelKey = "default"
)

type Manifest struct {
	Variants []VariantConfig `yaml:"variants"`
}

// VariantConfig declares one prediction endpoint and the artifacts behind it.
type VariantConfig struct {
	Name             string            `yaml:"name" json:"name"`
	Route            string            `yaml:"route" json:"route"`
	Body             string            `yaml:"body" json:"body"`
	Fields           []string          `yaml:"fields" json:"fields"`
	TransactionField string            `yaml:"transaction_field" json:"transaction_field,omitempty"`
	Categorical      []string          `yaml:"categorical" json:"categorical"`
	Numeric          []string          `yaml:"numeric" json:"numeric"`
	Encoding         EncodingConfig    `yaml:"encoding" json:"encoding"`
	Selection        string            `yaml:"selection" json:"selection"`
	Models           map[string]string `yaml:"models" json:"models"`
	Projector        string            `yaml:"projector" json:"projector,omitempty"`
	Output           string            `yaml:"output" json:"output"`
	FeatureOrder     []string          `yaml:"feature_order" json:"feature_order,omitempty"`
}

type EncodingConfig struct {
	Strategy string            `yaml:"strategy" json:"strategy"`
	Sentinel bool              `yaml:"sentinel" json:"sentinel"`
	Encoder  string            `yaml:"encoder" json:"encoder,omitempty"`
	Encoders map[string]string `yaml:"encoders" json:"encoders,omitempty"`
	Scaler   string            `yaml:"scaler" json:"scaler,omitempty"`
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "decode manifest")
	}
	if len(m.Variants) == 0 {
		return nil, errors.New("manifest declares no variants")
	}
	for i := range m.Variants {
		m.Variants[i].applyDefaults()
		if err := m.Variants[i].validate(); err != nil {
			return nil, errors.Wrapf(err, "variant %q", m.Variants[i].Name)
		}
	}
	return &m, nil
}

func (c *VariantConfig) applyDefaults() {
	if c.Body == "" {
		c.Body = BodyJSON
	}
	if c.Selection == "" {
		c.Selection = SelectionSingle
	}
	if c.Output == "" {
		c.Output = OutputPrice
	}
	if c.Route != "" && !strings.HasPrefix(c.Route, "/") {
		c.Route = "/" + c.Route
	}
}

func (c *VariantConfig) validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.Route == "" {
		return errors.New("route is required")
	}
	if c.Body != BodyJSON && c.Body != BodyForm {
		return fmt.Errorf("unsupported body %q", c.Body)
	}
	if len(c.Fields) == 0 {
		return errors.New("fields are required")
	}
	declared := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		declared[f] = true
	}
	for _, col := range append(append([]string(nil), c.Categorical...), c.Numeric...) {
		if !declared[col] && col != c.TransactionField {
			return fmt.Errorf("column %s is not a declared field", col)
		}
	}

	switch c.Encoding.Strategy {
	case StrategyShared, StrategyMultiColumn:
		if len(c.Categorical) > 0 && c.Encoding.Encoder == "" {
			return fmt.Errorf("strategy %s needs an encoder", c.Encoding.Strategy)
		}
	case StrategyPerColumn:
		for _, col := range c.Categorical {
			if c.Encoding.Encoders[col] == "" {
				return fmt.Errorf("no encoder for column %s", col)
			}
		}
	default:
		return fmt.Errorf("unsupported encoding strategy %q", c.Encoding.Strategy)
	}

	switch c.Selection {
	case SelectionSingle:
		if c.Models[defaultModelKey] == "" {
			return errors.New("single selection needs a default model")
		}
	case SelectionTransaction:
		if c.TransactionField == "" {
			return errors.New("transaction selection needs transaction_field")
		}
		for _, t := range []Transaction{Venta, Renta} {
			if c.Models[t.String()] == "" {
				return fmt.Errorf("no model for %s", t)
			}
		}
	default:
		return fmt.Errorf("unsupported selection %q", c.Selection)
	}

	switch c.Output {
	case OutputPrice:
	case OutputCluster:
		if c.Selection != SelectionSingle {
			return errors.New("cluster output needs single selection")
		}
		if c.Projector == "" {
			return errors.New("cluster output needs a projector")
		}
	default:
		return fmt.Errorf("unsupported output %q", c.Output)
	}
	return nil
}

// RequiredFields lists the fields a request must carry, in validation order.
func (c VariantConfig) RequiredFields() []string {
	fields := append([]string(nil), c.Fields...)
	if c.TransactionField != "" {
		fields = append(fields, c.TransactionField)
	}
	return fields
}
