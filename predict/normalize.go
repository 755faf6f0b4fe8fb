package predict

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const listSeparator = ", "

// NormalizeCategorical renders a raw value as the category string the
// encoders were fitted on. Lists are joined with ", ".
func NormalizeCategorical(raw interface{}) string {
	switch v := raw.(type) {
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = scalarString(item)
		}
		return norm.NFC.String(strings.Join(parts, listSeparator))
	case []string:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = scalarString(item)
		}
		return norm.NFC.String(strings.Join(parts, listSeparator))
	default:
		return norm.NFC.String(scalarString(raw))
	}
}

func scalarString(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return "None"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

// NumericValue converts a raw value to a finite float64. Form bodies deliver
// numbers as strings; a single-element list is unwrapped.
func NumericValue(column string, raw interface{}) (float64, error) {
	f, err := numericValue(column, raw)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalidNumber(column, raw)
	}
	return f, nil
}

func numericValue(column string, raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, invalidNumber(column, raw)
		}
		return f, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, invalidNumber(column, raw)
		}
		return f, nil
	case []string:
		if len(v) == 1 {
			return NumericValue(column, v[0])
		}
	case []interface{}:
		if len(v) == 1 {
			return NumericValue(column, v[0])
		}
	}
	return 0, invalidNumber(column, raw)
}

func invalidNumber(column string, raw interface{}) error {
	return fmt.Errorf("valor numérico inválido en %s: %v", column, raw)
}
