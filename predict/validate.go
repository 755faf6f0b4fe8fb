package predict

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Record is one flattened request: feature name to raw value. Values are
// strings, json.Number, bools, or lists of those.
type Record map[string]interface{}

// RequireFields fails with ErrMissingField naming the first field, in order,
// that rec does not carry.
func RequireFields(rec Record, fields []string) error {
	for _, field := range fields {
		if _, ok := rec[field]; !ok {
			return missingField(field)
		}
	}
	return nil
}

type Transaction int

const (
	Venta Transaction = 0
	Renta Transaction = 1
)

var transactions = map[string]Transaction{
	"venta": Venta,
	"renta": Renta,
}

func (t Transaction) String() string {
	if t == Renta {
		return "renta"
	}
	return "venta"
}

// ParseTransaction trims and lowercases raw and maps it to Venta or Renta.
func ParseTransaction(field string, raw interface{}) (Transaction, error) {
	value := cases.Lower(language.Und).String(strings.TrimSpace(scalarString(raw)))
	t, ok := transactions[value]
	if !ok {
		return 0, invalidEnumValue(field, value)
	}
	return t, nil
}
