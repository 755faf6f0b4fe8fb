package predict

import (
	"fmt"

	"github.com/pkg/errors"
)

// Request error kinds. Match them with errors.Is; anything else a prediction
// returns is unclassified.
var (
	ErrMissingField     = errors.New("missing field")
	ErrInvalidEnumValue = errors.New("invalid enum value")
	ErrSchemaMismatch   = errors.New("schema mismatch")
)

// FieldError is a request error tied to one field or column. Its message is
// returned to the client unchanged.
type FieldError struct {
	Kind  error
	Field string
	msg   string
}

func (e *FieldError) Error() string {
	return e.msg
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

func missingField(field string) error {
	return &FieldError{
		Kind:  ErrMissingField,
		Field: field,
		msg:   fmt.Sprintf("Falta el campo requerido: %s", field),
	}
}

func invalidEnumValue(field, value string) error {
	return &FieldError{
		Kind:  ErrInvalidEnumValue,
		Field: field,
		msg:   fmt.Sprintf("Valor inválido en %s: %s", field, value),
	}
}

func schemaMismatch(column string) error {
	return &FieldError{
		Kind:  ErrSchemaMismatch,
		Field: column,
		msg:   fmt.Sprintf("columna faltante para el modelo: %s", column),
	}
}
