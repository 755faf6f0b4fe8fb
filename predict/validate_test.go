package predict

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestParseTransaction(t *testing.T) {
	tests := []struct {
		raw     interface{}
		want    Transaction
		wantErr bool
	}{
		{raw: "venta", want: Venta},
		{raw: "RENTA", want: Renta},
		{raw: " Renta\t", want: Renta},
		{raw: "lease", wantErr: true},
		{raw: json.Number("1"), wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTransaction("opcionesTipoTransaccion", tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidEnumValue) {
				t.Errorf("%v: expected ErrInvalidEnumValue, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%v: unexpected error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%v: expected %s, got %s", tt.raw, tt.want, got)
		}
	}
}

func TestNormalizeCategorical(t *testing.T) {
	tests := []struct {
		raw  interface{}
		want string
	}{
		{raw: []interface{}{"S", "M"}, want: "S, M"},
		{raw: []string{"rojo", "azul"}, want: "rojo, azul"},
		{raw: "rojo", want: "rojo"},
		{raw: true, want: "True"},
		{raw: json.Number("3.0"), want: "3.0"},
		{raw: 2.5, want: "2.5"},
		{raw: "clásico", want: "clásico"},
	}
	for _, tt := range tests {
		if got := NormalizeCategorical(tt.raw); got != tt.want {
			t.Errorf("%v: expected %q, got %q", tt.raw, tt.want, got)
		}
	}
}

func TestNumericValue(t *testing.T) {
	if v, err := NumericValue("largo", " 12.5 "); err != nil || v != 12.5 {
		t.Fatalf("expected 12.5, got %v (%v)", v, err)
	}
	if v, err := NumericValue("largo", []string{"7"}); err != nil || v != 7 {
		t.Fatalf("expected 7, got %v (%v)", v, err)
	}
	if v, err := NumericValue("usado", false); err != nil || v != 0 {
		t.Fatalf("expected 0, got %v (%v)", v, err)
	}
	if _, err := NumericValue("largo", []string{"1", "2"}); err == nil {
		t.Fatal("expected error for multi-valued number")
	}
	for _, raw := range []interface{}{"NaN", "Inf", "-inf", []string{"nan"}, math.NaN(), math.Inf(1)} {
		if _, err := NumericValue("precio", raw); err == nil {
			t.Errorf("%v: expected error for non-finite number", raw)
		}
	}
}

func TestParseTransactionNull(t *testing.T) {
	_, err := ParseTransaction("opcionesTipoTransaccion", nil)
	if err == nil || err.Error() != "Valor inválido en opcionesTipoTransaccion: none" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireFieldsOrder(t *testing.T) {
	err := RequireFields(Record{"b": 1}, []string{"a", "b", "c"})
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "a" {
		t.Fatalf("expected missing a, got %v", err)
	}
	if err := RequireFields(Record{"a": nil}, []string{"a"}); err != nil {
		t.Fatalf("present null field must pass: %v", err)
	}
}
