package predict

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

type dirSource string

func (d dirSource) Read(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(string(d), filepath.FromSlash(name)))
}

type mapSource map[string]string

func (m mapSource) Read(name string) ([]byte, error) {
	payload, ok := m[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(payload), nil
}

const bundle = dirSource("../models")

func loadBundle(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := Load(bundle)
	if err != nil {
		t.Fatalf("failed to load bundle: %v", err)
	}
	return snap
}

func variant(t *testing.T, snap *Snapshot, name string) *Variant {
	t.Helper()
	v, ok := snap.ByName(name)
	if !ok {
		t.Fatalf("variant %s not loaded", name)
	}
	return v
}

func dressRecord() Record {
	return Record{
		"tipoCola":                "larga",
		"altura":                  "media",
		"estilo":                  "clasico",
		"talla":                   "M",
		"tipoCuello":              "v",
		"color":                   "rojo",
		"tipoHombro":              "tirantes",
		"nombre":                  "Vestido Luna",
		"descripcion":             "Vestido de gala",
		"opcionesTipoTransaccion": "venta",
	}
}

func assertPrice(t *testing.T, result *Result, want float64) {
	t.Helper()
	if math.Abs(result.Price-want) > 1e-6 {
		t.Fatalf("expected price %f, got %f", want, result.Price)
	}
}

func TestLoadBundleRoutes(t *testing.T) {
	snap := loadBundle(t)
	if len(snap.Variants) != 4 {
		t.Fatalf("expected 4 variants, got %d", len(snap.Variants))
	}
	for _, route := range []string{"/predecir", "/predecir_precio", "/predict", "/predict_cluster"} {
		if _, ok := snap.ByRoute(route); !ok {
			t.Fatalf("route %s not registered", route)
		}
	}
}

func TestSharedEncoderSelectsModelByTransaction(t *testing.T) {
	v := variant(t, loadBundle(t), "prendas")

	result, err := v.Predict(dressRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertPrice(t, result, 2597)
	if result.Transaction != "venta" || result.Model != "modelo_venta.json" {
		t.Fatalf("unexpected selection: %+v", result)
	}

	rec := dressRecord()
	rec["opcionesTipoTransaccion"] = "  RENTA "
	result, err = v.Predict(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertPrice(t, result, 564)
	if result.Transaction != "renta" {
		t.Fatalf("expected renta, got %s", result.Transaction)
	}
}

func TestMissingFieldNamesFirstAbsentField(t *testing.T) {
	v := variant(t, loadBundle(t), "prendas")

	rec := dressRecord()
	delete(rec, "color")
	delete(rec, "nombre")
	_, err := v.Predict(rec)
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	if err.Error() != "Falta el campo requerido: color" {
		t.Fatalf("unexpected message: %s", err)
	}

	rec = dressRecord()
	delete(rec, "opcionesTipoTransaccion")
	_, err = v.Predict(rec)
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "opcionesTipoTransaccion" {
		t.Fatalf("expected missing transaction field, got %v", err)
	}
}

func TestInvalidTransaction(t *testing.T) {
	v := variant(t, loadBundle(t), "prendas")
	rec := dressRecord()
	rec["opcionesTipoTransaccion"] = "lease"
	_, err := v.Predict(rec)
	if !errors.Is(err, ErrInvalidEnumValue) {
		t.Fatalf("expected ErrInvalidEnumValue, got %v", err)
	}
	if !strings.Contains(err.Error(), "lease") {
		t.Fatalf("expected value in message: %s", err)
	}
}

func TestUnseenCategoryMapsToSentinel(t *testing.T) {
	v := variant(t, loadBundle(t), "prendas")
	rec := dressRecord()
	rec["color"] = "turquesa"
	result, err := v.Predict(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertPrice(t, result, 2642)

	// A second unseen value must land on the same code.
	rec["color"] = "fucsia"
	again, err := v.Predict(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Features["color"] != result.Features["color"] {
		t.Fatalf("expected one sentinel code, got %v and %v", result.Features["color"], again.Features["color"])
	}
}

func TestListValuesAreJoined(t *testing.T) {
	v := variant(t, loadBundle(t), "prendas")
	rec := dressRecord()
	rec["talla"] = []interface{}{"S", "M"}
	result, err := v.Predict(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertPrice(t, result, 2627)
}

func TestPerColumnEncoders(t *testing.T) {
	v := variant(t, loadBundle(t), "precio_prenda")
	rec := Record{
		"talla":                   "M",
		"color":                   "rojo",
		"estilo":                  "moderno",
		"tipoCuello":              "v",
		"largo":                   "120",
		"opcionesTipoTransaccion": "venta",
	}

	result, err := v.Predict(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertPrice(t, result, 2400)

	rec["opcionesTipoTransaccion"] = "Renta"
	result, err = v.Predict(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertPrice(t, result, 340)
	if result.Features["opcionesTipoTransaccion"] != 1 {
		t.Fatalf("expected transaction code 1, got %v", result.Features["opcionesTipoTransaccion"])
	}

	rec["opcionesTipoTransaccion"] = "venta"
	rec["largo"] = "80"
	rec["color"] = "dorado"
	result, err = v.Predict(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertPrice(t, result, 1750)

	rec["largo"] = "largo"
	if _, err := v.Predict(rec); err == nil {
		t.Fatal("expected error for non numeric largo")
	}
}

func TestMultiColumnEncoderWithScaler(t *testing.T) {
	v := variant(t, loadBundle(t), "precio")
	rec := Record{
		"talla":      "S",
		"color":      "negro",
		"estilo":     "moderno",
		"largo":      json.Number("120"),
		"antiguedad": json.Number("1"),
	}
	result, err := v.Predict(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertPrice(t, result, 955)
	if result.Features["largo"] != 1 || result.Features["antiguedad"] != -1 {
		t.Fatalf("expected scaled numeric columns, got %v", result.Features)
	}
	if result.Transaction != "" {
		t.Fatalf("single model variant must not report a transaction, got %q", result.Transaction)
	}

	rec["talla"] = "XXL"
	if _, err := v.Predict(rec); err != nil {
		t.Fatalf("unseen category must not fail: %v", err)
	}
}

func TestClusterVariant(t *testing.T) {
	v := variant(t, loadBundle(t), "cluster")
	result, err := v.Predict(Record{
		"estilo": "vintage",
		"color":  "rojo",
		"precio": json.Number("2800"),
		"largo":  json.Number("150"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cluster != 2 {
		t.Fatalf("expected cluster 2, got %d", result.Cluster)
	}
	if len(result.Projection) != 2 ||
		math.Abs(result.Projection[0]-1.021) > 1e-9 ||
		math.Abs(result.Projection[1]-0.706) > 1e-9 {
		t.Fatalf("unexpected projection: %v", result.Projection)
	}

	result, err = v.Predict(Record{
		"estilo": "clasico",
		"color":  "verde",
		"precio": json.Number("700"),
		"largo":  json.Number("70"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cluster != 0 {
		t.Fatalf("expected cluster 0, got %d", result.Cluster)
	}
}

const tinyManifest = `
variants:
  - name: tiny
    route: tiny
    fields: [color, largo]
    categorical: [color]
    numeric: [largo]
    encoding:
      strategy: per_column
      sentinel: %s
      encoders:
        color: color.json
    models:
      default: model.json
`

func tinySource(sentinel, model string) mapSource {
	return mapSource{
		ManifestName: strings.Replace(tinyManifest, "%s", sentinel, 1),
		"color.json": `{"kind":"label_encoder","classes":["azul","rojo"]}`,
		"model.json": model,
	}
}

func TestSchemaMismatch(t *testing.T) {
	src := tinySource("true", `{"kind":"linear_regression","feature_names":["color","largo_cm"],"coef":[1,1],"intercept":0}`)
	snap, err := Load(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := variant(t, snap, "tiny")
	if v.Route() != "/tiny" {
		t.Fatalf("expected route to be rooted, got %s", v.Route())
	}
	_, err = v.Predict(Record{"color": "azul", "largo": "3"})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "largo_cm") {
		t.Fatalf("expected column in message: %s", err)
	}
}

func TestUnknownCategoryWithoutSentinel(t *testing.T) {
	src := tinySource("false", `{"kind":"linear_regression","feature_names":["color","largo"],"coef":[10,1],"intercept":0}`)
	snap, err := Load(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := variant(t, snap, "tiny")

	result, err := v.Predict(Record{"color": "rojo", "largo": "3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertPrice(t, result, 13)

	_, err = v.Predict(Record{"color": "verde", "largo": "3"})
	if err == nil {
		t.Fatal("expected error for unseen category")
	}
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		t.Fatalf("unseen category is unclassified, got %v", fieldErr.Kind)
	}
}

func TestLoadRejectsWidthMismatch(t *testing.T) {
	src := tinySource("true", `{"kind":"linear_regression","coef":[1,1,1],"intercept":0}`)
	if _, err := Load(src); err == nil {
		t.Fatal("expected error when model has neither names nor a matching order")
	}
}

func TestRegistryKeepsSnapshotOnFailedReload(t *testing.T) {
	registry := NewRegistry()
	if registry.Snapshot() != nil {
		t.Fatal("expected no snapshot before first load")
	}
	first, err := registry.Reload(bundle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := registry.Reload(mapSource{}); err == nil {
		t.Fatal("expected reload error")
	}
	if registry.Snapshot() != first {
		t.Fatal("failed reload must keep the previous snapshot")
	}
}
