package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCheck(t *testing.T) {
	var out bytes.Buffer
	if err := runCheck(&out, sourceArgs{Source: "dir", Path: "../../models"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "4 variants") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "renta=bosque_renta.json venta=arbol_venta.json") {
		t.Fatalf("expected sorted models:\n%s", out.String())
	}
}

func TestRunPackThenPredictFromSQLite(t *testing.T) {
	output := filepath.Join(t.TempDir(), "bundle.db")
	n, err := runPack("../../models", output, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n < 10 {
		t.Fatalf("expected the whole bundle to be packed, got %d artifacts", n)
	}

	record := filepath.Join(t.TempDir(), "record.json")
	body := `{"talla":"S","color":"negro","estilo":"moderno","largo":120,"antiguedad":1}`
	if err := os.WriteFile(record, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := &predictCmd{
		sourceArgs: sourceArgs{Source: "sqlite", Path: output},
		Variant:    "precio",
		Record:     record,
	}
	if err := runPredict(&out, cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Precio float64 `json:"precio_estimado"`
	}
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(resp.Precio-955) > 1e-6 {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestRunPredictUnknownVariant(t *testing.T) {
	cmd := &predictCmd{
		sourceArgs: sourceArgs{Source: "dir", Path: "../../models"},
		Variant:    "zapatos",
	}
	if err := runPredict(&bytes.Buffer{}, cmd); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestRunPackRejectsBrokenBundle(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte("variants: [{name: x}]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runPack(dir, filepath.Join(t.TempDir(), "out.db"), false); err == nil {
		t.Fatal("expected error for a bundle that does not load")
	}
}
