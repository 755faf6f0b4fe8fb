package db

import (
	"path/filepath"
	"testing"
)

func TestStorePutReadList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.db")

	store, err := Open(path, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Put("manifest.yaml", []byte("variants: []")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Put("encoders/color.json", []byte(`{"kind":"label_encoder"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Put("manifest.yaml", []byte("variants: [x]")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.Close()

	readOnly, err := Open(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer readOnly.Close()

	payload, err := readOnly.Read("manifest.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != "variants: [x]" {
		t.Fatalf("expected replaced payload, got %q", payload)
	}
	if _, err := readOnly.Read("missing.json"); err == nil {
		t.Fatal("expected error for missing artifact")
	}

	artifacts, err := readOnly.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(artifacts) != 2 || artifacts[0].Name != "encoders/color.json" {
		t.Fatalf("unexpected listing: %+v", artifacts)
	}
	if err := readOnly.Put("x", []byte("y")); err == nil {
		t.Fatal("expected read-only bundle to reject writes")
	}
}

func TestOpenReadOnlyMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "none.db"), true); err == nil {
		t.Fatal("expected error opening a missing bundle read-only")
	}
}
