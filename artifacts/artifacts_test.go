package artifacts

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirSourceRead(t *testing.T) {
	src, err := NewDirSource("../models", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, err := src.Read("encoders/color.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("expected payload")
	}
	if _, err := src.Read("missing.json"); err == nil {
		t.Fatal("expected error for missing artifact")
	}
	if src.String() != "dir:../models" {
		t.Fatalf("unexpected description: %s", src)
	}
}

func TestDirSourceCompressed(t *testing.T) {
	root := t.TempDir()
	f, err := os.Create(filepath.Join(root, "pca.json"))
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	zw.Write([]byte(`{"kind":"pca"}`))
	zw.Close()
	f.Close()

	src, err := NewDirSource(root, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, err := src.Read("pca.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"kind":"pca"}` {
		t.Fatalf("unexpected payload: %q", payload)
	}
}

func TestNewDirSourceRejectsFile(t *testing.T) {
	if _, err := NewDirSource("../models/manifest.yaml", false); err == nil {
		t.Fatal("expected error for non-directory root")
	}
}

func TestWatcherCoalescesChanges(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "encoders"), 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(root, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 10)
	go w.Run(ctx, func() { changes <- struct{}{} })

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(filepath.Join(root, "encoders", "talla.json"), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change notification")
	}
	select {
	case <-changes:
		t.Fatal("expected the writes to coalesce into one notification")
	case <-time.After(150 * time.Millisecond):
	}
}
