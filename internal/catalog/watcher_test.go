package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const smallCatalog = `
Floor:
  Wood:
    Laminate:
      8mm:
        material: 100
        labor: 10
`

const largerCatalog = `
Floor:
  Wood:
    Laminate:
      8mm:
        material: 100
        labor: 10
      12mm:
        material: 200
        labor: 20
`

func writeCatalog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
}

func TestWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeCatalog(t, path, smallCatalog)

	reloaded := make(chan int, 4)
	w, err := NewWatcher(path, WithReloadHook(func(tree *Tree) {
		select {
		case reloaded <- tree.Len():
		default:
		}
	}))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if w.Tree().Len() != 1 {
		t.Fatalf("initial Len() = %d, want 1", w.Tree().Len())
	}

	writeCatalog(t, path, largerCatalog)

	deadline := time.After(3 * time.Second)
	for w.Tree().Len() != 2 {
		select {
		case <-reloaded:
		case <-deadline:
			// Some file systems do not deliver events; reload explicitly.
			if err := w.Reload(); err != nil {
				t.Fatalf("Reload() error = %v", err)
			}
		}
	}

	if _, err := w.Lookup([]string{"Floor", "Wood", "Laminate", "12mm"}); err != nil {
		t.Errorf("Lookup() after reload error = %v", err)
	}
}

func TestWatcher_BadReloadKeepsTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeCatalog(t, path, smallCatalog)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	snap := w.Snapshot()

	writeCatalog(t, path, "Floor: [")
	if err := w.Reload(); err == nil {
		t.Error("Reload() of a malformed file should fail")
	}
	if w.Tree().Len() != 1 {
		t.Errorf("Len() = %d, want previous tree kept", w.Tree().Len())
	}
	if _, err := snap.Lookup([]string{"Floor", "Wood", "Laminate", "8mm"}); err != nil {
		t.Errorf("snapshot Lookup() error = %v", err)
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("NewWatcher() on a missing file should fail")
	}
}

func TestWatcher_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeCatalog(t, path, smallCatalog)
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
