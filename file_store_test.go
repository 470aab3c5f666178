package renovo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := NewFileStore(path)

	if err := store.Save("access-1", "refresh-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	access, refresh, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if access != "access-1" || refresh != "refresh-1" {
		t.Errorf("Expected saved pair, got (%q, %q)", access, refresh)
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "never-written.json"))

	access, refresh, err := store.Load()
	if err != nil {
		t.Fatalf("Load of missing file should not fail: %v", err)
	}
	if access != "" || refresh != "" {
		t.Errorf("Expected empty pair for missing file, got (%q, %q)", access, refresh)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("Failed to seed corrupt file: %v", err)
	}

	store := NewFileStore(path)
	if _, _, err := store.Load(); err == nil {
		t.Error("Expected error loading corrupt file")
	}
}

func TestFileStoreCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "tokens.json")
	store := NewFileStore(path)

	if err := store.Save("access-1", "refresh-1"); err != nil {
		t.Fatalf("Save into missing directories failed: %v", err)
	}

	access, _, err := store.Load()
	if err != nil || access != "access-1" {
		t.Errorf("Expected round trip through nested path, got (%q, %v)", access, err)
	}
}

func TestFileStoreLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "tokens.json"))

	if err := store.Save("access-1", "refresh-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "tokens.json" {
		t.Errorf("Expected only tokens.json in %s, got %v", dir, entries)
	}
}

func TestFileStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := NewFileStore(path)

	if err := store.Save("access-1", "refresh-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("Expected 0600 permissions, got %o", perm)
	}
}

func TestFileStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := NewFileStore(path)

	if err := store.Save("access-1", "refresh-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected token file to be removed")
	}

	// Clearing again must stay silent.
	if err := store.Clear(); err != nil {
		t.Fatalf("Second clear failed: %v", err)
	}
}

func TestFileStoreRotationOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := NewFileStore(path)

	if err := store.Save("access-1", "refresh-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save("access-2", "refresh-2"); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	access, refresh, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if access != "access-2" || refresh != "refresh-2" {
		t.Errorf("Expected rotated pair, got (%q, %q)", access, refresh)
	}
}
