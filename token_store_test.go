package renovo

import "testing"

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	access, refresh, err := store.Load()
	if err != nil {
		t.Fatalf("Load on empty store failed: %v", err)
	}
	if access != "" || refresh != "" {
		t.Errorf("Expected empty pair, got (%q, %q)", access, refresh)
	}

	if err := store.Save("access-1", "refresh-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	access, refresh, err = store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if access != "access-1" || refresh != "refresh-1" {
		t.Errorf("Expected saved pair, got (%q, %q)", access, refresh)
	}
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Save("access-1", "refresh-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	access, refresh, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if access != "" || refresh != "" {
		t.Errorf("Expected cleared pair, got (%q, %q)", access, refresh)
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Save("access-1", "refresh-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save("access-2", "refresh-2"); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	access, refresh, _ := store.Load()
	if access != "access-2" || refresh != "refresh-2" {
		t.Errorf("Expected rotated pair, got (%q, %q)", access, refresh)
	}
}
