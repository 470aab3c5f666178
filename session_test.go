package renovo

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestSetTokensPersistsToStore(t *testing.T) {
	store := NewMemoryStore()
	client := New("https://api.example.com", WithTokenStore(store))

	client.SetTokens("tok-1", "ref-1")

	access, refresh := client.Tokens()
	if access != "tok-1" || refresh != "ref-1" {
		t.Errorf("Expected (tok-1, ref-1), got (%q, %q)", access, refresh)
	}
	if a, r, _ := store.Load(); a != "tok-1" || r != "ref-1" {
		t.Errorf("Expected pair persisted, got (%q, %q)", a, r)
	}
	if !client.Authenticated() {
		t.Error("Expected Authenticated() after SetTokens")
	}
}

func TestClearTokensClearsStore(t *testing.T) {
	store := NewMemoryStore()
	client := New("https://api.example.com", WithTokenStore(store))
	client.SetTokens("tok-1", "ref-1")

	client.ClearTokens()

	access, refresh := client.Tokens()
	if access != "" || refresh != "" {
		t.Errorf("Expected empty credentials, got (%q, %q)", access, refresh)
	}
	if a, r, _ := store.Load(); a != "" || r != "" {
		t.Errorf("Expected store cleared, got (%q, %q)", a, r)
	}
	if client.Authenticated() {
		t.Error("Expected Authenticated() false after ClearTokens")
	}
}

func TestRestoreSession(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Save("tok-1", "ref-1"); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	client := New("https://api.example.com", WithTokenStore(store))

	found, err := client.RestoreSession()
	if err != nil {
		t.Fatalf("RestoreSession() returned error: %v", err)
	}
	if !found {
		t.Fatal("Expected RestoreSession to find a session")
	}

	access, refresh := client.Tokens()
	if access != "tok-1" || refresh != "ref-1" {
		t.Errorf("Expected restored pair, got (%q, %q)", access, refresh)
	}
	if !client.Authenticated() {
		t.Error("Expected Authenticated() after restore")
	}
}

func TestRestoreSessionEmptyStore(t *testing.T) {
	client := New("https://api.example.com", WithTokenStore(NewMemoryStore()))

	found, err := client.RestoreSession()
	if err != nil {
		t.Fatalf("RestoreSession() returned error: %v", err)
	}
	if found {
		t.Error("Expected no session in an empty store")
	}
	if client.Authenticated() {
		t.Error("Expected Authenticated() false without a session")
	}
}

func TestRestoreSessionWithoutStore(t *testing.T) {
	client := New("https://api.example.com")

	found, err := client.RestoreSession()
	if err != nil {
		t.Fatalf("RestoreSession() returned error: %v", err)
	}
	if found {
		t.Error("Expected no session without a store")
	}
}

func TestRestoreSessionPropagatesStoreError(t *testing.T) {
	client := New("https://api.example.com", WithTokenStore(failingStore{}))

	if _, err := client.RestoreSession(); err == nil {
		t.Fatal("Expected store error to propagate")
	}
}

func TestSignalUnauthorizedRunsCallbackOnce(t *testing.T) {
	var callbackCount atomic.Int32
	client := New("https://api.example.com")
	client.SetOnUnauthorized(func() { callbackCount.Add(1) })
	client.SetTokens("tok-1", "ref-1")

	client.signalUnauthorized()
	client.signalUnauthorized()
	client.signalUnauthorized()

	if got := callbackCount.Load(); got != 1 {
		t.Errorf("Expected callback once, got %d", got)
	}

	access, refresh := client.Tokens()
	if access != "" || refresh != "" {
		t.Errorf("Expected credentials cleared, got (%q, %q)", access, refresh)
	}
}

func TestSignalUnauthorizedWithoutCallback(t *testing.T) {
	client := New("https://api.example.com")
	client.SetTokens("tok-1", "ref-1")

	// Must not panic with no hook registered.
	client.signalUnauthorized()

	if client.Authenticated() {
		t.Error("Expected session torn down")
	}
}

func TestStoreFailuresDoNotBreakSession(t *testing.T) {
	client := New("https://api.example.com", WithTokenStore(failingStore{}))

	client.SetTokens("tok-1", "ref-1")

	// The in-memory session survives a broken store.
	access, refresh := client.Tokens()
	if access != "tok-1" || refresh != "ref-1" {
		t.Errorf("Expected in-memory pair intact, got (%q, %q)", access, refresh)
	}

	client.ClearTokens()
	if client.Authenticated() {
		t.Error("Expected logout despite store failure")
	}
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Load() (string, string, error) { return "", "", errors.New("store down") }
func (failingStore) Save(string, string) error     { return errors.New("store down") }
func (failingStore) Clear() error                  { return errors.New("store down") }
