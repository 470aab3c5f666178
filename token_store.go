package renovo

import "sync"

// TokenStore persists the credential pair across process restarts. Load
// returning empty strings with a nil error means "no stored session", which
// the client treats as logged out rather than as a failure.
//
// Save always receives the full pair so a rotated refresh token is never
// written next to a stale partner.
type TokenStore interface {
	Load() (access, refresh string, err error)
	Save(access, refresh string) error
	Clear() error
}

// MemoryStore is an in-memory TokenStore for tests and ephemeral sessions.
type MemoryStore struct {
	mu      sync.Mutex
	access  string
	refresh string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access, s.refresh, nil
}

func (s *MemoryStore) Save(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh = access, refresh
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh = "", ""
	return nil
}
