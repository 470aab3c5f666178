package renovo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// storedTokens is the serialized shape shared by the file and keyring stores.
type storedTokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// FileStore keeps the credential pair in a JSON file with owner-only
// permissions. Writes go through a temp file and rename so a crash cannot
// leave a torn pair behind.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given path. Parent directories
// are created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (string, string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("read token file: %w", err)
	}
	var tokens storedTokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return "", "", fmt.Errorf("decode token file: %w", err)
	}
	return tokens.Access, tokens.Refresh, nil
}

func (s *FileStore) Save(access, refresh string) error {
	data, err := json.Marshal(storedTokens{Access: access, Refresh: refresh})
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
