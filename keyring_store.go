package renovo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// keyringUser is the account name the pair is filed under within the service.
const keyringUser = "session-tokens"

// KeyringStore keeps the credential pair in the operating system keychain:
// Keychain on macOS, Secret Service on Linux, Credential Manager on Windows.
type KeyringStore struct {
	service string
	user    string
}

// NewKeyringStore creates a store scoped to the given service name.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service, user: keyringUser}
}

func (s *KeyringStore) Load() (string, string, error) {
	payload, err := keyring.Get(s.service, s.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("read keyring: %w", err)
	}
	var tokens storedTokens
	if err := json.Unmarshal([]byte(payload), &tokens); err != nil {
		return "", "", fmt.Errorf("decode keyring entry: %w", err)
	}
	return tokens.Access, tokens.Refresh, nil
}

func (s *KeyringStore) Save(access, refresh string) error {
	data, err := json.Marshal(storedTokens{Access: access, Refresh: refresh})
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if err := keyring.Set(s.service, s.user, string(data)); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) Clear() error {
	if err := keyring.Delete(s.service, s.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("clear keyring: %w", err)
	}
	return nil
}
