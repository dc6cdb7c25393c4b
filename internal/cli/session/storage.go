package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const keyringService = "quickbites-cli"

// Record is what a storage slot holds
type Record struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   Role   `json:"role,omitempty"`
}

// Storage is one persistence slot for a session record.
// Load returns (nil, nil) when the slot is empty.
type Storage interface {
	Load() (*Record, error)
	Save(Record) error
	Clear() error
}

// KeyringStorage keeps the record in the OS keychain/credential manager
type KeyringStorage struct {
	key string
}

// NewKeyringStorage returns a keychain slot scoped to the API host
func NewKeyringStorage(host string) *KeyringStorage {
	return &KeyringStorage{key: fmt.Sprintf("session-%s", host)}
}

func (k *KeyringStorage) Load() (*Record, error) {
	data, err := keyring.Get(keyringService, k.key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session from keyring: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode keyring session: %w", err)
	}
	return &rec, nil
}

func (k *KeyringStorage) Save(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := keyring.Set(keyringService, k.key, string(data)); err != nil {
		return fmt.Errorf("failed to save session to keyring: %w", err)
	}
	return nil
}

func (k *KeyringStorage) Clear() error {
	if err := keyring.Delete(keyringService, k.key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete session from keyring: %w", err)
	}
	return nil
}

// FileStorage keeps the record in a JSON file readable only by the user
type FileStorage struct {
	Path string
}

func (f *FileStorage) Load() (*Record, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &rec, nil
}

func (f *FileStorage) Save(rec Record) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

func (f *FileStorage) Clear() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// DurableFilePath is where file-backed "remember me" sessions live
func DurableFilePath(configDir, host string) string {
	return filepath.Join(configDir, fmt.Sprintf("session-%s.json", sanitize(host)))
}

// TransientFilePath returns a slot that lives as long as the invoking shell:
// it is keyed by the parent process ID and kept in the runtime directory,
// which is wiped on logout of the desktop session or reboot.
func TransientFilePath(host string) string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "quickbites", fmt.Sprintf("session-%d-%s.json", os.Getppid(), sanitize(host)))
}

func sanitize(host string) string {
	return strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(host)
}

// MemoryStorage is an in-process slot
type MemoryStorage struct {
	mu  sync.Mutex
	rec *Record
}

func (m *MemoryStorage) Load() (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil, nil
	}
	rec := *m.rec
	return &rec, nil
}

func (m *MemoryStorage) Save(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = &rec
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	return nil
}
