package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"
)

// Store persists the serialized credential cache as one opaque blob.
// Load reports false when nothing usable is stored; Save overwrites wholesale.
type Store interface {
	Load() ([]byte, bool)
	Save(data []byte) error
}

// FileStore keeps the credential cache in a single file
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the cache file
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the cache file. A missing or unreadable file means first run.
func (s *FileStore) Load() ([]byte, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Save writes the full cache, creating the directory if needed
func (s *FileStore) Save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token cache directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	return nil
}

const (
	keyringService = "email-mcp"
	keyringItemKey = "token-cache"
)

// KeyringStore keeps the credential cache as a single item in the OS keyring
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore wraps an already opened keyring
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// OpenKeyringStore opens the platform keyring, falling back to an encrypted
// file keyring under fileDir when no native backend is available.
func OpenKeyringStore(fileDir string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(keyringService + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// Load returns the cached blob, or false if the item is missing or unreadable
func (s *KeyringStore) Load() ([]byte, bool) {
	item, err := s.ring.Get(keyringItemKey)
	if err != nil || len(item.Data) == 0 {
		return nil, false
	}
	return item.Data, true
}

// Save replaces the keyring item with data
func (s *KeyringStore) Save(data []byte) error {
	err := s.ring.Set(keyring.Item{
		Key:         keyringItemKey,
		Data:        data,
		Label:       "email-mcp token cache",
		Description: "OAuth2 credential cache for the mailbox MCP server",
	})
	if err != nil {
		return fmt.Errorf("failed to write token cache to keyring: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu      sync.Mutex
	data    []byte
	saveErr error
}

// NewMemoryStore returns a store preloaded with data (may be nil)
func NewMemoryStore(data []byte) *MemoryStore {
	return &MemoryStore{data: data}
}

// Load returns a copy of the stored blob
func (s *MemoryStore) Load() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return nil, false
	}
	return append([]byte(nil), s.data...), true
}

// Save replaces the stored blob
func (s *MemoryStore) Save(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = append([]byte(nil), data...)
	return nil
}

// FailSaves makes every following Save return err
func (s *MemoryStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// errNoStoreBackend is returned by NewStore for an unknown backend name
var errNoStoreBackend = errors.New("unknown token store backend")

// NewStore builds the Store for a configured backend name
func NewStore(backend, path, keyringDir string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(path), nil
	case "keyring":
		store, err := OpenKeyringStore(keyringDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %s", errNoStoreBackend, backend)
	}
}
