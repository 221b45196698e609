package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Tokens is the credential pair issued by the backend
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// TokenStore persists tokens between requests. Load returns nil, nil when
// nothing is stored.
type TokenStore interface {
	Load() (*Tokens, error)
	Save(t *Tokens) error
	Clear() error
}

// MemoryTokenStore keeps tokens in process memory
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens *Tokens
}

// NewMemoryTokenStore returns a store seeded with t (which may be nil)
func NewMemoryTokenStore(t *Tokens) *MemoryTokenStore {
	return &MemoryTokenStore{tokens: t}
}

func (s *MemoryTokenStore) Load() (*Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return nil, nil
	}
	cp := *s.tokens
	return &cp, nil
}

func (s *MemoryTokenStore) Save(t *Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tokens = &cp
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = nil
	return nil
}

// FileTokenStore keeps tokens in a JSON file readable only by the owner
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

// NewFileTokenStore returns a store backed by path
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// DefaultTokenPath is the token file under the user's config directory
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(dir, "scamshield", "tokens.json"), nil
}

func (s *FileTokenStore) Load() (*Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var t Tokens
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	return &t, nil
}

func (s *FileTokenStore) Save(t *Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
