package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
)

// APIKeyStore implements services.APIKeyRepository
type APIKeyStore struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]*models.APIKey
}

// NewAPIKeyStore creates a new in-memory key store
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{keys: make(map[uuid.UUID]*models.APIKey)}
}

func (s *APIKeyStore) Create(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = cloneKey(key)
	return nil
}

func (s *APIKeyStore) Get(_ context.Context, id uuid.UUID) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return cloneKey(k), nil
}

func (s *APIKeyStore) GetByHash(_ context.Context, hash string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if k.KeyHash == hash {
			return cloneKey(k), nil
		}
	}
	return nil, services.ErrNotFound
}

// List returns keys oldest first
func (s *APIKeyStore) List(_ context.Context) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.APIKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, cloneKey(k))
	}
	slices.SortFunc(out, func(a, b *models.APIKey) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// Update replaces the stored key. Usage is owned by IncrementUsage and is
// never lowered by an update.
func (s *APIKeyStore) Update(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.keys[key.ID]
	if !ok {
		return services.ErrNotFound
	}
	c := cloneKey(key)
	c.Usage = max(c.Usage, cur.Usage)
	s.keys[key.ID] = c
	return nil
}

func (s *APIKeyStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[id]; !ok {
		return services.ErrNotFound
	}
	delete(s.keys, id)
	return nil
}

func (s *APIKeyStore) ClearPrimary(_ context.Context, keep uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, k := range s.keys {
		if id != keep {
			k.Primary = false
		}
	}
	return nil
}

func (s *APIKeyStore) IncrementUsage(_ context.Context, id uuid.UUID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return 0, services.ErrNotFound
	}
	k.Usage++
	k.LastUsedAt = &at
	return k.Usage, nil
}

func cloneKey(k *models.APIKey) *models.APIKey {
	c := *k
	c.Permissions = slices.Clone(k.Permissions)
	if k.ExpiresAt != nil {
		t := *k.ExpiresAt
		c.ExpiresAt = &t
	}
	if k.LastUsedAt != nil {
		t := *k.LastUsedAt
		c.LastUsedAt = &t
	}
	return &c
}
