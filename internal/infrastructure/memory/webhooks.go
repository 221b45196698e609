package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
)

// WebhookStore implements services.WebhookRepository
type WebhookStore struct {
	mu       sync.RWMutex
	webhooks map[uuid.UUID]*models.Webhook
}

// NewWebhookStore creates a new in-memory webhook store
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{webhooks: make(map[uuid.UUID]*models.Webhook)}
}

func (s *WebhookStore) Create(_ context.Context, wh *models.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[wh.ID] = cloneWebhook(wh)
	return nil
}

func (s *WebhookStore) Get(_ context.Context, id uuid.UUID) (*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wh, ok := s.webhooks[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return cloneWebhook(wh), nil
}

// List returns webhooks oldest first
func (s *WebhookStore) List(_ context.Context) ([]*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Webhook, 0, len(s.webhooks))
	for _, wh := range s.webhooks {
		out = append(out, cloneWebhook(wh))
	}
	slices.SortFunc(out, func(a, b *models.Webhook) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// Update replaces configuration fields; delivery counters are kept
func (s *WebhookStore) Update(_ context.Context, wh *models.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.webhooks[wh.ID]
	if !ok {
		return services.ErrNotFound
	}
	c := cloneWebhook(wh)
	c.TotalDeliveries = cur.TotalDeliveries
	c.SuccessDeliveries = cur.SuccessDeliveries
	c.FailedDeliveries = cur.FailedDeliveries
	c.LastDeliveryAt = cur.LastDeliveryAt
	c.LastErrorAt = cur.LastErrorAt
	c.LastError = cur.LastError
	s.webhooks[wh.ID] = c
	return nil
}

func (s *WebhookStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhooks[id]; !ok {
		return services.ErrNotFound
	}
	delete(s.webhooks, id)
	return nil
}

func (s *WebhookStore) RecordDelivery(_ context.Context, id uuid.UUID, success bool, errMsg string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wh, ok := s.webhooks[id]
	if !ok {
		return services.ErrNotFound
	}
	wh.TotalDeliveries++
	if success {
		wh.SuccessDeliveries++
		wh.LastDeliveryAt = &at
	} else {
		wh.FailedDeliveries++
		wh.LastErrorAt = &at
		wh.LastError = errMsg
	}
	return nil
}

func cloneWebhook(wh *models.Webhook) *models.Webhook {
	c := *wh
	c.Events = slices.Clone(wh.Events)
	c.Headers = maps.Clone(wh.Headers)
	if wh.RetryConfig != nil {
		rc := *wh.RetryConfig
		c.RetryConfig = &rc
	}
	return &c
}
