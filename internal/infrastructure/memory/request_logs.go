package memory

import (
	"context"
	"sync"

	"scamshield/internal/domain/models"
)

// RequestLogRing implements services.RequestLogStore as a fixed-size ring.
// Once full, the oldest entry is overwritten.
type RequestLogRing struct {
	mu      sync.RWMutex
	entries []*models.RequestLog
	next    int
	full    bool
}

// NewRequestLogRing creates a ring holding at most capacity entries
func NewRequestLogRing(capacity int) *RequestLogRing {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RequestLogRing{entries: make([]*models.RequestLog, capacity)}
}

// Append adds an entry
func (r *RequestLogRing) Append(_ context.Context, entry *models.RequestLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *entry
	r.entries[r.next] = &c
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// List returns matching entries newest first
func (r *RequestLogRing) List(_ context.Context, filter models.RequestLogFilter) ([]*models.RequestLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.next
	if r.full {
		n = len(r.entries)
	}

	out := make([]*models.RequestLog, 0)
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.entries)) % len(r.entries)
		e := r.entries[idx]
		if !filter.Match(e) {
			continue
		}
		c := *e
		out = append(out, &c)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored entries
func (r *RequestLogRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}
