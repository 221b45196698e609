// Package memory provides in-process implementations of the service
// repositories. They back the API when Postgres and Redis are disabled and
// are used throughout the tests.
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

// ScanStore implements services.ScanRepository
type ScanStore struct {
	mu    sync.RWMutex
	scans []*models.ScanRecord
	index map[uuid.UUID]int
}

// NewScanStore creates a new in-memory scan store
func NewScanStore() *ScanStore {
	return &ScanStore{
		scans: make([]*models.ScanRecord, 0),
		index: make(map[uuid.UUID]int),
	}
}

// Create stores a copy of the record
func (s *ScanStore) Create(_ context.Context, rec *models.ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[rec.ID] = len(s.scans)
	s.scans = append(s.scans, cloneScan(rec))
	return nil
}

// Get returns a scan by ID
func (s *ScanStore) Get(_ context.Context, id uuid.UUID) (*models.ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return cloneScan(s.scans[i]), nil
}

// List returns scans newest first, filtered and paged
func (s *ScanStore) List(_ context.Context, filter models.ScanFilter) ([]*models.ScanRecord, int, error) {
	filter.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.ScanRecord
	for i := len(s.scans) - 1; i >= 0; i-- {
		rec := s.scans[i]
		if filter.ThreatsOnly && !rec.Verdict.IsThreat {
			continue
		}
		if filter.Category != "" && rec.Verdict.Category != filter.Category {
			continue
		}
		matched = append(matched, rec)
	}

	total := len(matched)
	items := make([]*models.ScanRecord, 0, filter.Limit)
	if off := filter.Offset(); off < total {
		end := min(off+filter.Limit, total)
		for _, rec := range matched[off:end] {
			items = append(items, cloneScan(rec))
		}
	}
	return items, total, nil
}

// UpdateFeedback attaches feedback to a scan
func (s *ScanStore) UpdateFeedback(_ context.Context, id uuid.UUID, feedback models.ScanFeedback, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return services.ErrNotFound
	}
	s.scans[i].Feedback = feedback
	s.scans[i].FeedbackComment = comment
	s.scans[i].UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteAll removes every scan and returns how many were removed
func (s *ScanStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.scans))
	s.scans = make([]*models.ScanRecord, 0)
	s.index = make(map[uuid.UUID]int)
	return n, nil
}

func cloneScan(rec *models.ScanRecord) *models.ScanRecord {
	c := *rec
	c.Verdict.Tactics = slices.Clone(rec.Verdict.Tactics)
	c.ExtractedURLs = slices.Clone(rec.ExtractedURLs)
	c.ExtractedEmails = slices.Clone(rec.ExtractedEmails)
	c.ExtractedPhones = slices.Clone(rec.ExtractedPhones)
	return &c
}
