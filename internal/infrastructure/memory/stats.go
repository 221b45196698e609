package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"scamshield/internal/domain/models"
)

// StatsStore implements services.StatsStore
type StatsStore struct {
	mu    sync.Mutex
	stats models.ScanStats
}

// NewStatsStore creates an empty counter set
func NewStatsStore() *StatsStore {
	s := &StatsStore{}
	s.reset()
	return s
}

func (s *StatsStore) reset() {
	s.stats = models.ScanStats{
		ByCategory: make(map[string]int64),
		ByTactic:   make(map[string]int64),
		ByEngine:   make(map[string]int64),
	}
}

// Record counts one scan
func (s *StatsStore) Record(_ context.Context, rec *models.ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalScans++
	if rec.Verdict.IsThreat {
		s.stats.Threats++
	} else {
		s.stats.Safe++
	}
	s.stats.ByCategory[string(rec.Verdict.Category)]++
	s.stats.ByEngine[string(rec.Engine)]++
	for _, t := range rec.Verdict.Tactics {
		s.stats.ByTactic[string(t)]++
	}
	at := rec.CreatedAt
	if s.stats.LastScanAt == nil || at.After(*s.stats.LastScanAt) {
		s.stats.LastScanAt = &at
	}
	return nil
}

// Snapshot returns a copy of the counters
func (s *StatsStore) Snapshot(_ context.Context) (*models.ScanStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.stats
	out.ByCategory = maps.Clone(s.stats.ByCategory)
	out.ByTactic = maps.Clone(s.stats.ByTactic)
	out.ByEngine = maps.Clone(s.stats.ByEngine)
	out.GeneratedAt = time.Now().UTC()
	return &out, nil
}

// Reset zeroes every counter
func (s *StatsStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
