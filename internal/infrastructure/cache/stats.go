package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"scamshield/internal/domain/models"
)

const (
	fieldTotal    = "total"
	fieldThreats  = "threats"
	fieldSafe     = "safe"
	fieldLastScan = "last_scan_unix_ms"
)

// StatsStore keeps scan counters in Redis hashes so several API replicas
// share one view. It implements services.StatsStore.
type StatsStore struct {
	cache *RedisCache
}

// NewStatsStore creates a Redis-backed stats store
func NewStatsStore(c *RedisCache) *StatsStore {
	return &StatsStore{cache: c}
}

// Record counts one scan
func (s *StatsStore) Record(ctx context.Context, rec *models.ScanRecord) error {
	c := s.cache
	pipe := c.client.TxPipeline()

	pipe.HIncrBy(ctx, c.key(KeyStats), fieldTotal, 1)
	if rec.Verdict.IsThreat {
		pipe.HIncrBy(ctx, c.key(KeyStats), fieldThreats, 1)
	} else {
		pipe.HIncrBy(ctx, c.key(KeyStats), fieldSafe, 1)
	}
	pipe.HIncrBy(ctx, c.key(KeyStatsCategory), string(rec.Verdict.Category), 1)
	pipe.HIncrBy(ctx, c.key(KeyStatsEngine), string(rec.Engine), 1)
	for _, t := range rec.Verdict.Tactics {
		pipe.HIncrBy(ctx, c.key(KeyStatsTactic), string(t), 1)
	}
	pipe.HSet(ctx, c.key(KeyStats), fieldLastScan, rec.CreatedAt.UnixMilli())

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record stats: %w", err)
	}
	return nil
}

// Snapshot reads every counter
func (s *StatsStore) Snapshot(ctx context.Context) (*models.ScanStats, error) {
	c := s.cache
	pipe := c.client.Pipeline()
	totals := pipe.HGetAll(ctx, c.key(KeyStats))
	byCategory := pipe.HGetAll(ctx, c.key(KeyStatsCategory))
	byTactic := pipe.HGetAll(ctx, c.key(KeyStatsTactic))
	byEngine := pipe.HGetAll(ctx, c.key(KeyStatsEngine))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	t := totals.Val()
	stats := &models.ScanStats{
		TotalScans:  parseCount(t[fieldTotal]),
		Threats:     parseCount(t[fieldThreats]),
		Safe:        parseCount(t[fieldSafe]),
		ByCategory:  countMap(byCategory.Val()),
		ByTactic:    countMap(byTactic.Val()),
		ByEngine:    countMap(byEngine.Val()),
		GeneratedAt: time.Now().UTC(),
	}
	if ms := parseCount(t[fieldLastScan]); ms > 0 {
		at := time.UnixMilli(ms).UTC()
		stats.LastScanAt = &at
	}
	return stats, nil
}

// Reset deletes every counter
func (s *StatsStore) Reset(ctx context.Context) error {
	return s.cache.Delete(ctx, KeyStats, KeyStatsCategory, KeyStatsTactic, KeyStatsEngine)
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func countMap(raw map[string]string) map[string]int64 {
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		out[k] = parseCount(v)
	}
	return out
}
