package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scamshield/internal/domain/models"
	"scamshield/pkg/logger"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFromClient(client, "scamshield:", logger.NewNop()), mr
}

func TestCheckRateLimit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, reset, err := c.CheckRateLimit(ctx, "key-a", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.EqualValues(t, 2-i, remaining)
		assert.True(t, reset.After(time.Now()))
	}

	allowed, remaining, _, err := c.CheckRateLimit(ctx, "key-a", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)

	allowed, _, _, err = c.CheckRateLimit(ctx, "key-b", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestStatsStore(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	s := NewStatsStore(c)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, &models.ScanRecord{
		ID:        uuid.New(),
		Engine:    models.ScanEngineHeuristic,
		Verdict:   models.ScanVerdict{IsThreat: true, Category: models.ScamCategoryLottery, Tactics: models.MatchSet{models.TacticMoney, models.TacticAction}},
		CreatedAt: at,
	}))
	require.NoError(t, s.Record(ctx, &models.ScanRecord{
		ID:        uuid.New(),
		Engine:    models.ScanEngineRemote,
		Verdict:   models.ScanVerdict{Category: models.ScamCategoryNone, Tactics: models.MatchSet{}},
		CreatedAt: at.Add(time.Minute),
	}))

	assert.True(t, mr.Exists("scamshield:"+KeyStats))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.TotalScans)
	assert.EqualValues(t, 1, snap.Threats)
	assert.EqualValues(t, 1, snap.Safe)
	assert.EqualValues(t, 1, snap.ByCategory["lottery"])
	assert.EqualValues(t, 1, snap.ByTactic["money"])
	assert.EqualValues(t, 1, snap.ByEngine["remote"])
	require.NotNil(t, snap.LastScanAt)
	assert.True(t, snap.LastScanAt.Equal(at.Add(time.Minute)))

	require.NoError(t, s.Reset(ctx))
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.TotalScans)
	assert.Empty(t, snap.ByCategory)
	assert.Nil(t, snap.LastScanAt)
}

func TestRequestLogList(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	l := NewRequestLogList(c, 3)

	for i := 0; i < 5; i++ {
		status := 200
		if i == 4 {
			status = 401
		}
		require.NoError(t, l.Append(ctx, &models.RequestLog{
			Timestamp: time.Now().UTC(),
			Method:    "POST",
			Endpoint:  fmt.Sprintf("/api/v1/scan?i=%d", i),
			Status:    status,
			Latency:   12 * time.Millisecond,
		}))
	}

	all, err := l.List(ctx, models.RequestLogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/api/v1/scan?i=4", all[0].Endpoint)
	assert.Equal(t, 12*time.Millisecond, all[0].Latency)

	failed, err := l.List(ctx, models.RequestLogFilter{Failed: true})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 401, failed[0].Status)
}
