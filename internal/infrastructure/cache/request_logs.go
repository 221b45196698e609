package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"scamshield/internal/domain/models"
)

// RequestLogList keeps the newest request logs in a capped Redis list.
// It implements services.RequestLogStore.
type RequestLogList struct {
	cache    *RedisCache
	capacity int64
}

// NewRequestLogList creates a list holding at most capacity entries
func NewRequestLogList(c *RedisCache, capacity int) *RequestLogList {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RequestLogList{cache: c, capacity: int64(capacity)}
}

// Append pushes an entry and trims the list to capacity
func (l *RequestLogList) Append(ctx context.Context, entry *models.RequestLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal request log: %w", err)
	}

	key := l.cache.key(KeyRequestLogs)
	pipe := l.cache.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, l.capacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append request log: %w", err)
	}
	return nil
}

// List returns matching entries newest first
func (l *RequestLogList) List(ctx context.Context, filter models.RequestLogFilter) ([]*models.RequestLog, error) {
	raw, err := l.cache.client.LRange(ctx, l.cache.key(KeyRequestLogs), 0, l.capacity-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read request logs: %w", err)
	}

	out := make([]*models.RequestLog, 0, len(raw))
	for _, item := range raw {
		var entry models.RequestLog
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			l.cache.logger.Warn().Err(err).Msg("skipping malformed request log")
			continue
		}
		if !filter.Match(&entry) {
			continue
		}
		out = append(out, &entry)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
