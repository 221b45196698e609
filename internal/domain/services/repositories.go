package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"scamshield/internal/backend"
	"scamshield/internal/domain/models"
)

var (
	// ErrNotFound is returned by repositories and services for missing records
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks validation failures; callers map it to 400
	ErrInvalidInput = errors.New("invalid input")
)

// ScanRepository stores scan records
type ScanRepository interface {
	Create(ctx context.Context, rec *models.ScanRecord) error
	Get(ctx context.Context, id uuid.UUID) (*models.ScanRecord, error)
	List(ctx context.Context, filter models.ScanFilter) ([]*models.ScanRecord, int, error)
	UpdateFeedback(ctx context.Context, id uuid.UUID, feedback models.ScanFeedback, comment string) error
	DeleteAll(ctx context.Context) (int64, error)
}

// APIKeyRepository stores API keys by ID and by hash
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) error
	Get(ctx context.Context, id uuid.UUID) (*models.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*models.APIKey, error)
	List(ctx context.Context) ([]*models.APIKey, error)
	Update(ctx context.Context, key *models.APIKey) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ClearPrimary unsets the primary flag on every key except keep
	ClearPrimary(ctx context.Context, keep uuid.UUID) error
	// IncrementUsage bumps usage and last-used time, returning the new usage
	IncrementUsage(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
}

// WebhookRepository stores webhook registrations and their delivery counters
type WebhookRepository interface {
	Create(ctx context.Context, wh *models.Webhook) error
	Get(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	List(ctx context.Context) ([]*models.Webhook, error)
	Update(ctx context.Context, wh *models.Webhook) error
	Delete(ctx context.Context, id uuid.UUID) error
	RecordDelivery(ctx context.Context, id uuid.UUID, success bool, errMsg string, at time.Time) error
}

// StatsStore aggregates scan counters
type StatsStore interface {
	Record(ctx context.Context, rec *models.ScanRecord) error
	Snapshot(ctx context.Context) (*models.ScanStats, error)
	Reset(ctx context.Context) error
}

// RequestLogStore keeps a bounded history of API calls, newest first
type RequestLogStore interface {
	Append(ctx context.Context, entry *models.RequestLog) error
	List(ctx context.Context, filter models.RequestLogFilter) ([]*models.RequestLog, error)
}

// RemoteClassifier is the remote scan backend
type RemoteClassifier interface {
	SubmitScan(ctx context.Context, req *models.ScanRequest) (*backend.ScanResult, error)
}

// EventPublisher pushes completed scans to real-time consumers
type EventPublisher interface {
	PublishScan(ctx context.Context, rec *models.ScanRecord) error
}

// EventTrigger fans an event out to subscribed webhooks
type EventTrigger interface {
	TriggerEvent(ctx context.Context, eventType models.WebhookEventType, data any) error
}
