package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Webhook represents a registered webhook endpoint
type Webhook struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	Name        string              `json:"name" db:"name"`
	URL         string              `json:"url" db:"url"`
	Secret      string              `json:"-" db:"secret"` // For HMAC signing
	Enabled     bool                `json:"enabled" db:"enabled"`
	Events      []WebhookEventType  `json:"events" db:"events"`
	Headers     map[string]string   `json:"headers,omitempty" db:"headers"`
	RetryConfig *WebhookRetryConfig `json:"retry_config,omitempty" db:"retry_config"`

	// Statistics
	TotalDeliveries   int64      `json:"total_deliveries" db:"total_deliveries"`
	SuccessDeliveries int64      `json:"success_deliveries" db:"success_deliveries"`
	FailedDeliveries  int64      `json:"failed_deliveries" db:"failed_deliveries"`
	LastDeliveryAt    *time.Time `json:"last_delivery_at,omitempty" db:"last_delivery_at"`
	LastErrorAt       *time.Time `json:"last_error_at,omitempty" db:"last_error_at"`
	LastError         string     `json:"last_error,omitempty" db:"last_error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// WebhookEventType represents types of events that can trigger webhooks
type WebhookEventType string

const (
	WebhookEventThreatDetected WebhookEventType = "threat.detected"
	WebhookEventThreatHighRisk WebhookEventType = "threat.high_risk"
	WebhookEventQuotaWarning   WebhookEventType = "quota.warning"
	WebhookEventReportDaily    WebhookEventType = "report.daily"
	WebhookEventTest           WebhookEventType = "test"

	// Wildcard for all events
	WebhookEventAll WebhookEventType = "*"
)

// KnownWebhookEvents lists the events a webhook may subscribe to
var KnownWebhookEvents = []WebhookEventType{
	WebhookEventThreatDetected,
	WebhookEventThreatHighRisk,
	WebhookEventQuotaWarning,
	WebhookEventReportDaily,
	WebhookEventAll,
}

// Valid reports whether e is subscribable. Prefix wildcards such as
// "threat.*" are accepted when at least one known event shares the prefix.
func (e WebhookEventType) Valid() bool {
	for _, known := range KnownWebhookEvents {
		if e == known {
			return true
		}
	}
	if prefix, ok := strings.CutSuffix(string(e), ".*"); ok && prefix != "" {
		for _, known := range KnownWebhookEvents {
			if strings.HasPrefix(string(known), prefix+".") {
				return true
			}
		}
	}
	return false
}

// Matches reports whether a subscription to e covers the event
func (e WebhookEventType) Matches(event WebhookEventType) bool {
	if e == WebhookEventAll || e == event {
		return true
	}
	if prefix, ok := strings.CutSuffix(string(e), "*"); ok {
		return strings.HasPrefix(string(event), prefix)
	}
	return false
}

// WebhookRetryConfig configures retry behavior
type WebhookRetryConfig struct {
	MaxRetries    int           `json:"max_retries"`
	RetryInterval time.Duration `json:"retry_interval"`
	BackoffFactor float64       `json:"backoff_factor"`
	MaxRetryDelay time.Duration `json:"max_retry_delay"`
}

// DefaultRetryConfig returns sensible default retry settings
func DefaultRetryConfig() *WebhookRetryConfig {
	return &WebhookRetryConfig{
		MaxRetries:    3,
		RetryInterval: 30 * time.Second,
		BackoffFactor: 2.0,
		MaxRetryDelay: time.Hour,
	}
}

// Delay returns the wait before the given retry attempt (1-based)
func (c *WebhookRetryConfig) Delay(attempt int) time.Duration {
	delay := c.RetryInterval
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.BackoffFactor)
		if delay > c.MaxRetryDelay {
			return c.MaxRetryDelay
		}
	}
	return delay
}

// WebhookDelivery represents a single webhook delivery attempt
type WebhookDelivery struct {
	ID           uuid.UUID        `json:"id"`
	WebhookID    uuid.UUID        `json:"webhook_id"`
	EventType    WebhookEventType `json:"event_type"`
	EventID      string           `json:"event_id"`
	Payload      []byte           `json:"-"`
	Status       DeliveryStatus   `json:"status"`
	StatusCode   int              `json:"status_code,omitempty"`
	Error        string           `json:"error,omitempty"`
	AttemptCount int              `json:"attempt_count"`
	CreatedAt    time.Time        `json:"created_at"`
	DeliveredAt  *time.Time       `json:"delivered_at,omitempty"`
	Duration     time.Duration    `json:"duration,omitempty"`
}

// DeliveryStatus represents the status of a webhook delivery
type DeliveryStatus string

const (
	DeliveryStatusPending  DeliveryStatus = "pending"
	DeliveryStatusSuccess  DeliveryStatus = "success"
	DeliveryStatusFailed   DeliveryStatus = "failed"
	DeliveryStatusRetrying DeliveryStatus = "retrying"
)

// WebhookPayload is the standard payload sent to webhooks
type WebhookPayload struct {
	ID        string              `json:"id"`
	Event     WebhookEventType    `json:"event"`
	Timestamp time.Time           `json:"timestamp"`
	Data      any                 `json:"data"`
	Meta      *WebhookPayloadMeta `json:"meta,omitempty"`
}

// WebhookPayloadMeta contains metadata about the webhook payload
type WebhookPayloadMeta struct {
	WebhookID    string `json:"webhook_id"`
	DeliveryID   string `json:"delivery_id"`
	AttemptCount int    `json:"attempt_count"`
}

// ThreatEventPayload is the payload for threat.* events
type ThreatEventPayload struct {
	ScanID      string       `json:"scan_id"`
	Channel     Channel      `json:"channel"`
	Risk        int          `json:"risk"`
	Category    ScamCategory `json:"category"`
	Tactics     []string     `json:"tactics"`
	Explanation string       `json:"explanation"`
	Engine      ScanEngine   `json:"engine"`
	DetectedAt  time.Time    `json:"detected_at"`
}

// QuotaEventPayload is the payload for quota.warning
type QuotaEventPayload struct {
	KeyID     string `json:"key_id"`
	Label     string `json:"label"`
	MaskedKey string `json:"masked_key"`
	Usage     int64  `json:"usage"`
	Quota     int64  `json:"quota"`
}

// DailyReportPayload is the payload for report.daily
type DailyReportPayload struct {
	PeriodStart time.Time  `json:"period_start"`
	PeriodEnd   time.Time  `json:"period_end"`
	Stats       *ScanStats `json:"stats"`
}

// WebhookStats contains webhook statistics
type WebhookStats struct {
	TotalWebhooks     int64            `json:"total_webhooks"`
	EnabledWebhooks   int64            `json:"enabled_webhooks"`
	TotalDeliveries   int64            `json:"total_deliveries"`
	SuccessRate       float64          `json:"success_rate"`
	DeliveriesByEvent map[string]int64 `json:"deliveries_by_event"`
}

// WebhookTest represents a test delivery result
type WebhookTest struct {
	Success    bool          `json:"success"`
	StatusCode int           `json:"status_code,omitempty"`
	Response   string        `json:"response,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	TestedAt   time.Time     `json:"tested_at"`
}

// CreateWebhookRequest is the input for registering a webhook
type CreateWebhookRequest struct {
	Name        string              `json:"name"`
	URL         string              `json:"url"`
	Events      []WebhookEventType  `json:"events"`
	Headers     map[string]string   `json:"headers,omitempty"`
	RetryConfig *WebhookRetryConfig `json:"retry_config,omitempty"`
}

// UpdateWebhookRequest is the input for editing a webhook
type UpdateWebhookRequest struct {
	Name        *string             `json:"name,omitempty"`
	URL         *string             `json:"url,omitempty"`
	Events      []WebhookEventType  `json:"events,omitempty"`
	Headers     map[string]string   `json:"headers,omitempty"`
	RetryConfig *WebhookRetryConfig `json:"retry_config,omitempty"`
	Enabled     *bool               `json:"enabled,omitempty"`
}

// RegisteredWebhook is returned once on creation or secret rotation so the
// caller can verify signatures
type RegisteredWebhook struct {
	*Webhook
	Secret string `json:"secret"`
}
