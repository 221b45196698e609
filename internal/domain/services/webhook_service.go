package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scamshield/internal/domain/models"
	"scamshield/pkg/logger"
)

const webhookUserAgent = "ScamShield-Webhook/1.0"

// WebhookService manages webhook registrations and deliveries
type WebhookService struct {
	repo          WebhookRepository
	deliveryQueue chan *deliveryJob
	httpClient    *http.Client
	logger        *logger.Logger

	mu          sync.Mutex
	byEvent     map[string]int64
	wg          sync.WaitGroup
	stopCh      chan struct{}
	stopOnce    sync.Once
	workerCount int
}

// deliveryJob represents a webhook delivery job
type deliveryJob struct {
	webhook  *models.Webhook
	delivery *models.WebhookDelivery
	payload  *models.WebhookPayload
}

// WebhookServiceConfig contains configuration for the webhook service
type WebhookServiceConfig struct {
	WorkerCount    int
	QueueSize      int
	DefaultTimeout time.Duration
}

// DefaultWebhookConfig returns sensible defaults
func DefaultWebhookConfig() *WebhookServiceConfig {
	return &WebhookServiceConfig{
		WorkerCount:    4,
		QueueSize:      1000,
		DefaultTimeout: 30 * time.Second,
	}
}

// NewWebhookService creates a new webhook service and starts its workers
func NewWebhookService(repo WebhookRepository, cfg *WebhookServiceConfig, log *logger.Logger) *WebhookService {
	if cfg == nil {
		cfg = DefaultWebhookConfig()
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}

	svc := &WebhookService{
		repo:          repo,
		deliveryQueue: make(chan *deliveryJob, cfg.QueueSize),
		httpClient: &http.Client{
			Timeout: cfg.DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:      log.WithComponent("webhook-service"),
		byEvent:     make(map[string]int64),
		stopCh:      make(chan struct{}),
		workerCount: cfg.WorkerCount,
	}

	svc.startWorkers()

	return svc
}

func (s *WebhookService) startWorkers() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.deliveryWorker(i)
	}
	s.logger.Info().Int("workers", s.workerCount).Msg("webhook delivery workers started")
}

func (s *WebhookService) deliveryWorker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			s.logger.Debug().Int("worker", id).Msg("webhook worker stopping")
			return
		case job := <-s.deliveryQueue:
			s.processDelivery(job)
		}
	}
}

// Stop stops the delivery workers. Pending retries are abandoned.
func (s *WebhookService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.logger.Info().Msg("webhook service stopped")
	})
}

// RegisterWebhook validates and stores a new webhook. The generated secret
// is only returned here and by RotateSecret.
func (s *WebhookService) RegisterWebhook(ctx context.Context, req *models.CreateWebhookRequest) (*models.RegisteredWebhook, error) {
	target, err := normalizeWebhookURL(req.URL)
	if err != nil {
		return nil, err
	}
	if err := validateWebhookEvents(req.Events); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	webhook := &models.Webhook{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		URL:         target,
		Secret:      generateWebhookSecret(),
		Enabled:     true,
		Events:      req.Events,
		Headers:     req.Headers,
		RetryConfig: req.RetryConfig,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if webhook.Name == "" {
		webhook.Name = webhook.URL
	}
	if webhook.RetryConfig == nil {
		webhook.RetryConfig = models.DefaultRetryConfig()
	}

	if err := s.repo.Create(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to store webhook: %w", err)
	}

	s.logger.Info().
		Str("webhook_id", webhook.ID.String()).
		Str("name", webhook.Name).
		Str("url", webhook.URL).
		Int("events", len(webhook.Events)).
		Msg("webhook registered")

	return &models.RegisteredWebhook{Webhook: webhook, Secret: webhook.Secret}, nil
}

// UpdateWebhook applies a partial update
func (s *WebhookService) UpdateWebhook(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error) {
	webhook, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		webhook.Name = strings.TrimSpace(*req.Name)
	}
	if req.URL != nil {
		target, err := normalizeWebhookURL(*req.URL)
		if err != nil {
			return nil, err
		}
		webhook.URL = target
	}
	if req.Events != nil {
		if err := validateWebhookEvents(req.Events); err != nil {
			return nil, err
		}
		webhook.Events = req.Events
	}
	if req.Headers != nil {
		webhook.Headers = req.Headers
	}
	if req.RetryConfig != nil {
		webhook.RetryConfig = req.RetryConfig
	}
	if req.Enabled != nil {
		webhook.Enabled = *req.Enabled
	}
	webhook.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}

	s.logger.Info().
		Str("webhook_id", webhook.ID.String()).
		Str("name", webhook.Name).
		Msg("webhook updated")

	return webhook, nil
}

// DeleteWebhook deletes a webhook
func (s *WebhookService) DeleteWebhook(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("webhook_id", id.String()).Msg("webhook deleted")
	return nil
}

// GetWebhook retrieves a webhook by ID
func (s *WebhookService) GetWebhook(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	return s.repo.Get(ctx, id)
}

// ListWebhooks returns all webhooks
func (s *WebhookService) ListWebhooks(ctx context.Context) ([]*models.Webhook, error) {
	return s.repo.List(ctx)
}

// EnableWebhook enables a webhook
func (s *WebhookService) EnableWebhook(ctx context.Context, id uuid.UUID) error {
	return s.setEnabled(ctx, id, true)
}

// DisableWebhook disables a webhook
func (s *WebhookService) DisableWebhook(ctx context.Context, id uuid.UUID) error {
	return s.setEnabled(ctx, id, false)
}

func (s *WebhookService) setEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	webhook, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	webhook.Enabled = enabled
	webhook.UpdatedAt = time.Now().UTC()
	return s.repo.Update(ctx, webhook)
}

// TriggerEvent queues the event for every enabled webhook subscribed to it
func (s *WebhookService) TriggerEvent(ctx context.Context, eventType models.WebhookEventType, data any) error {
	webhooks, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list webhooks: %w", err)
	}

	var matching []*models.Webhook
	for _, w := range webhooks {
		if w.Enabled && subscribed(w.Events, eventType) {
			matching = append(matching, w)
		}
	}

	if len(matching) == 0 {
		s.logger.Debug().
			Str("event", string(eventType)).
			Msg("no webhooks matched event")
		return nil
	}

	payload := &models.WebhookPayload{
		ID:        uuid.New().String(),
		Event:     eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	for _, webhook := range matching {
		delivery := &models.WebhookDelivery{
			ID:        uuid.New(),
			WebhookID: webhook.ID,
			EventType: eventType,
			EventID:   payload.ID,
			Status:    models.DeliveryStatusPending,
			CreatedAt: time.Now().UTC(),
		}

		payloadCopy := *payload
		payloadCopy.Meta = &models.WebhookPayloadMeta{
			WebhookID:    webhook.ID.String(),
			DeliveryID:   delivery.ID.String(),
			AttemptCount: 1,
		}

		job := &deliveryJob{
			webhook:  webhook,
			delivery: delivery,
			payload:  &payloadCopy,
		}

		select {
		case s.deliveryQueue <- job:
			s.logger.Debug().
				Str("webhook_id", webhook.ID.String()).
				Str("event", string(eventType)).
				Msg("delivery queued")
		default:
			s.logger.Warn().
				Str("webhook_id", webhook.ID.String()).
				Msg("delivery queue full, dropping webhook")
		}
	}

	s.logger.Info().
		Str("event", string(eventType)).
		Int("webhooks", len(matching)).
		Msg("event triggered")

	return nil
}

func subscribed(events []models.WebhookEventType, eventType models.WebhookEventType) bool {
	for _, e := range events {
		if e.Matches(eventType) {
			return true
		}
	}
	return false
}

func (s *WebhookService) processDelivery(job *deliveryJob) {
	job.delivery.AttemptCount++
	job.payload.Meta.AttemptCount = job.delivery.AttemptCount

	payloadBytes, err := json.Marshal(job.payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal webhook payload")
		s.recordFailure(job, "marshal_error", err.Error())
		return
	}
	job.delivery.Payload = payloadBytes

	status, _, duration, err := s.send(context.Background(), job.webhook, job.delivery.EventType, job.delivery.ID.String(), payloadBytes)
	job.delivery.Duration = duration
	job.delivery.StatusCode = status

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("webhook_id", job.webhook.ID.String()).
			Str("url", job.webhook.URL).
			Msg("webhook delivery failed")
		s.handleDeliveryError(job, err.Error())
		return
	}

	s.recordSuccess(job)
	s.logger.Info().
		Str("webhook_id", job.webhook.ID.String()).
		Int("status", status).
		Dur("duration", duration).
		Msg("webhook delivered successfully")
}

// send posts a signed payload. Non-2xx responses are returned as errors.
func (s *WebhookService) send(ctx context.Context, webhook *models.Webhook, event models.WebhookEventType, deliveryID string, body []byte) (int, string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, "", 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	req.Header.Set("X-Webhook-ID", webhook.ID.String())
	req.Header.Set("X-Webhook-Event", string(event))
	req.Header.Set("X-Webhook-Delivery", deliveryID)
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Webhook-Signature", "sha256="+SignPayload(body, webhook.Secret))
	for k, v := range webhook.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		return 0, "", duration, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, string(respBody), duration, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return resp.StatusCode, string(respBody), duration, nil
}

func (s *WebhookService) handleDeliveryError(job *deliveryJob, errMsg string) {
	job.delivery.Error = errMsg

	retryConfig := job.webhook.RetryConfig
	if retryConfig == nil {
		retryConfig = models.DefaultRetryConfig()
	}

	if job.delivery.AttemptCount > retryConfig.MaxRetries {
		s.recordFailure(job, "max_retries", errMsg)
		return
	}

	delay := retryConfig.Delay(job.delivery.AttemptCount)
	job.delivery.Status = models.DeliveryStatusRetrying

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.stopCh:
			return
		}
		select {
		case s.deliveryQueue <- job:
			s.logger.Debug().
				Str("webhook_id", job.webhook.ID.String()).
				Int("attempt", job.delivery.AttemptCount).
				Msg("webhook retry queued")
		case <-s.stopCh:
		}
	}()

	s.logger.Warn().
		Str("webhook_id", job.webhook.ID.String()).
		Int("attempt", job.delivery.AttemptCount).
		Dur("retry_in", delay).
		Msg("webhook delivery will retry")
}

func (s *WebhookService) recordSuccess(job *deliveryJob) {
	now := time.Now().UTC()
	job.delivery.Status = models.DeliveryStatusSuccess
	job.delivery.DeliveredAt = &now

	s.countEvent(job.delivery.EventType)
	if err := s.repo.RecordDelivery(context.Background(), job.webhook.ID, true, "", now); err != nil {
		s.logger.Warn().Err(err).Str("webhook_id", job.webhook.ID.String()).Msg("failed to record delivery")
	}
}

func (s *WebhookService) recordFailure(job *deliveryJob, reason, errMsg string) {
	job.delivery.Status = models.DeliveryStatusFailed
	job.delivery.Error = errMsg

	s.countEvent(job.delivery.EventType)
	if err := s.repo.RecordDelivery(context.Background(), job.webhook.ID, false, errMsg, time.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Str("webhook_id", job.webhook.ID.String()).Msg("failed to record delivery")
	}

	s.logger.Error().
		Str("webhook_id", job.webhook.ID.String()).
		Str("reason", reason).
		Str("error", errMsg).
		Msg("webhook delivery failed permanently")
}

func (s *WebhookService) countEvent(event models.WebhookEventType) {
	s.mu.Lock()
	s.byEvent[string(event)]++
	s.mu.Unlock()
}

// SignPayload returns the hex HMAC-SHA256 of payload under secret
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// TestWebhook sends a synchronous test event and reports the outcome
func (s *WebhookService) TestWebhook(ctx context.Context, id uuid.UUID) (*models.WebhookTest, error) {
	webhook, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	deliveryID := uuid.New().String()
	payload := &models.WebhookPayload{
		ID:        uuid.New().String(),
		Event:     models.WebhookEventTest,
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"message":      "This is a test webhook delivery from ScamShield",
			"webhook_id":   webhook.ID.String(),
			"webhook_name": webhook.Name,
		},
		Meta: &models.WebhookPayloadMeta{
			WebhookID:    webhook.ID.String(),
			DeliveryID:   deliveryID,
			AttemptCount: 1,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return &models.WebhookTest{Error: err.Error(), TestedAt: time.Now().UTC()}, nil
	}

	status, body, duration, err := s.send(ctx, webhook, models.WebhookEventTest, deliveryID, payloadBytes)
	result := &models.WebhookTest{
		Success:    err == nil,
		StatusCode: status,
		Response:   body,
		Duration:   duration,
		TestedAt:   time.Now().UTC(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result, nil
}

// GetStats returns webhook statistics
func (s *WebhookService) GetStats(ctx context.Context) (*models.WebhookStats, error) {
	webhooks, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}

	stats := &models.WebhookStats{DeliveriesByEvent: make(map[string]int64)}

	var totalSuccess int64
	for _, w := range webhooks {
		stats.TotalWebhooks++
		if w.Enabled {
			stats.EnabledWebhooks++
		}
		stats.TotalDeliveries += w.TotalDeliveries
		totalSuccess += w.SuccessDeliveries
	}

	if stats.TotalDeliveries > 0 {
		stats.SuccessRate = float64(totalSuccess) / float64(stats.TotalDeliveries) * 100
	}

	s.mu.Lock()
	for k, v := range s.byEvent {
		stats.DeliveriesByEvent[k] = v
	}
	s.mu.Unlock()

	return stats, nil
}

// RotateSecret replaces the signing secret and returns the new one
func (s *WebhookService) RotateSecret(ctx context.Context, id uuid.UUID) (*models.RegisteredWebhook, error) {
	webhook, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	webhook.Secret = generateWebhookSecret()
	webhook.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}

	s.logger.Info().
		Str("webhook_id", id.String()).
		Msg("webhook secret rotated")

	return &models.RegisteredWebhook{Webhook: webhook, Secret: webhook.Secret}, nil
}

// normalizeWebhookURL trims raw and checks it is an absolute http(s) URL
func normalizeWebhookURL(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	u, err := url.Parse(target)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: webhook url must be an absolute http(s) URL", ErrInvalidInput)
	}
	return target, nil
}

func validateWebhookEvents(events []models.WebhookEventType) error {
	if len(events) == 0 {
		return fmt.Errorf("%w: at least one event is required", ErrInvalidInput)
	}
	var errs []error
	for _, e := range events {
		if !e.Valid() {
			errs = append(errs, fmt.Errorf("unknown event %q", e))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

func generateWebhookSecret() string {
	return uuid.New().String() + "-" + uuid.New().String()
}
