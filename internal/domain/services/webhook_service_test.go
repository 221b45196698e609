package services_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
	"scamshield/internal/infrastructure/memory"
	"scamshield/pkg/logger"
)

type capturedDelivery struct {
	header http.Header
	body   []byte
}

type webhookReceiver struct {
	mu         sync.Mutex
	deliveries []capturedDelivery
	failFirst  int32
	calls      atomic.Int32
	got        chan struct{}
}

func newReceiver(failFirst int32) (*webhookReceiver, *httptest.Server) {
	r := &webhookReceiver{failFirst: failFirst, got: make(chan struct{}, 16)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		n := r.calls.Add(1)
		body, _ := io.ReadAll(req.Body)
		if n <= r.failFirst {
			w.WriteHeader(http.StatusInternalServerError)
			r.got <- struct{}{}
			return
		}
		r.mu.Lock()
		r.deliveries = append(r.deliveries, capturedDelivery{header: req.Header.Clone(), body: body})
		r.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		r.got <- struct{}{}
	}))
	return r, srv
}

func (r *webhookReceiver) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.got:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for delivery %d", i+1)
		}
	}
}

func newWebhookService(t *testing.T) (*services.WebhookService, *memory.WebhookStore) {
	t.Helper()
	store := memory.NewWebhookStore()
	svc := services.NewWebhookService(store, &services.WebhookServiceConfig{
		WorkerCount:    2,
		QueueSize:      16,
		DefaultTimeout: 2 * time.Second,
	}, logger.NewNop())
	t.Cleanup(svc.Stop)
	return svc, store
}

func fastRetry(retries int) *models.WebhookRetryConfig {
	return &models.WebhookRetryConfig{
		MaxRetries:    retries,
		RetryInterval: 10 * time.Millisecond,
		BackoffFactor: 2,
		MaxRetryDelay: 50 * time.Millisecond,
	}
}

func TestWebhook_RegisterValidation(t *testing.T) {
	svc, _ := newWebhookService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.CreateWebhookRequest
	}{
		{"relative url", models.CreateWebhookRequest{URL: "/hook", Events: []models.WebhookEventType{models.WebhookEventAll}}},
		{"ftp url", models.CreateWebhookRequest{URL: "ftp://x.example", Events: []models.WebhookEventType{models.WebhookEventAll}}},
		{"no events", models.CreateWebhookRequest{URL: "https://x.example/hook"}},
		{"unknown event", models.CreateWebhookRequest{URL: "https://x.example/hook", Events: []models.WebhookEventType{"user.created"}}},
		{"unknown wildcard", models.CreateWebhookRequest{URL: "https://x.example/hook", Events: []models.WebhookEventType{"user.*"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterWebhook(ctx, &tt.req)
			assert.ErrorIs(t, err, services.ErrInvalidInput)
		})
	}

	reg, err := svc.RegisterWebhook(ctx, &models.CreateWebhookRequest{
		URL:    "https://x.example/hook",
		Events: []models.WebhookEventType{"threat.*"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Secret)
	assert.True(t, reg.Enabled)
	assert.Equal(t, "https://x.example/hook", reg.Name)
	assert.NotNil(t, reg.RetryConfig)
}

func TestWebhook_DeliveryIsSigned(t *testing.T) {
	recv, srv := newReceiver(0)
	defer srv.Close()
	svc, store := newWebhookService(t)
	ctx := context.Background()

	reg, err := svc.RegisterWebhook(ctx, &models.CreateWebhookRequest{
		Name:    "soc",
		URL:     srv.URL,
		Events:  []models.WebhookEventType{"threat.*"},
		Headers: map[string]string{"X-Team": "blue"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.TriggerEvent(ctx, models.WebhookEventThreatDetected, &models.ThreatEventPayload{ScanID: "s1", Risk: 60}))
	require.NoError(t, svc.TriggerEvent(ctx, models.WebhookEventQuotaWarning, &models.QuotaEventPayload{}))
	recv.wait(t, 1)

	recv.mu.Lock()
	require.Len(t, recv.deliveries, 1)
	d := recv.deliveries[0]
	recv.mu.Unlock()

	assert.Equal(t, "threat.detected", d.header.Get("X-Webhook-Event"))
	assert.Equal(t, reg.ID.String(), d.header.Get("X-Webhook-ID"))
	assert.Equal(t, "blue", d.header.Get("X-Team"))
	assert.NotEmpty(t, d.header.Get("X-Webhook-Delivery"))
	assert.NotEmpty(t, d.header.Get("X-Webhook-Timestamp"))
	assert.Equal(t, "sha256="+services.SignPayload(d.body, reg.Secret), d.header.Get("X-Webhook-Signature"))

	var payload struct {
		Event string                    `json:"event"`
		Data  models.ThreatEventPayload `json:"data"`
		Meta  models.WebhookPayloadMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(d.body, &payload))
	assert.Equal(t, "threat.detected", payload.Event)
	assert.Equal(t, "s1", payload.Data.ScanID)
	assert.Equal(t, 1, payload.Meta.AttemptCount)

	assert.Eventually(t, func() bool {
		wh, err := store.Get(ctx, reg.ID)
		return err == nil && wh.SuccessDeliveries == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	recv, srv := newReceiver(2)
	defer srv.Close()
	svc, store := newWebhookService(t)
	ctx := context.Background()

	reg, err := svc.RegisterWebhook(ctx, &models.CreateWebhookRequest{
		URL:         srv.URL,
		Events:      []models.WebhookEventType{models.WebhookEventAll},
		RetryConfig: fastRetry(3),
	})
	require.NoError(t, err)

	require.NoError(t, svc.TriggerEvent(ctx, models.WebhookEventReportDaily, map[string]int{"scans": 1}))
	recv.wait(t, 3)

	assert.Eventually(t, func() bool {
		wh, err := store.Get(ctx, reg.ID)
		return err == nil && wh.TotalDeliveries == 1 && wh.SuccessDeliveries == 1
	}, 2*time.Second, 10*time.Millisecond)

	recv.mu.Lock()
	defer recv.mu.Unlock()
	require.Len(t, recv.deliveries, 1)
	var payload models.WebhookPayload
	require.NoError(t, json.Unmarshal(recv.deliveries[0].body, &payload))
	assert.Equal(t, 3, payload.Meta.AttemptCount)
}

func TestWebhook_GivesUpAfterMaxRetries(t *testing.T) {
	recv, srv := newReceiver(100)
	defer srv.Close()
	svc, store := newWebhookService(t)
	ctx := context.Background()

	reg, err := svc.RegisterWebhook(ctx, &models.CreateWebhookRequest{
		URL:         srv.URL,
		Events:      []models.WebhookEventType{models.WebhookEventAll},
		RetryConfig: fastRetry(1),
	})
	require.NoError(t, err)

	require.NoError(t, svc.TriggerEvent(ctx, models.WebhookEventThreatHighRisk, nil))
	recv.wait(t, 2)

	assert.Eventually(t, func() bool {
		wh, err := store.Get(ctx, reg.ID)
		return err == nil && wh.FailedDeliveries == 1
	}, 2*time.Second, 10*time.Millisecond)

	wh, err := store.Get(ctx, reg.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(wh.LastError, "HTTP 500"))

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalDeliveries)
	assert.Zero(t, stats.SuccessRate)
	assert.EqualValues(t, 1, stats.DeliveriesByEvent["threat.high_risk"])
}

func TestWebhook_DisabledReceivesNothing(t *testing.T) {
	recv, srv := newReceiver(0)
	defer srv.Close()
	svc, _ := newWebhookService(t)
	ctx := context.Background()

	reg, err := svc.RegisterWebhook(ctx, &models.CreateWebhookRequest{URL: srv.URL, Events: []models.WebhookEventType{models.WebhookEventAll}})
	require.NoError(t, err)
	require.NoError(t, svc.DisableWebhook(ctx, reg.ID))

	require.NoError(t, svc.TriggerEvent(ctx, models.WebhookEventThreatDetected, nil))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, recv.calls.Load())

	require.NoError(t, svc.EnableWebhook(ctx, reg.ID))
	require.NoError(t, svc.TriggerEvent(ctx, models.WebhookEventThreatDetected, nil))
	recv.wait(t, 1)
}

func TestWebhook_TestDelivery(t *testing.T) {
	recv, srv := newReceiver(0)
	defer srv.Close()
	svc, _ := newWebhookService(t)
	ctx := context.Background()

	reg, err := svc.RegisterWebhook(ctx, &models.CreateWebhookRequest{URL: srv.URL, Events: []models.WebhookEventType{models.WebhookEventReportDaily}})
	require.NoError(t, err)

	res, err := svc.TestWebhook(ctx, reg.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Empty(t, res.Error)

	recv.mu.Lock()
	require.Len(t, recv.deliveries, 1)
	assert.Equal(t, "test", recv.deliveries[0].header.Get("X-Webhook-Event"))
	recv.mu.Unlock()
}

func TestWebhook_URLIsTrimmed(t *testing.T) {
	recv, srv := newReceiver(0)
	defer srv.Close()
	svc, _ := newWebhookService(t)
	ctx := context.Background()

	reg, err := svc.RegisterWebhook(ctx, &models.CreateWebhookRequest{URL: " " + srv.URL + "\n", Events: []models.WebhookEventType{models.WebhookEventAll}})
	require.NoError(t, err)
	assert.Equal(t, srv.URL, reg.URL)

	res, err := svc.TestWebhook(ctx, reg.ID)
	require.NoError(t, err)
	assert.True(t, res.Success, res.Error)
	assert.EqualValues(t, 1, recv.calls.Load())

	padded := "  " + srv.URL + "/v2 "
	updated, err := svc.UpdateWebhook(ctx, reg.ID, &models.UpdateWebhookRequest{URL: &padded})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/v2", updated.URL)
}

func TestWebhook_UpdateRotateDelete(t *testing.T) {
	svc, _ := newWebhookService(t)
	ctx := context.Background()

	reg, err := svc.RegisterWebhook(ctx, &models.CreateWebhookRequest{URL: "https://a.example", Events: []models.WebhookEventType{models.WebhookEventAll}})
	require.NoError(t, err)

	name := "renamed"
	bad := "not a url"
	_, err = svc.UpdateWebhook(ctx, reg.ID, &models.UpdateWebhookRequest{URL: &bad})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	updated, err := svc.UpdateWebhook(ctx, reg.ID, &models.UpdateWebhookRequest{
		Name:   &name,
		Events: []models.WebhookEventType{models.WebhookEventQuotaWarning},
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, []models.WebhookEventType{models.WebhookEventQuotaWarning}, updated.Events)

	rotated, err := svc.RotateSecret(ctx, reg.ID)
	require.NoError(t, err)
	assert.NotEqual(t, reg.Secret, rotated.Secret)

	list, err := svc.ListWebhooks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeleteWebhook(ctx, reg.ID))
	_, err = svc.GetWebhook(ctx, reg.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
