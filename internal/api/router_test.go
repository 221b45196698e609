package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scamshield/internal/api"
	"scamshield/internal/api/handlers"
	"scamshield/internal/config"
	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
	"scamshield/internal/domain/services/heuristic"
	"scamshield/internal/infrastructure/memory"
	"scamshield/internal/streaming"
	"scamshield/pkg/logger"
)

const (
	bootstrapKey = "sk_test_bootstrap0000000000000000000"
	adminToken   = "admin-secret"
)

type testServer struct {
	srv  *httptest.Server
	keys *services.APIKeyService
	logs *memory.RequestLogRing
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewNop()

	scans := services.NewScanService(
		heuristic.New(heuristic.Config{}),
		nil,
		memory.NewScanStore(),
		memory.NewStatsStore(),
		services.DefaultScanServiceConfig(),
		log,
	)
	keys := services.NewAPIKeyService(memory.NewAPIKeyStore(), services.APIKeyServiceConfig{
		QuotaWarnRatio: 0.8,
		BootstrapKey:   bootstrapKey,
	}, log)
	webhooks := services.NewWebhookService(memory.NewWebhookStore(), services.DefaultWebhookConfig(), log)
	t.Cleanup(webhooks.Stop)

	bus := streaming.NewEventBus(nil, log)
	hub := streaming.NewWebSocketHub(log)
	scans.SetEventPublisher(streaming.NewEventBusPublisher(bus, hub))

	logs := memory.NewRequestLogRing(100)

	h := handlers.NewHandlers(handlers.Dependencies{
		Version:     "test",
		Scans:       scans,
		Keys:        keys,
		Webhooks:    webhooks,
		RequestLogs: logs,
		EventBus:    bus,
		WSHub:       hub,
		Logger:      log,
	})

	cfg := config.Config{}
	cfg.Auth.AdminToken = adminToken
	cfg.CORS.AllowedOrigins = []string{"*"}
	cfg.Server.RequestTimeout = 5 * time.Second

	router := api.NewRouter(cfg, h, keys, logs, nil, log)
	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, keys: keys, logs: logs}
}

func (ts *testServer) do(t *testing.T, method, path, key string, body any) *http.Response {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) issueKey(t *testing.T, perms ...models.Permission) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/v1/keys", bootstrapKey, models.CreateAPIKeyRequest{
		Label:       "test",
		Environment: models.APIKeyEnvTest,
		Permissions: perms,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	issued := decode[models.IssuedAPIKey](t, resp)
	require.True(t, strings.HasPrefix(issued.Key, "sk_test_"))
	return issued.Key
}

func TestPublicRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[handlers.HealthResponse](t, resp)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)

	resp = ts.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/lexicon", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	lex := decode[map[string][]heuristic.TacticPhrases](t, resp)
	assert.Len(t, lex["tactics"], 6)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/scan", "", models.ScanRequest{Text: "hello"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "missing authorization header", decode[handlers.ErrorResponse](t, resp).Error)

	resp = ts.do(t, http.MethodPost, "/api/v1/scan", "sk_live_nope", models.ScanRequest{Text: "hello"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	readOnly := ts.issueKey(t, models.PermScanRead)
	resp = ts.do(t, http.MethodPost, "/api/v1/scan", readOnly, models.ScanRequest{Text: "hello"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/scans", readOnly, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/v1/keys", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Token", "wrong")
	bad, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusForbidden, bad.StatusCode)

	req.Header.Set("X-Admin-Token", adminToken)
	ok, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}

func TestScanFlow(t *testing.T) {
	ts := newTestServer(t)
	key := ts.issueKey(t, models.AllPermissions...)

	resp := ts.do(t, http.MethodPost, "/api/v1/scan", key, models.ScanRequest{
		Text: "URGENT: You won the lottery! Click here to claim your prize now",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[models.ScanRecord](t, resp)
	assert.True(t, rec.Verdict.IsThreat)
	assert.Equal(t, models.ScanEngineHeuristic, rec.Engine)
	require.NotNil(t, rec.APIKeyID)

	resp = ts.do(t, http.MethodPost, "/api/v1/scan", key, models.ScanRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/v1/scan/batch", key, handlers.BatchScanRequest{
		Messages: []*models.ScanRequest{{Text: "See you at lunch"}, {Text: "Your bank account is suspended, verify now"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	batch := decode[models.BatchScanResult](t, resp)
	assert.Equal(t, 2, batch.Total)

	resp = ts.do(t, http.MethodGet, "/api/v1/scans?limit=2", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[models.ScanPage](t, resp)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)

	resp = ts.do(t, http.MethodGet, "/api/v1/scans/"+rec.ID.String(), key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/scans/not-a-uuid", key, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/scans/00000000-0000-0000-0000-000000000001", key, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/v1/scans/"+rec.ID.String()+"/feedback", key, handlers.FeedbackRequest{Feedback: models.FeedbackCorrect})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.FeedbackCorrect, decode[models.ScanRecord](t, resp).Feedback)

	resp = ts.do(t, http.MethodPost, "/api/v1/scans/"+rec.ID.String()+"/feedback", key, handlers.FeedbackRequest{Feedback: "meh"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/stats", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[handlers.StatsResponse](t, resp)
	assert.Equal(t, int64(3), stats.TotalScans)

	resp = ts.do(t, http.MethodGet, "/api/v1/streaming/stats", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), decode[streaming.Stats](t, resp).Published)

	resp = ts.do(t, http.MethodDelete, "/api/v1/scans", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), decode[map[string]int64](t, resp)["deleted"])
}

func TestQuotaExceeded(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/keys", bootstrapKey, models.CreateAPIKeyRequest{Label: "tiny", Quota: 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	key := decode[models.IssuedAPIKey](t, resp).Key

	resp = ts.do(t, http.MethodGet, "/api/v1/scans", key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/scans", key, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestKeyAndWebhookManagement(t *testing.T) {
	ts := newTestServer(t)
	key := ts.issueKey(t, models.PermKeysManage, models.PermWebhooksManage)

	resp := ts.do(t, http.MethodGet, "/api/v1/keys", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		Data  []models.APIKeyView `json:"data"`
		Total int                 `json:"total"`
	}](t, resp)
	require.Equal(t, 1, list.Total)
	id := list.Data[0].ID.String()
	assert.Contains(t, list.Data[0].Masked, "••••••••")

	resp = ts.do(t, http.MethodPost, "/api/v1/keys/"+id+"/regenerate", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fresh := decode[models.IssuedAPIKey](t, resp).Key
	assert.NotEqual(t, key, fresh)

	resp = ts.do(t, http.MethodGet, "/api/v1/keys", key, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/v1/webhooks", fresh, models.CreateWebhookRequest{
		URL:    "ftp://example.com",
		Events: []models.WebhookEventType{models.WebhookEventThreatDetected},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/v1/webhooks", fresh, models.CreateWebhookRequest{
		URL:    "https://hooks.example.com/scamshield",
		Events: []models.WebhookEventType{models.WebhookEventThreatDetected},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	hook := decode[map[string]any](t, resp)
	assert.NotEmpty(t, hook["secret"])
	hookID := hook["id"].(string)

	resp = ts.do(t, http.MethodPost, "/api/v1/webhooks/"+hookID+"/disable", fresh, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decode[map[string]any](t, resp)["enabled"])

	resp = ts.do(t, http.MethodGet, "/api/v1/webhooks/stats", fresh, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/v1/webhooks/"+hookID, fresh, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/v1/keys/"+id, fresh, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRequestLogs(t *testing.T) {
	ts := newTestServer(t)
	key := ts.issueKey(t, models.AllPermissions...)

	ts.do(t, http.MethodGet, "/api/v1/scans", key, nil)
	ts.do(t, http.MethodGet, "/api/v1/scans/bogus", key, nil)
	ts.do(t, http.MethodGet, "/api/v1/lexicon", "", nil)

	// issueKey + two scans calls; the public lexicon is not recorded
	assert.Equal(t, 3, ts.logs.Len())

	resp := ts.do(t, http.MethodGet, "/api/v1/logs?status=errors", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logs := decode[struct {
		Data []models.RequestLog `json:"data"`
	}](t, resp)
	require.Len(t, logs.Data, 1)
	assert.Equal(t, "/api/v1/scans/bogus", logs.Data[0].Endpoint)
	assert.Equal(t, http.StatusBadRequest, logs.Data[0].Status)
	assert.True(t, strings.HasPrefix(logs.Data[0].APIKey, "sk_test_"))

	resp = ts.do(t, http.MethodGet, "/api/v1/logs/export", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "Timestamp,Method,Endpoint,Status,Latency,API Key", lines[0])
	// the export request itself is recorded only after it completes
	assert.Len(t, lines, 1+4)
}
