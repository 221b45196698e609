package handlers

import (
	"net/http"
	"strings"

	"scamshield/internal/domain/models"
	"scamshield/internal/streaming"
	"scamshield/pkg/logger"
)

// StreamingHandler handles real-time streaming endpoints
type StreamingHandler struct {
	wsHub    *streaming.WebSocketHub
	eventBus *streaming.EventBus
	logger   *logger.Logger
}

// NewStreamingHandler creates a new streaming handler
func NewStreamingHandler(wsHub *streaming.WebSocketHub, eventBus *streaming.EventBus, log *logger.Logger) *StreamingHandler {
	return &StreamingHandler{
		wsHub:    wsHub,
		eventBus: eventBus,
		logger:   log.WithComponent("streaming-handler"),
	}
}

// subscriptionFromQuery reads ?threats_only=&min_risk=&categories=a,b&channels=SMS
func subscriptionFromQuery(r *http.Request) *streaming.Subscription {
	q := r.URL.Query()
	sub := &streaming.Subscription{
		ThreatsOnly: queryBool(r, "threats_only"),
		MinRisk:     queryInt(r, "min_risk", 0),
	}
	for _, c := range splitList(q.Get("categories")) {
		sub.Categories = append(sub.Categories, models.ParseScamCategory(c))
	}
	for _, c := range splitList(q.Get("channels")) {
		sub.Channels = append(sub.Channels, models.Channel(strings.ToUpper(c)))
	}
	return sub
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// HandleWebSocket handles GET /api/v1/ws
func (h *StreamingHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		respondError(w, http.StatusServiceUnavailable, "websocket streaming not available")
		return
	}

	h.logger.Debug().
		Str("remote_addr", r.RemoteAddr).
		Str("user_agent", r.UserAgent()).
		Msg("WebSocket connection request")

	h.wsHub.ServeWebSocket(w, r, subscriptionFromQuery(r))
}

// GetStats handles GET /api/v1/streaming/stats
func (h *StreamingHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	var stats streaming.Stats
	if h.eventBus != nil {
		stats = h.eventBus.Stats()
	}
	if h.wsHub != nil {
		stats.WebSocketClients = h.wsHub.ClientCount()
	}
	respondJSON(w, http.StatusOK, stats)
}
