package handlers

import (
	"scamshield/internal/domain/services"
	"scamshield/internal/streaming"
	"scamshield/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health    *HealthHandler
	Scans     *ScansHandler
	Keys      *KeysHandler
	Webhooks  *WebhooksHandler
	Logs      *LogsHandler
	Streaming *StreamingHandler
}

// Dependencies holds dependencies for handlers
type Dependencies struct {
	Version     string
	Scans       *services.ScanService
	Keys        *services.APIKeyService
	Webhooks    *services.WebhookService
	RequestLogs services.RequestLogStore
	EventBus    *streaming.EventBus
	WSHub       *streaming.WebSocketHub
	// Checks are pinged by /ready; nil entries are ignored
	Checks map[string]Pinger
	Logger *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Checks, deps.Logger),
		Scans:     NewScansHandler(deps.Scans, deps.Logger),
		Keys:      NewKeysHandler(deps.Keys, deps.Logger),
		Webhooks:  NewWebhooksHandler(deps.Webhooks, deps.Logger),
		Logs:      NewLogsHandler(deps.RequestLogs, deps.Logger),
		Streaming: NewStreamingHandler(deps.WSHub, deps.EventBus, deps.Logger),
	}
}
