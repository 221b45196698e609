package handlers

import (
	"net/http"

	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
	"scamshield/pkg/logger"
)

// WebhooksHandler handles webhook management endpoints
type WebhooksHandler struct {
	webhooks *services.WebhookService
	logger   *logger.Logger
}

// NewWebhooksHandler creates a new WebhooksHandler
func NewWebhooksHandler(webhooks *services.WebhookService, log *logger.Logger) *WebhooksHandler {
	return &WebhooksHandler{
		webhooks: webhooks,
		logger:   log.WithComponent("webhooks-handler"),
	}
}

// List handles GET /api/v1/webhooks
func (h *WebhooksHandler) List(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.webhooks.ListWebhooks(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "list webhooks")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  hooks,
		"total": len(hooks),
	})
}

// Create handles POST /api/v1/webhooks
func (h *WebhooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hook, err := h.webhooks.RegisterWebhook(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "register webhook")
		return
	}
	respondJSON(w, http.StatusCreated, hook)
}

// Get handles GET /api/v1/webhooks/{id}
func (h *WebhooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hook, err := h.webhooks.GetWebhook(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get webhook")
		return
	}
	respondJSON(w, http.StatusOK, hook)
}

// Update handles PATCH /api/v1/webhooks/{id}
func (h *WebhooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.UpdateWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hook, err := h.webhooks.UpdateWebhook(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update webhook")
		return
	}
	respondJSON(w, http.StatusOK, hook)
}

// Delete handles DELETE /api/v1/webhooks/{id}
func (h *WebhooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.webhooks.DeleteWebhook(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete webhook")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Enable handles POST /api/v1/webhooks/{id}/enable
func (h *WebhooksHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// Disable handles POST /api/v1/webhooks/{id}/disable
func (h *WebhooksHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *WebhooksHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if enabled {
		err = h.webhooks.EnableWebhook(r.Context(), id)
	} else {
		err = h.webhooks.DisableWebhook(r.Context(), id)
	}
	if err != nil {
		respondServiceError(w, h.logger, err, "toggle webhook")
		return
	}

	hook, err := h.webhooks.GetWebhook(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get webhook")
		return
	}
	respondJSON(w, http.StatusOK, hook)
}

// Test handles POST /api/v1/webhooks/{id}/test
func (h *WebhooksHandler) Test(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.webhooks.TestWebhook(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "test webhook")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// RotateSecret handles POST /api/v1/webhooks/{id}/rotate-secret
func (h *WebhooksHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hook, err := h.webhooks.RotateSecret(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "rotate webhook secret")
		return
	}
	respondJSON(w, http.StatusOK, hook)
}

// Stats handles GET /api/v1/webhooks/stats
func (h *WebhooksHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.webhooks.GetStats(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "load webhook stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
