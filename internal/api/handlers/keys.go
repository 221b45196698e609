package handlers

import (
	"net/http"

	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
	"scamshield/pkg/logger"
)

// KeysHandler handles API key management endpoints
type KeysHandler struct {
	keys   *services.APIKeyService
	logger *logger.Logger
}

// NewKeysHandler creates a new KeysHandler
func NewKeysHandler(keys *services.APIKeyService, log *logger.Logger) *KeysHandler {
	return &KeysHandler{
		keys:   keys,
		logger: log.WithComponent("keys-handler"),
	}
}

// List handles GET /api/v1/keys
func (h *KeysHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "list api keys")
		return
	}

	views := make([]models.APIKeyView, len(keys))
	for i, k := range keys {
		views[i] = k.View()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  views,
		"total": len(views),
	})
}

// Create handles POST /api/v1/keys
func (h *KeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	issued, err := h.keys.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create api key")
		return
	}
	respondJSON(w, http.StatusCreated, issued)
}

// Get handles GET /api/v1/keys/{id}
func (h *KeysHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.keys.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get api key")
		return
	}
	respondJSON(w, http.StatusOK, key.View())
}

// Update handles PATCH /api/v1/keys/{id}
func (h *KeysHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.UpdateAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.keys.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update api key")
		return
	}
	respondJSON(w, http.StatusOK, key.View())
}

// Regenerate handles POST /api/v1/keys/{id}/regenerate
func (h *KeysHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	issued, err := h.keys.Regenerate(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "regenerate api key")
		return
	}
	respondJSON(w, http.StatusOK, issued)
}

// Revoke handles POST /api/v1/keys/{id}/revoke
func (h *KeysHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.keys.Revoke(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "revoke api key")
		return
	}
	respondJSON(w, http.StatusOK, key.View())
}

// Delete handles DELETE /api/v1/keys/{id}
func (h *KeysHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.keys.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete api key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
