package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	apimiddleware "scamshield/internal/api/middleware"
	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
	"scamshield/pkg/logger"
)

// ScansHandler handles scan, history and stats endpoints
type ScansHandler struct {
	scans  *services.ScanService
	logger *logger.Logger
}

// NewScansHandler creates a new ScansHandler
func NewScansHandler(scans *services.ScanService, log *logger.Logger) *ScansHandler {
	return &ScansHandler{
		scans:  scans,
		logger: log.WithComponent("scans-handler"),
	}
}

// BatchScanRequest is the request body for batch scanning
type BatchScanRequest struct {
	Messages []*models.ScanRequest `json:"messages"`
}

// FeedbackRequest is the request body for scan feedback
type FeedbackRequest struct {
	Feedback models.ScanFeedback `json:"feedback"`
	Comment  string              `json:"comment,omitempty"`
}

// callerKeyID returns the persisted key ID of the caller, or nil for the
// admin token and the bootstrap key
func callerKeyID(r *http.Request) *uuid.UUID {
	key := apimiddleware.GetAPIKey(r.Context())
	if key == nil || key.ID == uuid.Nil {
		return nil
	}
	id := key.ID
	return &id
}

// Scan handles POST /api/v1/scan
func (h *ScansHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req models.ScanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.scans.Scan(r.Context(), &req, callerKeyID(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "scan message")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// ScanBatch handles POST /api/v1/scan/batch
func (h *ScansHandler) ScanBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchScanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.scans.ScanBatch(r.Context(), req.Messages, callerKeyID(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "scan batch")
		return
	}

	h.logger.Info().
		Int("total", result.Total).
		Int("threats", result.Threats).
		Str("duration", result.Duration).
		Msg("batch scanned")

	respondJSON(w, http.StatusOK, result)
}

func scanFilter(r *http.Request) models.ScanFilter {
	return models.ScanFilter{
		ThreatsOnly: queryBool(r, "threats_only"),
		Category:    models.ScamCategory(r.URL.Query().Get("category")),
		Page:        queryInt(r, "page", 1),
		Limit:       queryInt(r, "limit", 20),
	}
}

// List handles GET /api/v1/scans
func (h *ScansHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.scans.History(r.Context(), scanFilter(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list scans")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// Threats handles GET /api/v1/threats
func (h *ScansHandler) Threats(w http.ResponseWriter, r *http.Request) {
	page, err := h.scans.Threats(r.Context(), scanFilter(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list threats")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// Get handles GET /api/v1/scans/{id}
func (h *ScansHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.scans.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get scan")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Feedback handles POST /api/v1/scans/{id}/feedback
func (h *ScansHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req FeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.scans.AddFeedback(r.Context(), id, req.Feedback, req.Comment)
	if err != nil {
		respondServiceError(w, h.logger, err, "record feedback")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Clear handles DELETE /api/v1/scans
func (h *ScansHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.scans.ClearHistory(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "clear scans")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// StatsResponse is the body of GET /api/v1/stats
type StatsResponse struct {
	*models.ScanStats
	ThreatRate float64 `json:"threat_rate"`
}

// Stats handles GET /api/v1/stats
func (h *ScansHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.scans.Stats(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "load stats")
		return
	}
	respondJSON(w, http.StatusOK, StatsResponse{ScanStats: stats, ThreatRate: stats.ThreatRate()})
}

// AnalyzeRequest is the request body for a heuristic-only analysis
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// AnalyzeResponse is a verdict that was neither stored nor published
type AnalyzeResponse struct {
	*models.ScanVerdict
	Highlighted string `json:"highlighted"`
	Engine      string `json:"engine"`
	AnalyzedAt  string `json:"analyzed_at"`
}

// Analyze handles POST /api/v1/analyze: the local heuristic only
func (h *ScansHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	verdict, highlighted := h.scans.Analyze(req.Text)
	respondJSON(w, http.StatusOK, AnalyzeResponse{
		ScanVerdict: verdict,
		Highlighted: highlighted,
		Engine:      string(models.ScanEngineHeuristic),
		AnalyzedAt:  time.Now().UTC().Format(time.RFC3339),
	})
}

// Lexicon handles GET /api/v1/lexicon
func (h *ScansHandler) Lexicon(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"tactics": h.scans.Lexicon()})
}
