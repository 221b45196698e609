package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
	"scamshield/pkg/logger"
)

// csvTimeFormat matches what the dashboard renders
const csvTimeFormat = "2006-01-02 15:04:05"

// LogsHandler serves the request log
type LogsHandler struct {
	store  services.RequestLogStore
	logger *logger.Logger
}

// NewLogsHandler creates a new LogsHandler
func NewLogsHandler(store services.RequestLogStore, log *logger.Logger) *LogsHandler {
	return &LogsHandler{
		store:  store,
		logger: log.WithComponent("logs-handler"),
	}
}

func logFilter(r *http.Request, defLimit int) models.RequestLogFilter {
	q := r.URL.Query()
	f := models.RequestLogFilter{
		Endpoint: q.Get("endpoint"),
		Limit:    queryInt(r, "limit", defLimit),
	}
	// status is either a code or "errors"
	switch s := q.Get("status"); s {
	case "":
	case "errors", "failed":
		f.Failed = true
	default:
		if code, err := strconv.Atoi(s); err == nil {
			f.Status = code
		}
	}
	return f
}

// List handles GET /api/v1/logs
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	logs, err := h.store.List(r.Context(), logFilter(r, 100))
	if err != nil {
		respondServiceError(w, h.logger, err, "list request logs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  logs,
		"total": len(logs),
	})
}

// Export handles GET /api/v1/logs/export
func (h *LogsHandler) Export(w http.ResponseWriter, r *http.Request) {
	logs, err := h.store.List(r.Context(), logFilter(r, 0))
	if err != nil {
		respondServiceError(w, h.logger, err, "export request logs")
		return
	}

	filename := fmt.Sprintf("api-logs-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	if err := WriteRequestLogsCSV(w, logs); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write csv export")
	}
}

// WriteRequestLogsCSV renders logs with the dashboard's export header
func WriteRequestLogsCSV(w io.Writer, logs []*models.RequestLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Timestamp", "Method", "Endpoint", "Status", "Latency", "API Key"}); err != nil {
		return err
	}
	for _, l := range logs {
		row := []string{
			l.Timestamp.UTC().Format(csvTimeFormat),
			l.Method,
			l.Endpoint,
			strconv.Itoa(l.Status),
			fmt.Sprintf("%dms", l.Latency.Milliseconds()),
			l.APIKey,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
