package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"scamshield/internal/domain/models"
	"scamshield/pkg/logger"
)

// RequestLogAppender stores one API call
type RequestLogAppender interface {
	Append(ctx context.Context, entry *models.RequestLog) error
}

// RequestLog records every authenticated call into store. It must run after
// APIKeyAuth so the masked key is available.
func RequestLog(store RequestLogAppender, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			entry := &models.RequestLog{
				Timestamp: start.UTC(),
				Method:    r.Method,
				Endpoint:  r.URL.Path,
				Status:    status,
				Latency:   time.Since(start),
				RequestID: middleware.GetReqID(r.Context()),
			}
			if key := GetAPIKey(r.Context()); key != nil {
				entry.APIKey = key.MaskedKey()
			}

			// The request context may already be cancelled by now
			if err := store.Append(context.WithoutCancel(r.Context()), entry); err != nil {
				log.Warn().Err(err).Msg("failed to record request log")
			}
		})
	}
}
