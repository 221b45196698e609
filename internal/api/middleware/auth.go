package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
)

// ContextKey is a type for context keys
type ContextKey string

const (
	// ContextKeyAPIKey is the context key for the authenticated *models.APIKey
	ContextKeyAPIKey ContextKey = "api_key"
	// ContextKeyIsAdmin is the context key for admin status
	ContextKeyIsAdmin ContextKey = "is_admin"
)

// Authenticator validates a plaintext API key
type Authenticator interface {
	Authenticate(ctx context.Context, plaintext string) (*models.APIKey, error)
}

// APIKeyAuth returns middleware that resolves the caller's API key. A request
// carrying the configured admin token is accepted without a key.
func APIKeyAuth(auth Authenticator, adminToken string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for CORS preflight
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if adminToken != "" {
				if token := r.Header.Get("X-Admin-Token"); token != "" {
					if subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
						writeError(w, http.StatusForbidden, "invalid admin token")
						return
					}
					ctx := context.WithValue(r.Context(), ContextKeyAPIKey, adminKey())
					ctx = context.WithValue(ctx, ContextKeyIsAdmin, true)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			plaintext, err := extractKey(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			key, err := auth.Authenticate(r.Context(), plaintext)
			if err != nil {
				switch {
				case errors.Is(err, services.ErrQuotaExceeded):
					writeError(w, http.StatusTooManyRequests, err.Error())
				case errors.Is(err, services.ErrInvalidKey),
					errors.Is(err, services.ErrKeyRevoked),
					errors.Is(err, services.ErrKeyExpired):
					writeError(w, http.StatusUnauthorized, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, "authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyAPIKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractKey reads the key from "Authorization: Bearer" or X-API-Key
func extractKey(r *http.Request) (string, error) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

func adminKey() *models.APIKey {
	return &models.APIKey{
		Label:       "admin",
		Environment: models.APIKeyEnvProduction,
		Prefix:      "admin",
		Permissions: models.AllPermissions,
		Status:      models.APIKeyStatusActive,
	}
}

// RequirePermission rejects callers whose key lacks p
func RequirePermission(p models.Permission) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetAPIKey(r.Context())
			if key == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !key.HasPermission(p) {
				writeError(w, http.StatusForbidden, "missing permission "+string(p))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetAPIKey returns the authenticated key from context
func GetAPIKey(ctx context.Context) *models.APIKey {
	if key, ok := ctx.Value(ContextKeyAPIKey).(*models.APIKey); ok {
		return key
	}
	return nil
}

// IsAdmin returns whether the request is from an admin
func IsAdmin(ctx context.Context) bool {
	if isAdmin, ok := ctx.Value(ContextKeyIsAdmin).(bool); ok {
		return isAdmin
	}
	return false
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
