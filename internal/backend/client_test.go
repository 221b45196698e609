package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scamshield/internal/domain/models"
	"scamshield/pkg/logger"
)

func newTestClient(t *testing.T, h http.Handler, tokens *Tokens) (*Client, *MemoryTokenStore) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := NewMemoryTokenStore(tokens)
	return NewClient(Config{BaseURL: srv.URL, Tokens: store}, logger.NewNop()), store
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestSubmitScan(t *testing.T) {
	var got ScanSubmission
	var auth string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/scans/", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"is_scam":        true,
			"confidence":     0.874,
			"scam_type":      "lottery",
			"indicators":     []string{"money", "urgency"},
			"recommendation": "Do not reply.",
			"extracted_urls": []string{"http://win.example"},
		})
	})

	c, _ := newTestClient(t, mux, &Tokens{AccessToken: "access-1"})
	res, err := c.SubmitScan(context.Background(), &models.ScanRequest{Text: "you won"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer access-1", auth)
	assert.Equal(t, "you won", got.MessageText)
	assert.Equal(t, "SMS", got.Channel)
	assert.Nil(t, got.SenderInfo)

	assert.True(t, res.IsScam)
	assert.InDelta(t, 0.874, res.Confidence, 1e-9)
	assert.Equal(t, "lottery", res.ScamType)
	assert.Equal(t, []string{"money", "urgency"}, res.Indicators)
	assert.Equal(t, []string{"http://win.example"}, res.ExtractedURLs)
}

func TestRefreshAndRetryOnce(t *testing.T) {
	var refreshCalls, profileCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		profileCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, User{ID: "u1", Email: "a@b.c"})
	})
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "refresh-1", body["refresh_token"])
		writeJSON(w, http.StatusOK, Tokens{AccessToken: "fresh"})
	})

	c, store := newTestClient(t, mux, &Tokens{AccessToken: "stale", RefreshToken: "refresh-1"})
	u, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(2), profileCalls.Load())

	tok, _ := store.Load()
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken, "refresh token is kept when the server omits it")
}

func TestRefreshFailureExpiresSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
	})
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid refresh token"})
	})

	c, store := newTestClient(t, mux, &Tokens{AccessToken: "stale", RefreshToken: "bad"})
	_, err := c.Profile(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)

	tok, _ := store.Load()
	assert.Nil(t, tok)
	assert.False(t, c.IsAuthenticated())
}

func TestSecond401IsReturnedAsAPIError(t *testing.T) {
	var profileCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/me/stats", func(w http.ResponseWriter, r *http.Request) {
		profileCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "nope"})
	})
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Tokens{AccessToken: "fresh", RefreshToken: "r2"})
	})

	c, _ := newTestClient(t, mux, &Tokens{AccessToken: "stale", RefreshToken: "r1"})
	_, err := c.UserStats(context.Background())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, int32(2), profileCalls.Load())
}

func TestLoginStoresTokensAndBadCredentialsAreNotExpiry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "Secret123" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, AuthResponse{
			Tokens: &Tokens{AccessToken: "a", RefreshToken: "r", TokenType: "bearer", ExpiresIn: 1800},
			User:   &User{Email: body["email"]},
		})
	})

	c, store := newTestClient(t, mux, nil)

	_, err := c.Login(context.Background(), "a@b.c", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid email or password", apiErr.Message)
	assert.False(t, errors.Is(err, ErrSessionExpired))

	resp, err := c.Login(context.Background(), "a@b.c", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", resp.User.Email)

	tok, _ := store.Load()
	require.NotNil(t, tok)
	assert.Equal(t, "a", tok.AccessToken)
	assert.Equal(t, 1800, tok.ExpiresIn)
}

func TestLogoutClearsTokensEvenOnFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c, store := newTestClient(t, mux, &Tokens{AccessToken: "a"})
	require.NoError(t, c.Logout(context.Background()))
	tok, _ := store.Load()
	assert.Nil(t, tok)
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail string", `{"detail":"Scan not found"}`, "Scan not found"},
		{"detail list", `{"detail":[{"msg":"field required"},{"msg":"too short"}]}`, "field required; too short"},
		{"message", `{"message":"quota exceeded"}`, "quota exceeded"},
		{"error", `{"error":"bad input"}`, "bad input"},
		{"detail wins", `{"detail":"d","message":"m","error":"e"}`, "d"},
		{"empty object", `{}`, "request failed"},
		{"not json", `<html>oops</html>`, "request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractMessage([]byte(tt.body)))
		})
	}
}

func TestUnavailableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, logger.NewNop())
	_, err := c.SubmitScan(context.Background(), &models.ScanRequest{Text: "hi"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestInvalidResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/scans/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	})

	c, _ := newTestClient(t, mux, nil)
	_, err := c.SubmitScan(context.Background(), &models.ScanRequest{Text: "hi"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestEmptyBodyIsInvalidResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/scans/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c, _ := newTestClient(t, mux, nil)
	res, err := c.SubmitScan(context.Background(), &models.ScanRequest{Text: "hi"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.Nil(t, res)
}

func TestScanHistoryQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/scans/history", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "true", q.Get("scams_only"))
		writeJSON(w, http.StatusOK, ScanHistory{
			Items: []ScanSummary{{ID: "s1", MessagePreview: "You won", IsScam: true, Confidence: 0.9}},
			Total: 1,
		})
	})

	c, _ := newTestClient(t, mux, &Tokens{AccessToken: "a"})
	scamsOnly := true
	h, err := c.ScanHistory(context.Background(), HistoryQuery{Page: 2, Limit: 50, ScamsOnly: &scamsOnly})
	require.NoError(t, err)
	require.Len(t, h.Items, 1)
	assert.Equal(t, "You won", h.Items[0].MessagePreview)
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	store := NewFileTokenStore(path)

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, tok)

	require.NoError(t, store.Save(&Tokens{AccessToken: "a", RefreshToken: "r"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "r", tok.RefreshToken)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	tok, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, tok)
}
