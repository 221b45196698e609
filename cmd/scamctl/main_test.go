package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScanOffline(t *testing.T) {
	out, err := run(t, "scan", "--offline", "--seed", "7", "URGENT: you won the lottery, click here")
	require.NoError(t, err)

	var rec struct {
		Engine  string `json:"engine"`
		Channel string `json:"channel"`
		Verdict struct {
			IsThreat bool     `json:"is_threat"`
			Risk     int      `json:"risk"`
			Tactics  []string `json:"tactics"`
		} `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "heuristic", rec.Engine)
	assert.Equal(t, "SMS", rec.Channel)
	assert.True(t, rec.Verdict.IsThreat)
	assert.Contains(t, rec.Verdict.Tactics, "money")
	assert.GreaterOrEqual(t, rec.Verdict.Risk, 45)
}

func TestScanHighlight(t *testing.T) {
	out, err := run(t, "scan", "--offline", "--highlight", "--channel", "email", "Dear friend")
	require.NoError(t, err)
	assert.Equal(t, `<span class="highlight-danger">Dear</span> friend`, strings.TrimSpace(out))
}

func TestScanRequiresText(t *testing.T) {
	_, err := run(t, "scan", "--offline")
	assert.Error(t, err)
}

func TestLexicon(t *testing.T) {
	out, err := run(t, "lexicon")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "urgency"))
	assert.Contains(t, lines[5], "bank details")
}

func TestLoginWhoamiLogout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tokens":{"access_token":"at","refresh_token":"rt"},"user":{"id":"u1","email":"a@b.c","full_name":"Ada"}}`))
	})
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"u1","email":"a@b.c","full_name":"Ada"}`))
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tokenFile := filepath.Join(t.TempDir(), "tokens.json")
	common := []string{"--api-url", srv.URL, "--token-file", tokenFile}

	_, err := run(t, append([]string{"whoami"}, common...)...)
	assert.EqualError(t, err, "not logged in")

	out, err := run(t, append([]string{"login", "--email", "a@b.c", "--password", "pw"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "Logged in as Ada\n", out)

	out, err = run(t, append([]string{"whoami"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"email": "a@b.c"`)

	out, err = run(t, append([]string{"logout"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "Logged out\n", out)

	_, err = run(t, append([]string{"whoami"}, common...)...)
	assert.EqualError(t, err, "not logged in")
}
