// Package backend is a typed client for the remote ScamShield REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"scamshield/pkg/logger"
)

const (
	apiPrefix       = "/api/v1"
	maxResponseSize = 4 << 20
)

// Config holds client configuration
type Config struct {
	BaseURL    string // scheme and host, without /api/v1
	Timeout    time.Duration
	HTTPClient *http.Client
	Tokens     TokenStore
}

// Client talks to the backend with bearer auth and a single refresh-and-retry
// on 401
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	logger     *logger.Logger

	refreshMu sync.Mutex
}

// NewClient creates a new backend client
func NewClient(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewMemoryTokenStore(nil)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + apiPrefix,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     log.WithComponent("backend-client"),
	}
}

// IsAuthenticated reports whether an access token is stored
func (c *Client) IsAuthenticated() bool {
	t, err := c.tokens.Load()
	return err == nil && t != nil && t.AccessToken != ""
}

type requestOptions struct {
	// noRefresh skips the refresh-on-401 dance. Used by auth endpoints
	// where 401 means bad credentials rather than an expired session.
	noRefresh bool
	query     map[string]string
}

func (c *Client) get(ctx context.Context, path string, out any, opts ...requestOptions) error {
	return c.do(ctx, http.MethodGet, path, nil, out, mergeOptions(opts))
}

func (c *Client) post(ctx context.Context, path string, in, out any, opts ...requestOptions) error {
	return c.do(ctx, http.MethodPost, path, in, out, mergeOptions(opts))
}

func (c *Client) put(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPut, path, in, out, requestOptions{})
}

func (c *Client) delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out, requestOptions{})
}

func mergeOptions(opts []requestOptions) requestOptions {
	if len(opts) == 0 {
		return requestOptions{}
	}
	return opts[0]
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, opts requestOptions) error {
	status, body, usedToken, err := c.send(ctx, method, path, in, opts)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && !opts.noRefresh {
		if c.refresh(ctx, usedToken) {
			status, body, _, err = c.send(ctx, method, path, in, opts)
			if err != nil {
				return err
			}
		} else {
			if err := c.tokens.Clear(); err != nil {
				c.logger.Warn().Err(err).Msg("failed to clear tokens")
			}
			return ErrSessionExpired
		}
	}

	return decodeResponse(status, body, out)
}

func decodeResponse(status int, body []byte, out any) error {
	if status < 200 || status >= 300 {
		return &APIError{StatusCode: status, Message: extractMessage(body)}
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", ErrInvalidResponse)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// send performs one HTTP exchange and returns the status, the body and the
// access token that was attached
func (c *Client) send(ctx context.Context, method, path string, in any, opts requestOptions) (int, []byte, string, error) {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, "", fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if len(opts.query) > 0 {
		q := req.URL.Query()
		for k, v := range opts.query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	var token string
	if t, err := c.tokens.Load(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to load tokens")
	} else if t != nil && t.AccessToken != "" {
		token = t.AccessToken
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		return 0, nil, token, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, token, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return resp.StatusCode, body, token, nil
}

// refresh exchanges the refresh token for a new access token. Concurrent
// callers that failed with the same stale token share one refresh.
func (c *Client) refresh(ctx context.Context, staleToken string) bool {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current, err := c.tokens.Load()
	if err != nil || current == nil {
		return false
	}
	if current.AccessToken != "" && current.AccessToken != staleToken {
		return true
	}
	if current.RefreshToken == "" {
		return false
	}

	status, body, _, err := c.send(ctx, http.MethodPost, "/auth/refresh",
		map[string]string{"refresh_token": current.RefreshToken}, requestOptions{noRefresh: true})
	if err != nil {
		c.logger.Warn().Err(err).Msg("token refresh failed")
		return false
	}

	var fresh Tokens
	if err := decodeResponse(status, body, &fresh); err != nil || fresh.AccessToken == "" {
		c.logger.Warn().Int("status", status).Msg("token refresh rejected")
		return false
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}
	if err := c.tokens.Save(&fresh); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store refreshed tokens")
		return false
	}

	c.logger.Debug().Msg("access token refreshed")
	return true
}
