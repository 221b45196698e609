package backend

import (
	"context"
	"fmt"
)

// Register creates an account and stores the issued tokens
func (c *Client) Register(ctx context.Context, email, password, fullName, phone string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.post(ctx, "/auth/register", RegisterRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
		Phone:    optional(phone),
	}, &resp, requestOptions{noRefresh: true})
	if err != nil {
		return nil, err
	}
	if err := c.storeTokens(resp.Tokens); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login authenticates and stores the issued tokens
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp, requestOptions{noRefresh: true})
	if err != nil {
		return nil, err
	}
	if err := c.storeTokens(resp.Tokens); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout notifies the backend and always clears local tokens
func (c *Client) Logout(ctx context.Context) error {
	if err := c.post(ctx, "/auth/logout", struct{}{}, nil, requestOptions{noRefresh: true}); err != nil {
		c.logger.Debug().Err(err).Msg("logout request failed, clearing tokens anyway")
	}
	return c.tokens.Clear()
}

// Refresh forces a token refresh
func (c *Client) Refresh(ctx context.Context) error {
	if !c.refresh(ctx, "") {
		return ErrSessionExpired
	}
	return nil
}

// ForgotPassword requests a password reset mail
func (c *Client) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.post(ctx, "/auth/forgot-password", map[string]string{"email": email}, &resp, requestOptions{noRefresh: true})
	return &resp, err
}

// ResetPassword completes a reset with the mailed token
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.post(ctx, "/auth/reset-password", map[string]string{
		"token":        token,
		"new_password": newPassword,
	}, &resp, requestOptions{noRefresh: true})
	return &resp, err
}

// ChangePassword changes the password of the logged-in user
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.post(ctx, "/auth/change-password", map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	}, &resp)
	return &resp, err
}

// GoogleAuthURL returns the OAuth consent URL
func (c *Client) GoogleAuthURL(ctx context.Context) (Analytics, error) {
	var resp Analytics
	err := c.get(ctx, "/auth/google", &resp, requestOptions{noRefresh: true})
	return resp, err
}

// GoogleTokenLogin logs in with a Google ID token
func (c *Client) GoogleTokenLogin(ctx context.Context, idToken string) (*AuthResponse, error) {
	return c.oauthLogin(ctx, "/auth/google/token", map[string]string{"id_token": idToken})
}

// GoogleCodeLogin logs in with a Google authorization code
func (c *Client) GoogleCodeLogin(ctx context.Context, code, redirectURI string) (*AuthResponse, error) {
	body := map[string]string{"code": code}
	if redirectURI != "" {
		body["redirect_uri"] = redirectURI
	}
	return c.oauthLogin(ctx, "/auth/google/code", body)
}

// GitHubAuthURL returns the GitHub OAuth consent URL
func (c *Client) GitHubAuthURL(ctx context.Context) (Analytics, error) {
	var resp Analytics
	err := c.get(ctx, "/auth/github", &resp, requestOptions{noRefresh: true})
	return resp, err
}

// GitHubCodeLogin logs in with a GitHub OAuth code
func (c *Client) GitHubCodeLogin(ctx context.Context, code string) (*AuthResponse, error) {
	return c.oauthLogin(ctx, "/auth/github/code", map[string]string{"code": code})
}

func (c *Client) oauthLogin(ctx context.Context, path string, body map[string]string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.post(ctx, path, body, &resp, requestOptions{noRefresh: true}); err != nil {
		return nil, err
	}
	if err := c.storeTokens(resp.Tokens); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) storeTokens(t *Tokens) error {
	if t == nil || t.AccessToken == "" {
		return nil
	}
	if err := c.tokens.Save(t); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	return nil
}
