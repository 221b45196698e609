package backend

import (
	"context"
	"net/url"
	"strconv"
)

// Profile returns the logged-in user
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/users/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile edits the logged-in user
func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*User, error) {
	var u User
	if err := c.put(ctx, "/users/me", upd, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Settings returns the user's preferences
func (c *Client) Settings(ctx context.Context) (*UserSettings, error) {
	var s UserSettings
	if err := c.get(ctx, "/users/me/settings", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings replaces the user's preferences
func (c *Client) UpdateSettings(ctx context.Context, s UserSettings) (*UserSettings, error) {
	var out UserSettings
	if err := c.put(ctx, "/users/me/settings", s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserStats returns the user's scan counters
func (c *Client) UserStats(ctx context.Context) (*UserStats, error) {
	var s UserStats
	if err := c.get(ctx, "/users/me/stats", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Threats lists threats, optionally filtered by status
func (c *Client) Threats(ctx context.Context, page, limit int, status string) (*ThreatList, error) {
	query := pageQuery(page, limit)
	if status != "" {
		query["status"] = status
	}
	var resp ThreatList
	if err := c.get(ctx, "/threats/", &resp, requestOptions{query: query}); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Threat returns one threat
func (c *Client) Threat(ctx context.Context, id string) (*Threat, error) {
	var t Threat
	if err := c.get(ctx, "/threats/"+url.PathEscape(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ReportThreat submits a message the user believes is a scam
func (c *Client) ReportThreat(ctx context.Context, r ThreatReport) (*Threat, error) {
	if r.Channel == "" {
		r.Channel = "SMS"
	}
	var t Threat
	if err := c.post(ctx, "/threats/report", r, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// WhitelistThreat marks a threat as a false alarm
func (c *Client) WhitelistThreat(ctx context.Context, id string) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.post(ctx, "/threats/"+url.PathEscape(id)+"/whitelist", struct{}{}, &resp)
	return &resp, err
}

// DeleteThreat removes a threat
func (c *Client) DeleteThreat(ctx context.Context, id string) error {
	return c.delete(ctx, "/threats/"+url.PathEscape(id), nil)
}

// DashboardStats returns the analytics dashboard document
func (c *Client) DashboardStats(ctx context.Context) (Analytics, error) {
	var a Analytics
	err := c.get(ctx, "/analytics/dashboard", &a)
	return a, err
}

// Trends returns scan trends for the last days
func (c *Client) Trends(ctx context.Context, days int) (Analytics, error) {
	if days <= 0 {
		days = 30
	}
	var a Analytics
	err := c.get(ctx, "/analytics/trends", &a, requestOptions{query: map[string]string{"days": strconv.Itoa(days)}})
	return a, err
}

// Breakdown returns scam counts by type
func (c *Client) Breakdown(ctx context.Context) (Analytics, error) {
	var a Analytics
	err := c.get(ctx, "/analytics/breakdown", &a)
	return a, err
}

// GlobalStats returns public platform statistics
func (c *Client) GlobalStats(ctx context.Context) (Analytics, error) {
	var a Analytics
	err := c.get(ctx, "/analytics/global", &a)
	return a, err
}

// Plans lists subscription plans
func (c *Client) Plans(ctx context.Context) ([]Plan, error) {
	var plans []Plan
	if err := c.get(ctx, "/subscriptions/plans", &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// Subscription returns the caller's subscription
func (c *Client) Subscription(ctx context.Context) (*Subscription, error) {
	var s Subscription
	if err := c.get(ctx, "/subscriptions/me", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Subscribe switches to a plan. billingPeriod defaults to monthly.
func (c *Client) Subscribe(ctx context.Context, planID, billingPeriod string) (*Subscription, error) {
	if billingPeriod == "" {
		billingPeriod = "monthly"
	}
	var s Subscription
	err := c.post(ctx, "/subscriptions/subscribe", map[string]string{
		"plan_id":        planID,
		"billing_period": billingPeriod,
	}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CancelSubscription cancels the current plan
func (c *Client) CancelSubscription(ctx context.Context, reason string) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.post(ctx, "/subscriptions/cancel", map[string]*string{"reason": optional(reason)}, &resp)
	return &resp, err
}

// Usage returns consumption for the current period
func (c *Client) Usage(ctx context.Context) (*Usage, error) {
	var u Usage
	if err := c.get(ctx, "/subscriptions/usage", &u); err != nil {
		return nil, err
	}
	return &u, nil
}
