package backend

import (
	"context"
	"net/url"
	"strconv"

	"scamshield/internal/domain/models"
)

// SubmitScan sends a message to the remote classifier
func (c *Client) SubmitScan(ctx context.Context, req *models.ScanRequest) (*ScanResult, error) {
	channel := string(req.Channel)
	if channel == "" {
		channel = string(models.ChannelSMS)
	}

	var resp ScanResult
	err := c.post(ctx, "/scans/", ScanSubmission{
		MessageText: req.Text,
		Channel:     channel,
		SenderInfo:  optional(req.SenderInfo),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanHistory returns a page of the caller's scans
func (c *Client) ScanHistory(ctx context.Context, q HistoryQuery) (*ScanHistory, error) {
	query := pageQuery(q.Page, q.Limit)
	if q.ScamsOnly != nil {
		query["scams_only"] = strconv.FormatBool(*q.ScamsOnly)
	}

	var resp ScanHistory
	if err := c.get(ctx, "/scans/history", &resp, requestOptions{query: query}); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanDetail returns one scan
func (c *Client) ScanDetail(ctx context.Context, id string) (*ScanResult, error) {
	var resp ScanResult
	if err := c.get(ctx, "/scans/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanFeedback records the user's opinion of a verdict
func (c *Client) ScanFeedback(ctx context.Context, id, feedback, comment string) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.post(ctx, "/scans/"+url.PathEscape(id)+"/feedback", FeedbackRequest{
		Feedback: feedback,
		Comment:  optional(comment),
	}, &resp)
	return &resp, err
}

func pageQuery(page, limit int) map[string]string {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return map[string]string{
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(limit),
	}
}
