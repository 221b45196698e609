package models

import (
	"strings"
	"time"
)

// RequestLog is one recorded API call
type RequestLog struct {
	Timestamp time.Time     `json:"timestamp"`
	Method    string        `json:"method"`
	Endpoint  string        `json:"endpoint"`
	Status    int           `json:"status"`
	Latency   time.Duration `json:"latency"`
	APIKey    string        `json:"api_key"`
	RequestID string        `json:"request_id,omitempty"`
}

// RequestLogFilter narrows a request log listing
type RequestLogFilter struct {
	Status   int    // exact status; 0 means any
	Failed   bool   // only status >= 400
	Endpoint string // substring match
	Limit    int
}

// Match reports whether l satisfies the filter
func (f RequestLogFilter) Match(l *RequestLog) bool {
	if f.Status != 0 && l.Status != f.Status {
		return false
	}
	if f.Failed && l.Status < 400 {
		return false
	}
	if f.Endpoint != "" && !strings.Contains(strings.ToLower(l.Endpoint), strings.ToLower(f.Endpoint)) {
		return false
	}
	return true
}
