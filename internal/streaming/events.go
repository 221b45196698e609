package streaming

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"scamshield/internal/domain/models"
)

// EventType represents the type of scan event
type EventType string

const (
	EventTypeScanCompleted  EventType = "scan_completed"
	EventTypeThreatDetected EventType = "threat_detected"
)

// previewLength caps the message excerpt carried on the wire
const previewLength = 120

// ScanEvent represents a real-time scan result
type ScanEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Origin is the instance that published the event
	Origin string `json:"origin,omitempty"`

	ScanID      string              `json:"scan_id"`
	Channel     models.Channel      `json:"channel"`
	Engine      models.ScanEngine   `json:"engine"`
	IsThreat    bool                `json:"is_threat"`
	Risk        int                 `json:"risk"`
	Category    models.ScamCategory `json:"category"`
	Tactics     []string            `json:"tactics,omitempty"`
	Explanation string              `json:"explanation,omitempty"`
	Preview     string              `json:"preview,omitempty"`
	APIKeyID    string              `json:"api_key_id,omitempty"`
}

// NewScanEvent creates a new event from a stored scan
func NewScanEvent(rec *models.ScanRecord) *ScanEvent {
	eventType := EventTypeScanCompleted
	if rec.Verdict.IsThreat {
		eventType = EventTypeThreatDetected
	}

	event := &ScanEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ScanID:      rec.ID.String(),
		Channel:     rec.Channel,
		Engine:      rec.Engine,
		IsThreat:    rec.Verdict.IsThreat,
		Risk:        rec.Verdict.Risk,
		Category:    rec.Verdict.Category,
		Tactics:     rec.Verdict.Tactics.Strings(),
		Explanation: rec.Verdict.Explanation,
		Preview:     preview(rec.Text),
	}

	if rec.APIKeyID != nil {
		event.APIKeyID = rec.APIKeyID.String()
	}

	return event
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLength {
		return text
	}
	return string(r[:previewLength]) + "…"
}

// Verdict returns the subject token for the event's outcome
func (e *ScanEvent) Verdict() string {
	if e.IsThreat {
		return "threat"
	}
	return "safe"
}

// Subscription represents a client's subscription preferences
type Subscription struct {
	// Only deliver scans classified as threats
	ThreatsOnly bool `json:"threats_only,omitempty"`

	// Minimum risk score (0 = all)
	MinRisk int `json:"min_risk,omitempty"`

	// Filter by category (empty = all)
	Categories []models.ScamCategory `json:"categories,omitempty"`

	// Filter by channel (empty = all)
	Channels []models.Channel `json:"channels,omitempty"`
}

// Matches checks if an event matches the subscription filters
func (s *Subscription) Matches(event *ScanEvent) bool {
	if s == nil {
		return true
	}
	if s.ThreatsOnly && !event.IsThreat {
		return false
	}
	if event.Risk < s.MinRisk {
		return false
	}
	if len(s.Categories) > 0 && !slices.Contains(s.Categories, event.Category) {
		return false
	}
	if len(s.Channels) > 0 && !slices.Contains(s.Channels, event.Channel) {
		return false
	}
	return true
}
