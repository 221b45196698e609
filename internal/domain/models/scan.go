package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tactic is a manipulation technique detected in a message
type Tactic string

const (
	TacticUrgency   Tactic = "urgency"
	TacticMoney     Tactic = "money"
	TacticFear      Tactic = "fear"
	TacticAuthority Tactic = "authority"
	TacticPersonal  Tactic = "personal"
	TacticAction    Tactic = "action"
)

// MatchSet is the ordered set of tactics found in a message
type MatchSet []Tactic

// Contains reports whether t is in the set
func (m MatchSet) Contains(t Tactic) bool {
	for _, x := range m {
		if x == t {
			return true
		}
	}
	return false
}

// Len returns the number of distinct tactics
func (m MatchSet) Len() int {
	return len(m)
}

// Strings returns the tactics as plain strings
func (m MatchSet) Strings() []string {
	out := make([]string, len(m))
	for i, t := range m {
		out[i] = string(t)
	}
	return out
}

// ScamCategory is the coarse label attached to a verdict
type ScamCategory string

const (
	ScamCategoryLottery  ScamCategory = "lottery"
	ScamCategoryPhishing ScamCategory = "phishing"
	ScamCategoryRomance  ScamCategory = "romance"
	ScamCategoryTech     ScamCategory = "tech"
	ScamCategoryNone     ScamCategory = "none"
)

// ParseScamCategory maps a free-form label (as returned by the remote
// backend) onto a category. Unknown labels are kept verbatim.
func ParseScamCategory(s string) ScamCategory {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ScamCategoryNone
	}
	return ScamCategory(s)
}

// ScanVerdict is the classification result for one message
type ScanVerdict struct {
	IsThreat    bool         `json:"is_threat"`
	Risk        int          `json:"risk"`
	Category    ScamCategory `json:"category"`
	Tactics     MatchSet     `json:"tactics"`
	Explanation string       `json:"explanation"`
}

// ScanEngine identifies which classifier produced a verdict
type ScanEngine string

const (
	ScanEngineRemote    ScanEngine = "remote"
	ScanEngineHeuristic ScanEngine = "heuristic"
)

// Channel is the medium the message arrived on
type Channel string

const (
	ChannelSMS      Channel = "SMS"
	ChannelEmail    Channel = "EMAIL"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelOther    Channel = "OTHER"
)

// ScanRequest is a message submitted for classification
type ScanRequest struct {
	Text       string  `json:"text"`
	Channel    Channel `json:"channel,omitempty"`
	SenderInfo string  `json:"sender_info,omitempty"`
}

// ScanFeedback is the user's assessment of a verdict
type ScanFeedback string

const (
	FeedbackCorrect       ScanFeedback = "correct"
	FeedbackFalsePositive ScanFeedback = "false_positive"
	FeedbackFalseNegative ScanFeedback = "false_negative"
)

// Valid reports whether f is a known feedback value
func (f ScanFeedback) Valid() bool {
	switch f {
	case FeedbackCorrect, FeedbackFalsePositive, FeedbackFalseNegative:
		return true
	}
	return false
}

// ScanRecord is a stored scan with its verdict
type ScanRecord struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	Channel         Channel      `json:"channel" db:"channel"`
	SenderInfo      string       `json:"sender_info,omitempty" db:"sender_info"`
	Text            string       `json:"text" db:"text"`
	Verdict         ScanVerdict  `json:"verdict" db:"-"`
	Engine          ScanEngine   `json:"engine" db:"engine"`
	Highlighted     string       `json:"highlighted" db:"highlighted"`
	ExtractedURLs   []string     `json:"extracted_urls,omitempty" db:"extracted_urls"`
	ExtractedEmails []string     `json:"extracted_emails,omitempty" db:"extracted_emails"`
	ExtractedPhones []string     `json:"extracted_phones,omitempty" db:"extracted_phones"`
	APIKeyID        *uuid.UUID   `json:"api_key_id,omitempty" db:"api_key_id"`
	Feedback        ScanFeedback `json:"feedback,omitempty" db:"feedback"`
	FeedbackComment string       `json:"feedback_comment,omitempty" db:"feedback_comment"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// ScanFilter narrows a history query
type ScanFilter struct {
	ThreatsOnly bool
	Category    ScamCategory
	Page        int
	Limit       int
}

// Normalize clamps paging to sane values
func (f *ScanFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
}

// Offset returns the row offset for the current page
func (f ScanFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// ScanPage is one page of history
type ScanPage struct {
	Items []*ScanRecord `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// BatchScanResult is the response for a batch scan
type BatchScanResult struct {
	Results  []*ScanRecord `json:"results"`
	Total    int           `json:"total"`
	Threats  int           `json:"threats"`
	Safe     int           `json:"safe"`
	Duration string        `json:"duration"`
}

// ScanStats aggregates counters across all scans
type ScanStats struct {
	TotalScans  int64            `json:"total_scans"`
	Threats     int64            `json:"threats"`
	Safe        int64            `json:"safe"`
	ByCategory  map[string]int64 `json:"by_category"`
	ByTactic    map[string]int64 `json:"by_tactic"`
	ByEngine    map[string]int64 `json:"by_engine"`
	LastScanAt  *time.Time       `json:"last_scan_at,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// ThreatRate returns the share of scans flagged as threats
func (s *ScanStats) ThreatRate() float64 {
	if s.TotalScans == 0 {
		return 0
	}
	return float64(s.Threats) / float64(s.TotalScans)
}
