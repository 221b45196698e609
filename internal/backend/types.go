package backend

// User is the account returned by the backend
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone,omitempty"`
	Role       string `json:"role,omitempty"`
	IsVerified bool   `json:"is_verified"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// AuthResponse is returned by register, login and OAuth logins
type AuthResponse struct {
	Tokens *Tokens `json:"tokens"`
	User   *User   `json:"user"`
}

// RegisterRequest is the body of /auth/register
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone"`
}

// ProfileUpdate is the body of PUT /users/me
type ProfileUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// Sensitivity of the user's scam filter
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// UserSettings are the notification and filter preferences
type UserSettings struct {
	EmailAlerts       bool        `json:"email_alerts"`
	PushNotifications bool        `json:"push_notifications"`
	AutoBlock         bool        `json:"auto_block"`
	WeeklyReport      bool        `json:"weekly_report"`
	InstantAlerts     bool        `json:"instant_alerts"`
	Sensitivity       Sensitivity `json:"sensitivity"`
}

// UserStats are the per-user counters
type UserStats struct {
	TotalScans     int64 `json:"total_scans"`
	ThreatsBlocked int64 `json:"threats_blocked"`
	ScansThisMonth int64 `json:"scans_this_month,omitempty"`
}

// ScanSubmission is the body of POST /scans/
type ScanSubmission struct {
	MessageText string  `json:"message_text"`
	Channel     string  `json:"channel"`
	SenderInfo  *string `json:"sender_info"`
}

// ScanResult is the backend's verdict for a message
type ScanResult struct {
	ID              string   `json:"id,omitempty"`
	IsScam          bool     `json:"is_scam"`
	Confidence      float64  `json:"confidence"`
	ScamType        string   `json:"scam_type"`
	Indicators      []string `json:"indicators"`
	Recommendation  string   `json:"recommendation"`
	ExtractedURLs   []string `json:"extracted_urls"`
	ExtractedEmails []string `json:"extracted_emails"`
	ExtractedPhones []string `json:"extracted_phones"`
	CreatedAt       string   `json:"created_at,omitempty"`
}

// ScanSummary is one row of scan history
type ScanSummary struct {
	ID             string  `json:"id"`
	MessagePreview string  `json:"message_preview"`
	Channel        string  `json:"channel"`
	IsScam         bool    `json:"is_scam"`
	ScamType       string  `json:"scam_type"`
	Confidence     float64 `json:"confidence"`
	CreatedAt      string  `json:"created_at"`
}

// ScanHistory is a page of scan summaries
type ScanHistory struct {
	Items []ScanSummary `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// HistoryQuery selects a page of history. A nil ScamsOnly means both.
type HistoryQuery struct {
	Page      int
	Limit     int
	ScamsOnly *bool
}

// FeedbackRequest is the body of /scans/{id}/feedback
type FeedbackRequest struct {
	Feedback string  `json:"feedback"`
	Comment  *string `json:"comment"`
}

// Threat is a reported or detected threat
type Threat struct {
	ID          string  `json:"id"`
	MessageText string  `json:"message_text"`
	SenderInfo  string  `json:"sender_info,omitempty"`
	Channel     string  `json:"channel"`
	ThreatType  string  `json:"threat_type,omitempty"`
	Status      string  `json:"status,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// ThreatList is a page of threats
type ThreatList struct {
	Items []Threat `json:"items"`
	Total int      `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}

// ThreatReport is the body of /threats/report
type ThreatReport struct {
	MessageText string  `json:"message_text"`
	SenderInfo  *string `json:"sender_info"`
	Channel     string  `json:"channel"`
	ThreatType  *string `json:"threat_type"`
	Notes       *string `json:"notes"`
}

// Analytics is a free-form analytics document
type Analytics map[string]any

// Plan is a subscription plan
type Plan struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	PriceMonthly float64  `json:"price_monthly"`
	PriceYearly  float64  `json:"price_yearly"`
	ScanLimit    int64    `json:"scan_limit"`
	Features     []string `json:"features,omitempty"`
}

// Subscription is the caller's current plan
type Subscription struct {
	PlanID        string `json:"plan_id"`
	Status        string `json:"status"`
	BillingPeriod string `json:"billing_period"`
	RenewsAt      string `json:"renews_at,omitempty"`
}

// Usage is the caller's consumption for the current period
type Usage struct {
	ScansUsed  int64 `json:"scans_used"`
	ScansLimit int64 `json:"scans_limit"`
}

// MessageResponse is the generic {"message": ...} acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
