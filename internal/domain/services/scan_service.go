package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scamshield/internal/backend"
	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services/heuristic"
	"scamshield/pkg/logger"
)

// MaxBatchSize is the largest batch accepted by ScanBatch
const MaxBatchSize = 100

// ScanServiceConfig contains configuration for the scan service
type ScanServiceConfig struct {
	RemoteTimeout     time.Duration
	HighRiskThreshold int
}

// DefaultScanServiceConfig returns sensible defaults
func DefaultScanServiceConfig() ScanServiceConfig {
	return ScanServiceConfig{
		RemoteTimeout:     10 * time.Second,
		HighRiskThreshold: 80,
	}
}

// ScanService classifies messages with the remote backend and falls back
// to the local heuristic when the backend is unavailable
type ScanService struct {
	analyzer *heuristic.Analyzer
	remote   RemoteClassifier
	scans    ScanRepository
	stats    StatsStore
	cfg      ScanServiceConfig
	logger   *logger.Logger

	mu        sync.RWMutex
	publisher EventPublisher
	trigger   EventTrigger
}

// NewScanService creates a new scan service. remote may be nil, in which
// case every scan uses the heuristic.
func NewScanService(analyzer *heuristic.Analyzer, remote RemoteClassifier, scans ScanRepository, stats StatsStore, cfg ScanServiceConfig, log *logger.Logger) *ScanService {
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultScanServiceConfig().RemoteTimeout
	}
	return &ScanService{
		analyzer: analyzer,
		remote:   remote,
		scans:    scans,
		stats:    stats,
		cfg:      cfg,
		logger:   log.WithComponent("scan-service"),
	}
}

// SetEventPublisher sets the publisher for real-time scan events
func (s *ScanService) SetEventPublisher(p EventPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// SetEventTrigger sets the webhook trigger for threat events
func (s *ScanService) SetEventTrigger(t EventTrigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger = t
}

// Scan classifies one message, persists the record and notifies listeners.
// Only validation errors are returned; side-effect failures are logged.
func (s *ScanService) Scan(ctx context.Context, req *models.ScanRequest, apiKeyID *uuid.UUID) (*models.ScanRecord, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if req.Channel == "" {
		req.Channel = models.ChannelSMS
	}

	now := time.Now().UTC()
	rec := &models.ScanRecord{
		ID:         uuid.New(),
		Channel:    req.Channel,
		SenderInfo: req.SenderInfo,
		Text:       req.Text,
		APIKeyID:   apiKeyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if result, ok := s.classifyRemote(ctx, req); ok {
		rec.Engine = models.ScanEngineRemote
		rec.Verdict = verdictFromRemote(result)
		rec.ExtractedURLs = result.ExtractedURLs
		rec.ExtractedEmails = result.ExtractedEmails
		rec.ExtractedPhones = result.ExtractedPhones
	} else {
		rec.Engine = models.ScanEngineHeuristic
		rec.Verdict = *s.analyzer.Analyze(req.Text)
	}
	rec.Highlighted = s.analyzer.Highlight(req.Text, rec.Verdict.Tactics)

	log := s.logger.WithScanID(rec.ID.String())

	if err := s.scans.Create(ctx, rec); err != nil {
		log.Error().Err(err).Msg("failed to store scan")
	}
	if err := s.stats.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("failed to record scan stats")
	}

	s.notify(ctx, rec)

	log.Info().
		Str("engine", string(rec.Engine)).
		Bool("is_threat", rec.Verdict.IsThreat).
		Int("risk", rec.Verdict.Risk).
		Str("category", string(rec.Verdict.Category)).
		Int("tactics", rec.Verdict.Tactics.Len()).
		Msg("message scanned")

	return rec, nil
}

// classifyRemote makes a single attempt against the backend
func (s *ScanService) classifyRemote(ctx context.Context, req *models.ScanRequest) (*backend.ScanResult, bool) {
	if s.remote == nil {
		return nil, false
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RemoteTimeout)
	defer cancel()

	result, err := s.remote.SubmitScan(rctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("remote classifier failed, using heuristic")
		return nil, false
	}
	if result == nil {
		s.logger.Warn().Msg("remote classifier returned no result, using heuristic")
		return nil, false
	}
	return result, true
}

// verdictFromRemote maps the backend response onto a verdict
func verdictFromRemote(r *backend.ScanResult) models.ScanVerdict {
	risk := int(math.Round(r.Confidence * 100))
	risk = max(0, min(99, risk))

	tactics := make(models.MatchSet, 0, len(r.Indicators))
	for _, ind := range r.Indicators {
		tactics = append(tactics, models.Tactic(ind))
	}

	return models.ScanVerdict{
		IsThreat:    r.IsScam,
		Risk:        risk,
		Category:    models.ParseScamCategory(r.ScamType),
		Tactics:     tactics,
		Explanation: r.Recommendation,
	}
}

func (s *ScanService) notify(ctx context.Context, rec *models.ScanRecord) {
	s.mu.RLock()
	publisher, trigger := s.publisher, s.trigger
	s.mu.RUnlock()

	if publisher != nil {
		if err := publisher.PublishScan(ctx, rec); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish scan event")
		}
	}

	if trigger == nil || !rec.Verdict.IsThreat {
		return
	}

	payload := threatPayload(rec)
	if err := trigger.TriggerEvent(ctx, models.WebhookEventThreatDetected, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to trigger threat.detected")
	}
	if rec.Verdict.Risk >= s.cfg.HighRiskThreshold {
		if err := trigger.TriggerEvent(ctx, models.WebhookEventThreatHighRisk, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to trigger threat.high_risk")
		}
	}
}

func threatPayload(rec *models.ScanRecord) *models.ThreatEventPayload {
	return &models.ThreatEventPayload{
		ScanID:      rec.ID.String(),
		Channel:     rec.Channel,
		Risk:        rec.Verdict.Risk,
		Category:    rec.Verdict.Category,
		Tactics:     rec.Verdict.Tactics.Strings(),
		Explanation: rec.Verdict.Explanation,
		Engine:      rec.Engine,
		DetectedAt:  rec.CreatedAt,
	}
}

// ScanBatch scans up to MaxBatchSize messages in order
func (s *ScanService) ScanBatch(ctx context.Context, reqs []*models.ScanRequest, apiKeyID *uuid.UUID) (*models.BatchScanResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: at least one message is required", ErrInvalidInput)
	}
	if len(reqs) > MaxBatchSize {
		return nil, fmt.Errorf("%w: maximum %d messages per batch", ErrInvalidInput, MaxBatchSize)
	}
	for i, r := range reqs {
		if r == nil || strings.TrimSpace(r.Text) == "" {
			return nil, fmt.Errorf("%w: message %d has no text", ErrInvalidInput, i)
		}
	}

	start := time.Now()
	out := &models.BatchScanResult{Results: make([]*models.ScanRecord, 0, len(reqs))}
	for _, r := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.Scan(ctx, r, apiKeyID)
		if err != nil {
			return nil, err
		}
		out.Results = append(out.Results, rec)
		if rec.Verdict.IsThreat {
			out.Threats++
		} else {
			out.Safe++
		}
	}
	out.Total = len(out.Results)
	out.Duration = time.Since(start).String()

	return out, nil
}

// History returns a page of stored scans
func (s *ScanService) History(ctx context.Context, filter models.ScanFilter) (*models.ScanPage, error) {
	filter.Normalize()
	items, total, err := s.scans.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return &models.ScanPage{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Threats returns a page of scans flagged as threats
func (s *ScanService) Threats(ctx context.Context, filter models.ScanFilter) (*models.ScanPage, error) {
	filter.ThreatsOnly = true
	return s.History(ctx, filter)
}

// Get returns one scan
func (s *ScanService) Get(ctx context.Context, id uuid.UUID) (*models.ScanRecord, error) {
	return s.scans.Get(ctx, id)
}

// AddFeedback records the user's assessment of a verdict
func (s *ScanService) AddFeedback(ctx context.Context, id uuid.UUID, feedback models.ScanFeedback, comment string) (*models.ScanRecord, error) {
	if !feedback.Valid() {
		return nil, fmt.Errorf("%w: unknown feedback %q", ErrInvalidInput, feedback)
	}
	if err := s.scans.UpdateFeedback(ctx, id, feedback, comment); err != nil {
		return nil, err
	}
	s.logger.Info().Str("scan_id", id.String()).Str("feedback", string(feedback)).Msg("scan feedback recorded")
	return s.scans.Get(ctx, id)
}

// ClearHistory deletes every stored scan and resets the counters
func (s *ScanService) ClearHistory(ctx context.Context) (int64, error) {
	n, err := s.scans.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear scans: %w", err)
	}
	if err := s.stats.Reset(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to reset stats")
	}
	s.logger.Info().Int64("deleted", n).Msg("scan history cleared")
	return n, nil
}

// Stats returns the aggregated counters
func (s *ScanService) Stats(ctx context.Context) (*models.ScanStats, error) {
	return s.stats.Snapshot(ctx)
}

// Analyze runs only the local heuristic, without persistence
func (s *ScanService) Analyze(text string) (*models.ScanVerdict, string) {
	v := s.analyzer.Analyze(text)
	return v, s.analyzer.Highlight(text, v.Tactics)
}

// Lexicon returns the heuristic vocabulary
func (s *ScanService) Lexicon() heuristic.Lexicon {
	return s.analyzer.Lexicon()
}
