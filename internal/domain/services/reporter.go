package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scamshield/internal/domain/models"
	"scamshield/pkg/logger"
)

// Reporter periodically sends the report.daily webhook with scan counters
type Reporter struct {
	stats    StatsStore
	trigger  EventTrigger
	interval time.Duration
	logger   *logger.Logger

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	lastReport time.Time
}

// NewReporter creates a new Reporter
func NewReporter(stats StatsStore, trigger EventTrigger, interval time.Duration, log *logger.Logger) *Reporter {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Reporter{
		stats:      stats,
		trigger:    trigger,
		interval:   interval,
		logger:     log.WithComponent("reporter"),
		stopCh:     make(chan struct{}),
		lastReport: time.Now().UTC(),
	}
}

// Start runs the report loop until ctx is cancelled or Stop is called
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()

	r.logger.Info().Dur("interval", r.interval).Msg("reporter started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Stop()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("daily report failed")
			}
		}
	}
}

// Stop stops the report loop
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.running = false
	close(r.stopCh)
	r.logger.Info().Msg("reporter stopped")
}

// RunOnce builds a report for the period since the previous one and
// triggers report.daily
func (r *Reporter) RunOnce(ctx context.Context) (*models.DailyReportPayload, error) {
	snapshot, err := r.stats.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot stats: %w", err)
	}

	r.mu.Lock()
	now := time.Now().UTC()
	payload := &models.DailyReportPayload{
		PeriodStart: r.lastReport,
		PeriodEnd:   now,
		Stats:       snapshot,
	}
	r.lastReport = now
	r.mu.Unlock()

	if err := r.trigger.TriggerEvent(ctx, models.WebhookEventReportDaily, payload); err != nil {
		return nil, fmt.Errorf("failed to trigger report: %w", err)
	}

	r.logger.Info().
		Int64("total_scans", snapshot.TotalScans).
		Int64("threats", snapshot.Threats).
		Msg("daily report sent")

	return payload, nil
}
