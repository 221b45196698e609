package services_test

import (
	"context"
	"sync"

	"scamshield/internal/backend"
	"scamshield/internal/domain/models"
)

type triggeredEvent struct {
	Type models.WebhookEventType
	Data any
}

type recordingTrigger struct {
	mu     sync.Mutex
	events []triggeredEvent
}

func (r *recordingTrigger) TriggerEvent(_ context.Context, eventType models.WebhookEventType, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, triggeredEvent{Type: eventType, Data: data})
	return nil
}

func (r *recordingTrigger) types() []models.WebhookEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.WebhookEventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fakeRemote struct {
	result *backend.ScanResult
	err    error
	calls  int
	block  bool
}

func (f *fakeRemote) SubmitScan(ctx context.Context, _ *models.ScanRequest) (*backend.ScanResult, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

type recordingPublisher struct {
	mu    sync.Mutex
	scans []*models.ScanRecord
}

func (p *recordingPublisher) PublishScan(_ context.Context, rec *models.ScanRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scans = append(p.scans, rec)
	return nil
}
