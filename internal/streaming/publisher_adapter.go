package streaming

import (
	"context"

	"scamshield/internal/domain/models"
)

// EventBusPublisher implements services.EventPublisher using the EventBus
type EventBusPublisher struct {
	eventBus *EventBus
	wsHub    *WebSocketHub
}

// NewEventBusPublisher creates a new publisher adapter. Either side may be nil.
func NewEventBusPublisher(eventBus *EventBus, wsHub *WebSocketHub) *EventBusPublisher {
	return &EventBusPublisher{
		eventBus: eventBus,
		wsHub:    wsHub,
	}
}

// PublishScan publishes a completed scan to the bus and to dashboard clients
func (p *EventBusPublisher) PublishScan(ctx context.Context, rec *models.ScanRecord) error {
	event := NewScanEvent(rec)

	if p.eventBus != nil {
		if err := p.eventBus.Publish(ctx, event); err != nil {
			return err
		}
	}

	if p.wsHub != nil {
		p.wsHub.BroadcastEvent(event)
	}

	return nil
}
