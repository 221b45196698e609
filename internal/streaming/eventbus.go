package streaming

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"scamshield/pkg/logger"
)

// Stats is a point-in-time view of the feed
type Stats struct {
	Subscribers      int   `json:"subscribers"`
	WebSocketClients int   `json:"websocket_clients"`
	NATSConnected    bool  `json:"nats_connected"`
	Published        int64 `json:"published"`
	Dropped          int64 `json:"dropped"`
}

type subscriber struct {
	ch  chan *ScanEvent
	sub *Subscription
}

// EventBus distributes scan events to subscribers
type EventBus struct {
	nats   *NATSPublisher
	origin string
	logger *logger.Logger

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	nextID      int

	published atomic.Int64
	dropped   atomic.Int64
}

// NewEventBus creates a new event bus. nats may be nil.
func NewEventBus(nats *NATSPublisher, log *logger.Logger) *EventBus {
	return &EventBus{
		nats:        nats,
		origin:      uuid.New().String(),
		logger:      log.WithComponent("event-bus"),
		subscribers: make(map[string]*subscriber),
	}
}

func (eb *EventBus) natsReady() bool {
	return eb.nats != nil && eb.nats.IsConnected()
}

// Publish publishes a scan event to NATS and all local subscribers
func (eb *EventBus) Publish(ctx context.Context, event *ScanEvent) error {
	event.Origin = eb.origin
	eb.published.Add(1)

	if eb.natsReady() {
		if err := eb.nats.PublishScanEvent(ctx, event); err != nil {
			eb.logger.Warn().Err(err).Msg("failed to publish to NATS, using local broadcast only")
		}
	}

	eb.broadcast(event)
	return nil
}

func (eb *EventBus) broadcast(event *ScanEvent) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for id, s := range eb.subscribers {
		if !s.sub.Matches(event) {
			continue
		}
		select {
		case s.ch <- event:
		default:
			eb.dropped.Add(1)
			eb.logger.Debug().Str("subscriber", id).Msg("subscriber channel full, dropping event")
		}
	}
}

// Subscribe creates a new subscription and returns a channel for events.
// Events published by other instances arrive through NATS when connected.
func (eb *EventBus) Subscribe(ctx context.Context, sub *Subscription) (<-chan *ScanEvent, func()) {
	eb.mu.Lock()
	eb.nextID++
	id := strconv.Itoa(eb.nextID)
	ch := make(chan *ScanEvent, 100)
	eb.subscribers[id] = &subscriber{ch: ch, sub: sub}
	eb.mu.Unlock()

	eb.logger.Debug().Str("subscriber_id", id).Msg("new subscriber")

	remoteCtx, cancelRemote := context.WithCancel(ctx)

	unsubscribe := func() {
		cancelRemote()
		eb.mu.Lock()
		defer eb.mu.Unlock()
		if _, ok := eb.subscribers[id]; ok {
			close(ch)
			delete(eb.subscribers, id)
			eb.logger.Debug().Str("subscriber_id", id).Msg("subscriber removed")
		}
	}

	if eb.natsReady() {
		natsCh, err := eb.nats.Subscribe(remoteCtx, sub)
		if err != nil {
			eb.logger.Warn().Err(err).Msg("failed to subscribe to NATS, local events only")
		} else {
			go eb.forward(remoteCtx, id, natsCh)
		}
	}

	return ch, unsubscribe
}

// forward relays events from other instances; local events were already
// delivered by broadcast
func (eb *EventBus) forward(ctx context.Context, id string, natsCh <-chan *ScanEvent) {
	for event := range natsCh {
		if event.Origin == eb.origin {
			continue
		}
		eb.mu.RLock()
		s, ok := eb.subscribers[id]
		if ok {
			select {
			case s.ch <- event:
			case <-ctx.Done():
			default:
				eb.dropped.Add(1)
			}
		}
		eb.mu.RUnlock()
		if !ok || ctx.Err() != nil {
			return
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Stats returns counters for the streaming stats endpoint
func (eb *EventBus) Stats() Stats {
	return Stats{
		Subscribers:   eb.SubscriberCount(),
		NATSConnected: eb.natsReady(),
		Published:     eb.published.Load(),
		Dropped:       eb.dropped.Load(),
	}
}

// Close closes the event bus
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for id, s := range eb.subscribers {
		close(s.ch)
		delete(eb.subscribers, id)
	}

	if eb.nats != nil {
		eb.nats.Close()
	}
}
