package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"scamshield/internal/config"
	"scamshield/pkg/logger"
)

// ErrNotConnected is returned when publishing without a live connection
var ErrNotConnected = errors.New("NATS not connected")

// NATSPublisher handles publishing scan events to NATS JetStream
type NATSPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	config config.NATSConfig
	logger *logger.Logger

	mu        sync.RWMutex
	connected bool
}

// NewNATSPublisher connects to NATS and ensures the scan stream exists
func NewNATSPublisher(ctx context.Context, cfg config.NATSConfig, log *logger.Logger) (*NATSPublisher, error) {
	log = log.WithComponent("nats")

	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.StreamName == "" {
		cfg.StreamName = "SCAMSHIELD_SCANS"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "scans"
	}

	log.Info().Str("url", cfg.URL).Str("stream", cfg.StreamName).Msg("connecting to NATS")

	conn, err := nats.Connect(cfg.URL,
		nats.Name("scamshield"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamCfg := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "ScamShield scan results",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		MaxMsgs:     100000,
		MaxBytes:    100 * 1024 * 1024,
		Discard:     jetstream.DiscardOld,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	stream, err := js.CreateOrUpdateStream(ctx, streamCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	log.Info().Str("stream", stream.CachedInfo().Config.Name).Msg("NATS stream ready")

	return &NATSPublisher{
		conn:      conn,
		js:        js,
		stream:    stream,
		config:    cfg,
		logger:    log,
		connected: true,
	}, nil
}

// Close closes the NATS connection
func (p *NATSPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		p.conn.Close()
		p.connected = false
	}
}

// IsConnected returns whether NATS is connected
func (p *NATSPublisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected && p.conn.IsConnected()
}

// PublishScanEvent publishes a scan event to JetStream
func (p *NATSPublisher) PublishScanEvent(ctx context.Context, event *ScanEvent) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	subject := Subject(p.config.SubjectPrefix, event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("scan_id", event.ScanID).
		Int("risk", event.Risk).
		Msg("published scan event")

	return nil
}

// Subject returns the NATS subject for an event: <prefix>.<engine>.<verdict>
func Subject(prefix string, event *ScanEvent) string {
	engine := string(event.Engine)
	if engine == "" {
		engine = "unknown"
	}
	return fmt.Sprintf("%s.%s.%s", prefix, engine, event.Verdict())
}

// subscriptionSubject narrows the consumer filter where the subject
// hierarchy allows it; everything else is filtered in code
func subscriptionSubject(prefix string, sub *Subscription) string {
	if sub != nil && sub.ThreatsOnly {
		return prefix + ".*.threat"
	}
	return prefix + ".>"
}

// Subscribe creates an ephemeral consumer and streams matching events
func (p *NATSPublisher) Subscribe(ctx context.Context, sub *Subscription) (<-chan *ScanEvent, error) {
	if !p.IsConnected() {
		return nil, ErrNotConnected
	}

	consumerCfg := jetstream.ConsumerConfig{
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    3,
		FilterSubject: subscriptionSubject(p.config.SubjectPrefix, sub),
	}

	consumer, err := p.stream.CreateOrUpdateConsumer(ctx, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	msgs, err := consumer.Messages()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages iterator: %w", err)
	}

	eventCh := make(chan *ScanEvent, 100)

	// Next blocks, so unblock it when the caller goes away
	go func() {
		<-ctx.Done()
		msgs.Stop()
	}()

	go func() {
		defer close(eventCh)

		for {
			msg, err := msgs.Next()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, jetstream.ErrMsgIteratorClosed) {
					return
				}
				p.logger.Warn().Err(err).Msg("error getting next message")
				continue
			}

			var event ScanEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				p.logger.Warn().Err(err).Msg("failed to unmarshal event")
				_ = msg.Term()
				continue
			}

			if !sub.Matches(&event) {
				_ = msg.Ack()
				continue
			}

			select {
			case eventCh <- &event:
				_ = msg.Ack()
			case <-ctx.Done():
				return
			}
		}
	}()

	return eventCh, nil
}
