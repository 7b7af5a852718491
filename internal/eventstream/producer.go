// Package eventstream publishes follow-up lifecycle events to Kafka, keyed
// by deal id so one deal's events stay ordered within a partition.
package eventstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"deal_followup_backend/internal/events"
	"deal_followup_backend/platform/logger"
)

const (
	headerEvent  = "event"
	headerRecord = "follow-up-id"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds the producer settings.
type Config struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	WriteTimeout time.Duration
}

// Publisher is an event bus subscriber that forwards lifecycle events.
type Publisher struct {
	writer      MessageWriter
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
	log         *logger.Logger
}

// NewKafkaWriter builds a synchronous hash-balanced writer.
func NewKafkaWriter(cfg Config) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}, nil
}

// NewPublisher wraps writer and retries each event up to cfg.MaxAttempts
// times. MaxAttempts <= 0 means 3.
func NewPublisher(writer MessageWriter, cfg Config, log *logger.Logger) *Publisher {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Publisher{
		writer:      writer,
		maxAttempts: maxAttempts,
		backoff:     100 * time.Millisecond,
		timeout:     5 * time.Second,
		log:         log,
	}
}

// Subscribe registers the publisher for every lifecycle event.
func (p *Publisher) Subscribe(bus events.Bus) {
	for _, name := range events.LifecycleNames() {
		bus.Subscribe(name, p)
	}
}

// Handle implements events.Handler.
func (p *Publisher) Handle(ctx context.Context, event events.Event) error {
	le, ok := event.(events.LifecycleEvent)
	if !ok {
		return nil
	}

	envelope := events.NewEnvelope(le)
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(envelope.Record.DealID),
		Value: value,
		Time:  envelope.OccurredAt,
		Headers: []kafka.Header{
			{Key: headerEvent, Value: []byte(envelope.Event)},
			{Key: headerRecord, Value: []byte(envelope.Record.ID)},
		},
	}

	if err := p.produce(ctx, msg); err != nil {
		p.log.CollaboratorError("kafka", "publish_"+envelope.Event, err)
		return err
	}
	return nil
}

func (p *Publisher) produce(ctx context.Context, msg kafka.Message) error {
	var lastErr error
	backoff := p.backoff

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.writer.WriteMessages(attemptCtx, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("produce failed after %d attempts: %w", p.maxAttempts, lastErr)
}

// Close shuts the writer down.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
