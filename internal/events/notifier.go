// Package events delivers keyword and session-end notification events to the
// downstream experience-event system.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-speech-diarization-service/internal/models"
	"ai-speech-diarization-service/internal/observability/metrics"
	"ai-speech-diarization-service/internal/schema"
)

// Notifier delivers a keyword event downstream. Implementations must be safe
// for concurrent use; callers treat delivery as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, ev models.KeywordEvent) error
}

// Publisher publishes keyword events to a Kafka topic. When Kafka is disabled
// or no brokers are configured it degrades to log-only mode.
type Publisher struct {
	writer    *kafka.Writer
	principal string
	topic     string
	enabled   bool
	validator *schema.Validator
	metrics   *metrics.Metrics
}

// Config holds Kafka notifier configuration.
type Config struct {
	Brokers   []string
	Topic     string
	Principal string
	Enabled   bool
}

// New creates a new Kafka event notifier.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics
	v := schema.New()

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{enabled: false, validator: v, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal: cfg.Principal,
			topic:     cfg.Topic,
			enabled:   false,
			validator: v,
			metrics:   m,
		}
	}

	// Custom dialer with longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("principal", cfg.Principal).
		Msg("Kafka notifier initialized")

	return &Publisher{
		writer:    writer,
		principal: cfg.Principal,
		topic:     cfg.Topic,
		enabled:   true,
		validator: v,
		metrics:   m,
	}
}

// Notify publishes one keyword event keyed by customer id.
func (p *Publisher) Notify(ctx context.Context, ev models.KeywordEvent) error {
	start := time.Now()

	if err := p.validator.Validate(ev); err != nil {
		return err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("eventCode", ev.EventCode).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", p.topic).
		Str("customerId", ev.CustomerID).
		RawJSON("payload", payload).
		Msg("Publishing keyword event")

	if !p.enabled || p.writer == nil {
		p.metrics.RecordNotifyPublish(ev.EventCode, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(ev.CustomerID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventCode", Value: []byte(ev.EventCode)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", p.topic).
			Str("customerId", ev.CustomerID).
			Msg("Failed to write to Kafka")
		p.metrics.RecordNotifyPublish(ev.EventCode, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordNotifyPublish(ev.EventCode, nil, time.Since(start).Seconds())
	return nil
}

// Close closes the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing event writer")
		return err
	}
	return nil
}
