// Package events publishes agent results to NATS JetStream so downstream
// consumers (dashboards, paging bridges) can react to assessments and
// investigations as they happen.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/prometheus-agent-platform/internal/agent"
)

const (
	DefaultStreamName = "agent-events"

	SubjectAssessments    = "agent.assessments"
	SubjectInvestigations = "agent.investigations"
	SubjectTranslations   = "agent.translations"

	DefaultStreamRetention = 7 * 24 * time.Hour
)

// Config holds configuration for the NATS JetStream publisher
type Config struct {
	URL             string
	StreamName      string
	StreamRetention time.Duration
	ReconnectWait   time.Duration
	MaxReconnects   int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		URL:             nats.DefaultURL,
		StreamName:      DefaultStreamName,
		StreamRetention: DefaultStreamRetention,
		ReconnectWait:   2 * time.Second,
		MaxReconnects:   -1,
	}
}

// envelope wraps every published payload with its subject and timestamp.
type envelope struct {
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Publisher publishes agent events to a JetStream stream. Publishing is
// best effort from the caller's perspective; a failed publish never
// fails the operation that produced the event.
type Publisher struct {
	config *Config
	nc     *nats.Conn
	js     jetstream.JetStream
}

// NewPublisher connects to NATS and ensures the agent events stream
// exists.
func NewPublisher(config *Config) (*Publisher, error) {
	if config == nil {
		config = DefaultConfig()
	}

	opts := []nats.Option{
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
			natsReconnectsTotal.Inc()
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", config.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &Publisher{config: config, nc: nc, js: js}
	if err := publisher.createStream(); err != nil {
		nc.Close()
		return nil, err
	}

	return publisher, nil
}

func (p *Publisher) createStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	streamConfig := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Subjects:    []string{"agent.>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.StreamRetention,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		Description: "Agent assessment and investigation events",
	}

	if _, err := p.js.CreateOrUpdateStream(ctx, streamConfig); err != nil {
		return fmt.Errorf("failed to create events stream: %w", err)
	}
	return nil
}

// PublishAssessment publishes a completed health assessment.
func (p *Publisher) PublishAssessment(ctx context.Context, assessment *agent.HealthAssessment) error {
	return p.publish(ctx, SubjectAssessments, assessment)
}

// PublishInvestigation publishes a completed alert investigation.
func (p *Publisher) PublishInvestigation(ctx context.Context, result *agent.InvestigationResult) error {
	return p.publish(ctx, SubjectInvestigations, result)
}

// PublishTranslation publishes a completed query translation.
func (p *Publisher) PublishTranslation(ctx context.Context, result *agent.TranslationResult) error {
	return p.publish(ctx, SubjectTranslations, result)
}

func (p *Publisher) publish(ctx context.Context, subject string, payload interface{}) error {
	data, err := json.Marshal(envelope{
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		eventPublishFailuresTotal.WithLabelValues(subject).Inc()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		eventPublishFailuresTotal.WithLabelValues(subject).Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eventsPublishedTotal.WithLabelValues(subject).Inc()
	return nil
}

// Close shuts down the NATS connection.
func (p *Publisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
