package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Every scene node consumes every event, so the streams keep messages
	// until they age out rather than until one consumer acks them.
	streams := []nats.StreamConfig{
		{
			Name:      "PRESENCE_EVENTS",
			Subjects:  []string{SubjectPresences},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "PING_EVENTS",
			Subjects:  []string{SubjectPings},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishPresenceEvent(ctx context.Context, ev *domain.PresenceEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(PresenceSubject(ev.ID), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishPingEvent(ctx context.Context, ev *domain.PingEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(PingSubject(ev.ID), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishFrame(ctx context.Context, frame *domain.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectFrame, data)
}

func (p *Publisher) PublishTransition(ctx context.Context, tr *domain.PhaseTransition) error {
	data, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	return p.conn.Publish(CueSubject(tr.To), data)
}

func (p *Publisher) PublishEviction(ctx context.Context, ev *domain.Eviction) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectEvicted, data)
}

func (p *Publisher) PublishPath(ctx context.Context, pp *domain.PingPath) error {
	data, err := json.Marshal(pp)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectPath, data)
}

// Conn exposes the underlying connection for readiness checks.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
