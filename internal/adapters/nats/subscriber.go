package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/pkg/metrics"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber creates a subscriber. durable names this node's consumers;
// each scene node needs its own so that every node sees every event.
func NewSubscriber(url, durable string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

func (s *Subscriber) SubscribePresenceEvents(ctx context.Context, handler func(ctx context.Context, ev *domain.PresenceEvent) error) error {
	sub, err := s.js.Subscribe(SubjectPresences, func(msg *nats.Msg) {
		var ev domain.PresenceEvent
		settle(msg, "presence", json.Unmarshal(msg.Data, &ev), func() error { return handler(ctx, &ev) })
	},
		nats.Durable(s.durable+"-presence"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *Subscriber) SubscribePingEvents(ctx context.Context, handler func(ctx context.Context, ev *domain.PingEvent) error) error {
	sub, err := s.js.Subscribe(SubjectPings, func(msg *nats.Msg) {
		var ev domain.PingEvent
		settle(msg, "ping", json.Unmarshal(msg.Data, &ev), func() error { return handler(ctx, &ev) })
	},
		nats.Durable(s.durable+"-ping"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Conn exposes the underlying connection for readiness checks.
func (s *Subscriber) Conn() *nats.Conn { return s.conn }

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}

type acker interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

// settle acks, naks or terminates msg depending on how it was handled.
// Malformed or rejected events are terminated; redelivery cannot fix them.
func settle(msg acker, stream string, decodeErr error, handle func() error) {
	outcome := "ack"
	defer func() { metrics.EventsSettled.WithLabelValues(stream, outcome).Inc() }()

	if decodeErr != nil {
		slog.Warn("drop undecodable event", "stream", stream, "error", decodeErr)
		outcome = "term"
		_ = msg.Term()
		return
	}
	if err := handle(); err != nil {
		if Permanent(err) {
			slog.Warn("drop rejected event", "stream", stream, "error", err)
			outcome = "term"
			_ = msg.Term()
			return
		}
		outcome = "nak"
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// Permanent reports whether err means the event can never be applied.
func Permanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrDuplicate)
}
