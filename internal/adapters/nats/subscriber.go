package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geoviewer/internal/core/domain"
)

// Subscriber implements ports.CameraSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext

	mu   sync.Mutex
	subs map[*nats.Subscription]struct{}
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js, subs: make(map[*nats.Subscription]struct{})}, nil
}

// SubscribeCamera delivers new camera events of every pane of a session.
// Events published before the call are not replayed.
func (s *Subscriber) SubscribeCamera(ctx context.Context, sessionID string, handler func(ctx context.Context, event *domain.CameraEvent) error) (func(), error) {
	sub, err := s.js.Subscribe(cameraSubjectPrefix+sessionID+".*", func(msg *nats.Msg) {
		var ev domain.CameraEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("drop malformed camera event", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, &ev); err != nil {
			slog.Debug("camera event handler failed", "session", sessionID, "error", err)
		}
	},
		nats.DeliverNew(),
		nats.AckNone(),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe camera %s: %w", sessionID, err)
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
			_ = sub.Unsubscribe()
		})
	}, nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	s.mu.Lock()
	for sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = map[*nats.Subscription]struct{}{}
	s.mu.Unlock()
	_ = s.conn.Drain()
}
