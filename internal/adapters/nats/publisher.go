package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geoviewer/internal/core/domain"
)

// Subjects. Camera events are published per pane so a relay can follow one
// session with a single wildcard.
const (
	cameraSubjectPrefix  = "viewer.camera."
	sessionSubjectPrefix = "viewer.session."
)

// CameraSubject is the subject a pane's camera changes are published on.
func CameraSubject(sessionID, pane string) string {
	return cameraSubjectPrefix + sessionID + "." + pane
}

// SessionSubject is the subject a session's lifecycle events are published on.
func SessionSubject(sessionID string) string {
	return sessionSubjectPrefix + sessionID
}

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

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:              "VIEWER_CAMERA",
			Subjects:          []string{cameraSubjectPrefix + ">"},
			Retention:         nats.LimitsPolicy,
			MaxAge:            10 * time.Minute,
			MaxMsgsPerSubject: 16,
			Storage:           nats.MemoryStorage,
		},
		{
			Name:      "VIEWER_SESSIONS",
			Subjects:  []string{sessionSubjectPrefix + ">"},
			Retention: nats.InterestPolicy,
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

func (p *Publisher) PublishCamera(ctx context.Context, event *domain.CameraEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(CameraSubject(event.SessionID, event.Pane), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishSession(ctx context.Context, event *domain.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SessionSubject(event.SessionID), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("geoviewer"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
