package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/pkg/metrics"
)

// wsMessage is sent from client to drive the session.
type wsMessage struct {
	Action string          `json:"action"` // "move" | "snapshot"
	Pane   string          `json:"pane"`
	Center domain.GeoPoint `json:"center"`
	Zoom   float64         `json:"zoom"`
}

// wsEnvelope wraps everything the server sends.
type wsEnvelope struct {
	Type    string              `json:"type"` // "camera" | "session" | "error"
	Camera  *domain.CameraEvent `json:"camera,omitempty"`
	Session *domain.SessionView `json:"session,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// WebSocketHandler streams camera events of one session to the client and
// applies the moves the client sends.
// Clients send JSON: {"action":"move","pane":"left","center":{"lat":4.6,"lon":-74.1},"zoom":12}
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		sessionID := c.Params("id")
		remoteAddr := c.RemoteAddr().String()
		log := slog.With("session", sessionID, "remote", remoteAddr)
		log.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		unsubscribe, err := subscribeCamera(ctx, deps, sessionID, func(ev domain.CameraEvent) {
			_ = writeJSON(wsEnvelope{Type: "camera", Camera: &ev})
		})
		if err != nil {
			log.Warn("ws subscribe failed", "error", err)
			_ = writeJSON(wsEnvelope{Type: "error", Error: err.Error()})
			return
		}
		defer unsubscribe()

		if v, err := deps.Sessions.Get(sessionID); err == nil {
			_ = writeJSON(wsEnvelope{Type: "session", Session: v})
		}

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(wsEnvelope{Type: "error", Error: "invalid JSON"})
				continue
			}

			switch m.Action {
			case "move":
				cam := domain.Camera{Center: m.Center, Zoom: m.Zoom}
				if _, err := deps.Sessions.Move(ctx, sessionID, m.Pane, cam); err != nil {
					_ = writeJSON(wsEnvelope{Type: "error", Error: err.Error()})
				}
			case "snapshot":
				v, err := deps.Sessions.Get(sessionID)
				if err != nil {
					_ = writeJSON(wsEnvelope{Type: "error", Error: err.Error()})
					continue
				}
				_ = writeJSON(wsEnvelope{Type: "session", Session: v})
			default:
				_ = writeJSON(wsEnvelope{Type: "error", Error: "unknown action: " + m.Action})
			}
		}

		log.Info("ws client disconnected")
	}
}

// subscribeCamera feeds fn from the broker when one is configured and from
// the local session otherwise.
func subscribeCamera(ctx context.Context, deps *Dependencies, sessionID string, fn func(domain.CameraEvent)) (func(), error) {
	if deps.Subscriber != nil {
		return deps.Subscriber.SubscribeCamera(ctx, sessionID, func(_ context.Context, ev *domain.CameraEvent) error {
			fn(*ev)
			return nil
		})
	}
	return deps.Sessions.Watch(sessionID, fn)
}
