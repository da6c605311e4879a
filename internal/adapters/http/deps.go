package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geoviewer/internal/adapters/postgres"
	"github.com/samirrijal/geoviewer/internal/adapters/valkey"
	"github.com/samirrijal/geoviewer/internal/core/ports"
	"github.com/samirrijal/geoviewer/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions *usecases.SessionService

	// Subscriber streams camera events from the broker. When nil, WebSocket
	// clients are fed straight from the local session.
	Subscriber ports.CameraSubscriber

	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache
}
