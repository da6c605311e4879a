package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Readiness check names. The session store is required; the broker and the
// preview cache are optional, and only count against readiness when they are
// configured but unreachable.
const (
	checkSessionStore    = "session_store"
	checkEventBroker     = "event_broker"
	checkPreviewCache    = "preview_cache"
	checkSessionCapacity = "session_capacity"
)

const (
	stateOK            = "ok"
	stateNotConfigured = "not configured"
	stateDisconnected  = "disconnected"
	stateFull          = "full"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		open, _ := deps.Sessions.Capacity()
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"uptime":   time.Since(startedAt).String(),
			"version":  "dev",
			"sessions": open,
		})
	}
}

// ReadyHandler reports whether this replica can take new viewer sessions:
// snapshots can be persisted, configured collaborators answer, and the
// session limit is not reached.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		ready := true
		fail := func(name, state string) {
			checks[name] = state
			ready = false
		}

		switch {
		case deps.DB == nil:
			fail(checkSessionStore, stateNotConfigured)
		case deps.DB.Pool.Ping(ctx) != nil:
			fail(checkSessionStore, stateDisconnected)
		default:
			checks[checkSessionStore] = stateOK
		}

		switch {
		case deps.NATS == nil:
			checks[checkEventBroker] = stateNotConfigured
		case !deps.NATS.IsConnected():
			fail(checkEventBroker, stateDisconnected)
		default:
			checks[checkEventBroker] = stateOK
		}

		switch {
		case deps.Cache == nil:
			checks[checkPreviewCache] = stateNotConfigured
		case deps.Cache.Ping(ctx) != nil:
			fail(checkPreviewCache, stateDisconnected)
		default:
			checks[checkPreviewCache] = stateOK
		}

		open, limit := deps.Sessions.Capacity()
		if open >= limit {
			fail(checkSessionCapacity, stateFull)
		} else {
			checks[checkSessionCapacity] = stateOK
		}

		stream := "local"
		if deps.Subscriber != nil {
			stream = "nats"
		}

		status, code := "ready", fiber.StatusOK
		if !ready {
			status, code = "not ready", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":        status,
			"checks":        checks,
			"sessions":      fiber.Map{"open": open, "max": limit},
			"camera_stream": stream,
		})
	}
}
