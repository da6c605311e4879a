package ports

import (
	"context"

	"github.com/samirrijal/geoviewer/internal/core/domain"
)

// EventPublisher publishes viewer events to a message broker.
type EventPublisher interface {
	PublishCamera(ctx context.Context, event *domain.CameraEvent) error
	PublishSession(ctx context.Context, event *domain.SessionEvent) error
}

// CameraSubscriber delivers camera events of one session.
type CameraSubscriber interface {
	SubscribeCamera(ctx context.Context, sessionID string, handler func(ctx context.Context, event *domain.CameraEvent) error) (unsubscribe func(), err error)
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
