package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geoviewer/internal/core/domain"
)

// --- Mock PreviewSource ---

type mockPreviewSource struct {
	mu                  sync.Mutex
	analysisCalls       int
	transformationCalls int
	analysisFn          func(ctx context.Context, id string) (*domain.Preview, error)
	transformationFn    func(ctx context.Context, id string) (*domain.Preview, error)
}

func (m *mockPreviewSource) AnalysisPreview(ctx context.Context, id string) (*domain.Preview, error) {
	m.mu.Lock()
	m.analysisCalls++
	m.mu.Unlock()
	if m.analysisFn != nil {
		return m.analysisFn(ctx, id)
	}
	return nil, domain.ErrPreviewNotFound
}

func (m *mockPreviewSource) TransformationPreview(ctx context.Context, id string) (*domain.Preview, error) {
	m.mu.Lock()
	m.transformationCalls++
	m.mu.Unlock()
	if m.transformationFn != nil {
		return m.transformationFn(ctx, id)
	}
	return nil, domain.ErrPreviewNotFound
}

func (m *mockPreviewSource) calls() (analysis, transformation int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analysisCalls, m.transformationCalls
}

// --- Mock CacheService ---

var errMiss = errors.New("miss")

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]int
	deleted []string
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, errMiss
	}
	return b, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

// --- Mock SessionRepository ---

type mockRepo struct {
	mu    sync.Mutex
	snaps map[string]domain.SessionSnapshot
	saves int
}

func newMockRepo() *mockRepo {
	return &mockRepo{snaps: map[string]domain.SessionSnapshot{}}
}

func (m *mockRepo) Save(ctx context.Context, s *domain.SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[s.ID] = *s
	m.saves++
	return nil
}

func (m *mockRepo) Get(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

func (m *mockRepo) List(ctx context.Context, limit int) ([]domain.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SessionSnapshot
	for _, s := range m.snaps {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockRepo) get(id string) (domain.SessionSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[id]
	return s, ok
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu       sync.Mutex
	cameras  []domain.CameraEvent
	sessions []domain.SessionEvent
}

func (m *mockPublisher) PublishCamera(ctx context.Context, ev *domain.CameraEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cameras = append(m.cameras, *ev)
	return nil
}

func (m *mockPublisher) PublishSession(ctx context.Context, ev *domain.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, *ev)
	return nil
}

func (m *mockPublisher) sessionEvents() []domain.SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SessionEvent(nil), m.sessions...)
}

func (m *mockPublisher) lastCamera(pane string) (domain.CameraEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.cameras) - 1; i >= 0; i-- {
		if m.cameras[i].Pane == pane {
			return m.cameras[i], true
		}
	}
	return domain.CameraEvent{}, false
}

// --- Fixtures ---

func squarePreview(minX, minY, maxX, maxY float64, crs string) *domain.Preview {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}))
	return &domain.Preview{
		Geometry:   fc,
		Bounds:     domain.CandidateBounds{minX, minY, maxX, maxY},
		AppliedCRS: crs,
	}
}
