package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/core/ports"
	"github.com/samirrijal/geoviewer/internal/core/viewport"
	"github.com/samirrijal/geoviewer/internal/pkg/metrics"
	"github.com/samirrijal/geoviewer/internal/pkg/telemetry"
)

// SessionConfig tunes the session service.
type SessionConfig struct {
	Viewport      viewport.Options
	SettleTimeout time.Duration
	MaxSessions   int
}

// SessionService owns the live viewer sessions.
type SessionService struct {
	previews  *PreviewService
	factory   ports.EngineFactory
	repo      ports.SessionRepository
	publisher ports.EventPublisher
	cfg       SessionConfig

	now   func() time.Time
	newID func() string

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSessionService creates a new SessionService. repo and publisher may be
// nil, in which case sessions are neither persisted nor broadcast.
func NewSessionService(previews *PreviewService, factory ports.EngineFactory, repo ports.SessionRepository, publisher ports.EventPublisher, cfg SessionConfig) *SessionService {
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 5 * time.Second
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 256
	}
	return &SessionService{
		previews:  previews,
		factory:   factory,
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		sessions:  make(map[string]*session),
	}
}

// OpenAnalysis opens a single-pane session showing an analysis preview.
func (s *SessionService) OpenAnalysis(ctx context.Context, analysisID string) (*domain.SessionView, error) {
	if strings.TrimSpace(analysisID) == "" {
		return nil, domain.ErrAnalysisRequired
	}
	now := s.now()
	return s.open(ctx, &domain.SessionSnapshot{
		ID:         s.newID(),
		Kind:       domain.KindAnalysis,
		AnalysisID: analysisID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, domain.SessionOpened)
}

// OpenComparison opens a two-pane session comparing an analysis with its
// transformation. Without a transformation id the right pane shows the
// original data.
func (s *SessionService) OpenComparison(ctx context.Context, analysisID, transformationID string) (*domain.SessionView, error) {
	if strings.TrimSpace(analysisID) == "" {
		return nil, domain.ErrAnalysisRequired
	}
	now := s.now()
	return s.open(ctx, &domain.SessionSnapshot{
		ID:               s.newID(),
		Kind:             domain.KindComparison,
		AnalysisID:       analysisID,
		TransformationID: strings.TrimSpace(transformationID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, domain.SessionOpened)
}

func (s *SessionService) open(ctx context.Context, snap *domain.SessionSnapshot, event domain.SessionEventType) (*domain.SessionView, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanSessionOpen)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrSessionID, snap.ID),
		attribute.String(telemetry.AttrAnalysisID, snap.AnalysisID),
		attribute.String(telemetry.AttrTransformationID, snap.TransformationID),
	)

	s.mu.RLock()
	n := len(s.sessions)
	s.mu.RUnlock()
	if n >= s.cfg.MaxSessions {
		return nil, domain.ErrSessionLimit
	}

	original, err := s.previews.Analysis(ctx, snap.AnalysisID)
	if err != nil {
		return nil, fmt.Errorf("load analysis %s: %w", snap.AnalysisID, err)
	}
	var transformed *domain.Preview
	if snap.Kind == domain.KindComparison && snap.TransformationID != "" {
		transformed, err = s.previews.Transformation(ctx, snap.TransformationID)
		if err != nil {
			return nil, fmt.Errorf("load transformation %s: %w", snap.TransformationID, err)
		}
	}

	sess := newSession(snap, s.publisher)
	if err := sess.mount(s.factory, s.cfg.Viewport, original, transformed); err != nil {
		sess.close()
		return nil, fmt.Errorf("mount session %s: %w", snap.ID, err)
	}
	for pane, cam := range snap.Cameras {
		if ctrl, err := sess.controller(pane); err == nil {
			ctrl.SetCamera(cam)
		}
	}

	s.mu.Lock()
	if _, exists := s.sessions[snap.ID]; exists {
		s.mu.Unlock()
		sess.close()
		return nil, fmt.Errorf("session %s is already open", snap.ID)
	}
	s.sessions[snap.ID] = sess
	s.mu.Unlock()
	metrics.ActiveSessions.WithLabelValues(string(snap.Kind)).Inc()

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.SettleTimeout)
	defer cancel()
	if err := sess.waitReady(waitCtx); err != nil {
		slog.Warn("session not ready yet", "session", snap.ID, "error", err)
	} else if err := sess.settle(waitCtx); err != nil {
		slog.Warn("session did not settle", "session", snap.ID, "error", err)
	}

	_ = s.persist(ctx, sess.snapshot(s.now()))
	s.announce(ctx, sess, event)

	slog.Info("session opened", "session", snap.ID, "kind", snap.Kind, "analysis", snap.AnalysisID, "transformation", snap.TransformationID)
	v := sess.view()
	return &v, nil
}

// Get returns a live session.
func (s *SessionService) Get(id string) (*domain.SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	v := sess.view()
	return &v, nil
}

// List returns every live session, oldest first.
func (s *SessionService) List() []domain.SessionView {
	s.mu.RLock()
	all := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	views := make([]domain.SessionView, 0, len(all))
	for _, sess := range all {
		views = append(views, sess.view())
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID < views[j].ID
		}
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})
	return views
}

// Capacity reports the number of live sessions and the configured limit.
func (s *SessionService) Capacity() (open, limit int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), s.cfg.MaxSessions
}

// History returns persisted snapshots, most recently updated first.
func (s *SessionService) History(ctx context.Context, limit int) ([]domain.SessionSnapshot, error) {
	if s.repo == nil {
		return []domain.SessionSnapshot{}, nil
	}
	return s.repo.List(ctx, limit)
}

// Move applies a user camera change to one pane and waits until it has been
// mirrored onto any linked pane.
func (s *SessionService) Move(ctx context.Context, id, pane string, cam domain.Camera) (*domain.SessionView, error) {
	if err := s.validateCamera(cam); err != nil {
		return nil, err
	}
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	ctrl, err := sess.controller(pane)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, pane)
	}

	ctrl.Interact(cam)

	settleCtx, cancel := context.WithTimeout(ctx, s.cfg.SettleTimeout)
	defer cancel()
	if err := sess.settle(settleCtx); err != nil {
		return nil, fmt.Errorf("settle session %s: %w", id, err)
	}
	v := sess.view()
	return &v, nil
}

func (s *SessionService) validateCamera(cam domain.Camera) error {
	values := []float64{cam.Center.Lat, cam.Center.Lon, cam.Zoom}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", domain.ErrInvalidCamera)
		}
	}
	if cam.Center.Lat < -90 || cam.Center.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", domain.ErrInvalidCamera, cam.Center.Lat)
	}
	if cam.Center.Lon < -180 || cam.Center.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", domain.ErrInvalidCamera, cam.Center.Lon)
	}
	tiles := s.cfg.Viewport.Tiles
	if cam.Zoom < tiles.MinZoom || cam.Zoom > tiles.MaxZoom {
		return fmt.Errorf("%w: zoom %v outside %v-%v", domain.ErrInvalidCamera, cam.Zoom, tiles.MinZoom, tiles.MaxZoom)
	}
	return nil
}

// Refresh re-fetches the previews of a session and redraws them in place.
func (s *SessionService) Refresh(ctx context.Context, id string) (*domain.SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	s.previews.Invalidate(ctx, sess.analysisID, sess.transformationID)
	original, err := s.previews.Analysis(ctx, sess.analysisID)
	if err != nil {
		return nil, fmt.Errorf("reload analysis %s: %w", sess.analysisID, err)
	}
	var transformed *domain.Preview
	if sess.kind == domain.KindComparison && sess.transformationID != "" {
		transformed, err = s.previews.Transformation(ctx, sess.transformationID)
		if err != nil {
			return nil, fmt.Errorf("reload transformation %s: %w", sess.transformationID, err)
		}
	}

	sess.update(original, transformed)

	settleCtx, cancel := context.WithTimeout(ctx, s.cfg.SettleTimeout)
	defer cancel()
	if err := sess.settle(settleCtx); err != nil {
		return nil, fmt.Errorf("settle session %s: %w", id, err)
	}
	v := sess.view()
	return &v, nil
}

// Watch calls fn with camera events of a live session until the returned
// function is called or the session closes.
func (s *SessionService) Watch(id string, fn func(domain.CameraEvent)) (func(), error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return sess.pump.watch(fn), nil
}

// Close disposes a session and persists its final cameras.
func (s *SessionService) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	now := s.now()
	snap := sess.snapshot(now)
	snap.ClosedAt = &now
	sess.close()
	metrics.ActiveSessions.WithLabelValues(string(sess.kind)).Dec()

	s.announce(ctx, sess, domain.SessionClosed)
	slog.Info("session closed", "session", id)
	return s.persist(ctx, snap)
}

// Resume reopens a closed session from its snapshot and restores the
// cameras of its panes. A session that is still open is returned as is.
func (s *SessionService) Resume(ctx context.Context, id string) (*domain.SessionView, error) {
	if v, err := s.Get(id); err == nil {
		return v, nil
	}
	if s.repo == nil {
		return nil, domain.ErrSessionNotFound
	}

	snap, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	snap.ClosedAt = nil
	snap.UpdatedAt = s.now()
	return s.open(ctx, snap, domain.SessionResumed)
}

// Shutdown closes every live session.
func (s *SessionService) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := s.Close(ctx, id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *SessionService) lookup(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// persist saves a snapshot. Failures are logged and returned.
func (s *SessionService) persist(ctx context.Context, snap domain.SessionSnapshot) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Save(ctx, &snap); err != nil {
		slog.Warn("persist session failed", "session", snap.ID, "error", err)
		return fmt.Errorf("persist session %s: %w", snap.ID, err)
	}
	return nil
}

func (s *SessionService) announce(ctx context.Context, sess *session, typ domain.SessionEventType) {
	if s.publisher == nil {
		return
	}
	ev := &domain.SessionEvent{SessionID: sess.id, Kind: sess.kind, Type: typ, Time: s.now()}
	if err := s.publisher.PublishSession(ctx, ev); err != nil {
		slog.Warn("publish session event failed", "session", sess.id, "type", typ, "error", err)
	}
}
