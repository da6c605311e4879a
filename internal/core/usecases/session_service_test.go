package usecases_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/geoviewer/internal/adapters/headless"
	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/core/usecases"
	"github.com/samirrijal/geoviewer/internal/core/viewport"
)

type fixture struct {
	source    *mockPreviewSource
	cache     *mockCache
	repo      *mockRepo
	publisher *mockPublisher
	factory   *headless.Factory
	svc       *usecases.SessionService
}

func newFixture(t *testing.T, maxSessions int) *fixture {
	t.Helper()
	f := &fixture{
		source: &mockPreviewSource{
			analysisFn: func(ctx context.Context, id string) (*domain.Preview, error) {
				if id == "missing" {
					return nil, domain.ErrPreviewNotFound
				}
				return squarePreview(-74.2, 4.5, -74.0, 4.8, "EPSG:4326"), nil
			},
			transformationFn: func(ctx context.Context, id string) (*domain.Preview, error) {
				return squarePreview(-74.1, 4.6, -73.9, 4.9, "EPSG:3116"), nil
			},
		},
		cache:     newMockCache(),
		repo:      newMockRepo(),
		publisher: &mockPublisher{},
		factory:   headless.NewFactory(nil, 0),
	}
	previews := usecases.NewPreviewService(f.source, f.cache, 60)
	f.svc = usecases.NewSessionService(previews, f.factory, f.repo, f.publisher, usecases.SessionConfig{
		Viewport:      viewport.DefaultOptions(),
		SettleTimeout: 2 * time.Second,
		MaxSessions:   maxSessions,
	})
	t.Cleanup(func() { _ = f.svc.Shutdown(context.Background()) })
	return f
}

func pane(t *testing.T, v *domain.SessionView, name string) domain.PaneView {
	t.Helper()
	for _, p := range v.Panes {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("session %s has no pane %q", v.ID, name)
	return domain.PaneView{}
}

func closeTo(a, b domain.Camera) bool {
	const eps = 1e-9
	return math.Abs(a.Center.Lat-b.Center.Lat) < eps &&
		math.Abs(a.Center.Lon-b.Center.Lon) < eps &&
		math.Abs(a.Zoom-b.Zoom) < eps
}

func TestSessionService_OpenAnalysis(t *testing.T) {
	f := newFixture(t, 0)

	v, err := f.svc.OpenAnalysis(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != domain.KindAnalysis || len(v.Panes) != 1 {
		t.Fatalf("expected one analysis pane, got %+v", v)
	}

	main := pane(t, v, domain.PaneMain)
	if main.Status != domain.StatusReady {
		t.Errorf("expected ready, got %s", main.Status)
	}
	if main.CRSLabel != "EPSG:4326" {
		t.Errorf("expected crs EPSG:4326, got %q", main.CRSLabel)
	}
	if len(main.Layers) != 1 || main.Layers[0].Role != domain.RoleData {
		t.Errorf("expected a single data layer set, got %+v", main.Layers)
	}
	if c := main.Camera.Center; math.Abs(c.Lon-(-74.1)) > 1e-6 || math.Abs(c.Lat-4.65) > 1e-2 {
		t.Errorf("camera not centred on the preview: %+v", c)
	}

	if _, ok := f.repo.get(v.ID); !ok {
		t.Error("session snapshot not persisted")
	}
	events := f.publisher.sessionEvents()
	if len(events) != 1 || events[0].Type != domain.SessionOpened {
		t.Errorf("expected one opened event, got %+v", events)
	}
}

func TestSessionService_OpenAnalysisErrors(t *testing.T) {
	f := newFixture(t, 0)

	if _, err := f.svc.OpenAnalysis(context.Background(), "  "); !errors.Is(err, domain.ErrAnalysisRequired) {
		t.Errorf("expected ErrAnalysisRequired, got %v", err)
	}
	if _, err := f.svc.OpenAnalysis(context.Background(), "missing"); !errors.Is(err, domain.ErrPreviewNotFound) {
		t.Errorf("expected ErrPreviewNotFound, got %v", err)
	}
	if n := len(f.svc.List()); n != 0 {
		t.Errorf("failed opens must not leave sessions, got %d", n)
	}
}

func TestSessionService_OpenComparison(t *testing.T) {
	f := newFixture(t, 0)

	v, err := f.svc.OpenComparison(context.Background(), "a1", "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Synchronized {
		t.Error("expected panes to be linked")
	}

	left, right := pane(t, v, domain.PaneLeft), pane(t, v, domain.PaneRight)
	if left.Title != viewport.TitleOriginal || right.Title != viewport.TitleTransformed {
		t.Errorf("unexpected titles %q / %q", left.Title, right.Title)
	}
	if left.CRSLabel != "EPSG:4326" {
		t.Errorf("expected original crs label on the left, got %q", left.CRSLabel)
	}
	if right.CRSLabel != "EPSG:3116" {
		t.Errorf("expected transformed crs label, got %q", right.CRSLabel)
	}
	if len(right.Layers) != 1 || right.Layers[0].Color != domain.ColorTransformed {
		t.Errorf("expected transformed accent on the right, got %+v", right.Layers)
	}
	if _, ok := f.factory.Engine(v.ID + "-left"); !ok {
		t.Error("left pane not mounted in its own container")
	}
}

func TestSessionService_OpenComparisonWithoutTransformation(t *testing.T) {
	f := newFixture(t, 0)

	v, err := f.svc.OpenComparison(context.Background(), "a1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, tr := f.source.calls(); tr != 0 {
		t.Errorf("transformation must not be fetched, got %d calls", tr)
	}

	right := pane(t, v, domain.PaneRight)
	if right.Title != viewport.TitleUntransformed {
		t.Errorf("expected fallback title, got %q", right.Title)
	}
	if right.CRSLabel != viewport.CRSLabelNotSpecified {
		t.Errorf("expected unspecified crs, got %q", right.CRSLabel)
	}
	if len(right.Layers) != 1 || right.Layers[0].Color != domain.ColorOriginal {
		t.Errorf("expected original data on the right, got %+v", right.Layers)
	}
}

func TestSessionService_MoveSynchronizesPanes(t *testing.T) {
	f := newFixture(t, 0)
	v, err := f.svc.OpenComparison(context.Background(), "a1", "t1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	target := domain.Camera{Center: domain.GeoPoint{Lat: 4.7, Lon: -74.05}, Zoom: 12}
	v, err = f.svc.Move(context.Background(), v.ID, domain.PaneLeft, target)
	if err != nil {
		t.Fatalf("move: %v", err)
	}

	left, right := pane(t, v, domain.PaneLeft), pane(t, v, domain.PaneRight)
	if !closeTo(left.Camera, target) || !closeTo(right.Camera, target) {
		t.Errorf("panes diverged: left %+v right %+v", left.Camera, right.Camera)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		ev, ok := f.publisher.lastCamera(domain.PaneRight)
		if ok && closeTo(ev.Camera, target) {
			if ev.Source != domain.SourceSync {
				t.Errorf("expected sync source on the follower, got %s", ev.Source)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("right pane camera event never published")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionService_MoveErrors(t *testing.T) {
	f := newFixture(t, 0)
	v, err := f.svc.OpenAnalysis(context.Background(), "a1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ok := domain.Camera{Center: domain.GeoPoint{Lat: 4.7, Lon: -74.05}, Zoom: 12}

	tests := []struct {
		name    string
		id      string
		pane    string
		cam     domain.Camera
		wantErr error
	}{
		{"unknown session", "nope", domain.PaneMain, ok, domain.ErrSessionNotFound},
		{"unknown pane", v.ID, domain.PaneLeft, ok, domain.ErrUnknownPane},
		{"latitude", v.ID, domain.PaneMain, domain.Camera{Center: domain.GeoPoint{Lat: 91}, Zoom: 3}, domain.ErrInvalidCamera},
		{"zoom", v.ID, domain.PaneMain, domain.Camera{Zoom: 40}, domain.ErrInvalidCamera},
		{"nan", v.ID, domain.PaneMain, domain.Camera{Zoom: math.NaN()}, domain.ErrInvalidCamera},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Move(context.Background(), tt.id, tt.pane, tt.cam)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSessionService_CloseAndResume(t *testing.T) {
	f := newFixture(t, 0)
	v, err := f.svc.OpenAnalysis(context.Background(), "a1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	target := domain.Camera{Center: domain.GeoPoint{Lat: 4.71, Lon: -74.07}, Zoom: 13}
	if _, err := f.svc.Move(context.Background(), v.ID, domain.PaneMain, target); err != nil {
		t.Fatalf("move: %v", err)
	}

	if err := f.svc.Close(context.Background(), v.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := f.svc.Get(v.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("closed session still live: %v", err)
	}
	if err := f.svc.Close(context.Background(), v.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second close, got %v", err)
	}

	snap, _ := f.repo.get(v.ID)
	if snap.ClosedAt == nil {
		t.Fatal("expected closed_at on the persisted snapshot")
	}
	if !closeTo(snap.Cameras[domain.PaneMain], target) {
		t.Errorf("persisted camera %+v, want %+v", snap.Cameras[domain.PaneMain], target)
	}

	resumed, err := f.svc.Resume(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.ID != v.ID {
		t.Errorf("resume changed id to %s", resumed.ID)
	}
	if cam := pane(t, resumed, domain.PaneMain).Camera; !closeTo(cam, target) {
		t.Errorf("camera not restored: %+v", cam)
	}
	if snap, _ := f.repo.get(v.ID); snap.ClosedAt != nil {
		t.Error("resumed snapshot still marked closed")
	}

	events := f.publisher.sessionEvents()
	want := []domain.SessionEventType{domain.SessionOpened, domain.SessionClosed, domain.SessionResumed}
	if len(events) != len(want) {
		t.Fatalf("expected %d session events, got %+v", len(want), events)
	}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], ev.Type)
		}
	}
}

func TestSessionService_ResumeUnknown(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.svc.Resume(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionService_Limit(t *testing.T) {
	f := newFixture(t, 1)
	if _, err := f.svc.OpenAnalysis(context.Background(), "a1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.svc.OpenAnalysis(context.Background(), "a2"); !errors.Is(err, domain.ErrSessionLimit) {
		t.Errorf("expected ErrSessionLimit, got %v", err)
	}
}

func TestSessionService_RefreshRefetches(t *testing.T) {
	f := newFixture(t, 0)
	v, err := f.svc.OpenAnalysis(context.Background(), "a1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.svc.Refresh(context.Background(), v.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if a, _ := f.source.calls(); a != 2 {
		t.Errorf("expected refresh to bypass the cache, got %d upstream calls", a)
	}

	v, _ = f.svc.Get(v.ID)
	if n := len(pane(t, v, domain.PaneMain).Layers); n != 1 {
		t.Errorf("refresh must update in place, got %d layer sets", n)
	}
}

func TestSessionService_RefreshComparisonKeepsPanesInLockstep(t *testing.T) {
	f := newFixture(t, 0)
	v, err := f.svc.OpenComparison(context.Background(), "a1", "t1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !v.Synchronized {
		t.Fatal("expected panes to be linked")
	}

	f.source.mu.Lock()
	f.source.analysisFn = func(ctx context.Context, id string) (*domain.Preview, error) {
		return squarePreview(-70, 1, -69, 2, "EPSG:4326"), nil
	}
	f.source.transformationFn = func(ctx context.Context, id string) (*domain.Preview, error) {
		return squarePreview(-60, -10, -59, -9, "EPSG:3116"), nil
	}
	f.source.mu.Unlock()

	v, err = f.svc.Refresh(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	left, right := pane(t, v, domain.PaneLeft), pane(t, v, domain.PaneRight)
	if !closeTo(left.Camera, right.Camera) {
		t.Fatalf("panes diverged after refresh: left %+v right %+v", left.Camera, right.Camera)
	}
	if math.Abs(left.Camera.Center.Lon-(-64.5)) > 1e-6 {
		t.Errorf("expected both extents framed, center %+v", left.Camera.Center)
	}
	if !v.Synchronized {
		t.Error("refresh must keep the link")
	}
}

func TestSessionService_Watch(t *testing.T) {
	f := newFixture(t, 0)
	v, err := f.svc.OpenAnalysis(context.Background(), "a1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var mu sync.Mutex
	var got []domain.CameraEvent
	stop, err := f.svc.Watch(v.ID, func(ev domain.CameraEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer stop()

	target := domain.Camera{Center: domain.GeoPoint{Lat: 4.6, Lon: -74.1}, Zoom: 9}
	if _, err := f.svc.Move(context.Background(), v.ID, domain.PaneMain, target); err != nil {
		t.Fatalf("move: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		var last domain.CameraEvent
		if n > 0 {
			last = got[n-1]
		}
		mu.Unlock()
		if n > 0 && closeTo(last.Camera, target) {
			if last.Source != domain.SourceUser {
				t.Errorf("expected user source, got %s", last.Source)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("watcher never saw the move, got %d events", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionService_Shutdown(t *testing.T) {
	f := newFixture(t, 0)
	for _, id := range []string{"a1", "a2"} {
		if _, err := f.svc.OpenAnalysis(context.Background(), id); err != nil {
			t.Fatalf("open %s: %v", id, err)
		}
	}
	if err := f.svc.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if n := len(f.svc.List()); n != 0 {
		t.Errorf("expected no live sessions, got %d", n)
	}
	for _, e := range f.factory.Engines() {
		if !e.Removed() {
			t.Error("engine left alive after shutdown")
		}
	}
}
