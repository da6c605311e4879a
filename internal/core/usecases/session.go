package usecases

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/core/ports"
	"github.com/samirrijal/geoviewer/internal/core/viewport"
	"github.com/samirrijal/geoviewer/internal/pkg/eventloop"
)

const titlePreview = "Preview"

// session is one live viewer: a single pane for an analysis or two linked
// panes for a comparison. All panes of a session share one event loop.
type session struct {
	id               string
	kind             domain.SessionKind
	analysisID       string
	transformationID string
	createdAt        time.Time

	loop    *eventloop.Loop
	viewer  *viewport.MapViewer
	compare *viewport.SideBySideMap
	pump    *cameraPump
	cancels []func()

	mu       sync.Mutex
	crsLabel string
}

func newSession(snap *domain.SessionSnapshot, publisher ports.EventPublisher) *session {
	return &session{
		id:               snap.ID,
		kind:             snap.Kind,
		analysisID:       snap.AnalysisID,
		transformationID: snap.TransformationID,
		createdAt:        snap.CreatedAt,
		loop:             eventloop.New(),
		pump:             newCameraPump(snap.ID, publisher),
		crsLabel:         viewport.CRSLabelNotSpecified,
	}
}

func (s *session) mount(factory ports.EngineFactory, opts viewport.Options, original, transformed *domain.Preview) error {
	opts.Container.ID = s.id

	switch s.kind {
	case domain.KindComparison:
		s.compare = viewport.NewSideBySideMap(s.loop, factory, opts)
		s.watchPanes()
		return s.compare.Mount(original, transformed)
	default:
		s.viewer = viewport.NewMapViewer(s.loop, factory, opts)
		s.watchPanes()
		s.setCRS(original)
		return s.viewer.Mount(original)
	}
}

func (s *session) watchPanes() {
	for name, ctrl := range s.panes() {
		pane := name
		s.cancels = append(s.cancels, ctrl.OnCameraChange(func(ev domain.CameraChange) {
			s.pump.push(domain.CameraEvent{
				SessionID: s.id,
				Pane:      pane,
				Camera:    ev.Camera,
				Source:    ev.Source,
				Time:      time.Now().UTC(),
			})
		}))
	}
}

func (s *session) setCRS(p *domain.Preview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crsLabel = viewport.CRSLabelNotSpecified
	if p != nil && p.AppliedCRS != "" {
		s.crsLabel = p.AppliedCRS
	}
}

func (s *session) update(original, transformed *domain.Preview) {
	if s.compare != nil {
		s.compare.Update(original, transformed)
		return
	}
	s.setCRS(original)
	s.viewer.Update(original)
}

func (s *session) panes() map[string]*viewport.Controller {
	if s.compare != nil {
		return map[string]*viewport.Controller{
			domain.PaneLeft:  s.compare.Left(),
			domain.PaneRight: s.compare.Right(),
		}
	}
	return map[string]*viewport.Controller{domain.PaneMain: s.viewer.Controller()}
}

func (s *session) controller(pane string) (*viewport.Controller, error) {
	c, ok := s.panes()[pane]
	if !ok {
		return nil, domain.ErrUnknownPane
	}
	return c, nil
}

// waitReady blocks until every pane is ready or ctx is done.
func (s *session) waitReady(ctx context.Context) error {
	for _, ctrl := range s.panes() {
		ready := make(chan struct{})
		ctrl.OnReady(func() { close(ready) })
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// settle waits until camera changes triggered so far, including the ones
// mirrored onto a linked pane, have been applied.
func (s *session) settle(ctx context.Context) error {
	for i := 0; i < 4; i++ {
		if err := s.loop.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) view() domain.SessionView {
	v := domain.SessionView{
		ID:               s.id,
		Kind:             s.kind,
		AnalysisID:       s.analysisID,
		TransformationID: s.transformationID,
		CreatedAt:        s.createdAt,
	}

	if s.compare != nil {
		labels := s.compare.Labels()
		v.Synchronized = s.compare.Synchronized()
		v.Panes = []domain.PaneView{
			paneView(domain.PaneLeft, labels.LeftTitle, labels.LeftCRS, s.compare.Left(), s.compare.LeftLayers()),
			paneView(domain.PaneRight, labels.RightTitle, labels.RightCRS, s.compare.Right(), s.compare.RightLayers()),
		}
		return v
	}

	s.mu.Lock()
	crs := s.crsLabel
	s.mu.Unlock()
	v.Panes = []domain.PaneView{
		paneView(domain.PaneMain, titlePreview, crs, s.viewer.Controller(), s.viewer.Layers()),
	}
	return v
}

func paneView(name, title, crs string, ctrl *viewport.Controller, layers []domain.LayerSet) domain.PaneView {
	cam, _ := ctrl.Camera()
	if layers == nil {
		layers = []domain.LayerSet{}
	}
	return domain.PaneView{
		Name:     name,
		Title:    title,
		CRSLabel: crs,
		Status:   ctrl.Status(),
		Camera:   cam,
		Layers:   layers,
	}
}

func (s *session) snapshot(now time.Time) domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		ID:               s.id,
		Kind:             s.kind,
		AnalysisID:       s.analysisID,
		TransformationID: s.transformationID,
		Cameras:          make(map[string]domain.Camera),
		CreatedAt:        s.createdAt,
		UpdatedAt:        now,
	}
	for name, ctrl := range s.panes() {
		if cam, ok := ctrl.Camera(); ok {
			snap.Cameras[name] = cam
		}
	}
	return snap
}

func (s *session) close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	if s.compare != nil {
		s.compare.Unmount()
	} else if s.viewer != nil {
		s.viewer.Unmount()
	}
	s.loop.Close()
	<-s.loop.Done()
	s.pump.stop()
}

// cameraPump forwards camera events to the broker and to local watchers off
// the event loop. Only the latest event per pane is kept while a delivery is
// in flight, so an animated fit does not flood subscribers.
type cameraPump struct {
	sessionID string
	publisher ports.EventPublisher

	mu       sync.Mutex
	pending  map[string]domain.CameraEvent
	watchers map[int]func(domain.CameraEvent)
	nextID   int

	wake     chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newCameraPump(sessionID string, publisher ports.EventPublisher) *cameraPump {
	p := &cameraPump{
		sessionID: sessionID,
		publisher: publisher,
		pending:   make(map[string]domain.CameraEvent),
		watchers:  make(map[int]func(domain.CameraEvent)),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *cameraPump) push(ev domain.CameraEvent) {
	p.mu.Lock()
	p.pending[ev.Pane] = ev
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *cameraPump) watch(fn func(domain.CameraEvent)) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.watchers[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}
}

func (p *cameraPump) run() {
	defer close(p.stopped)
	for {
		select {
		case <-p.wake:
			p.deliver()
		case <-p.done:
			p.deliver()
			return
		}
	}
}

func (p *cameraPump) deliver() {
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.mu.Unlock()
		return
	}
	events := make([]domain.CameraEvent, 0, len(p.pending))
	for _, ev := range p.pending {
		events = append(events, ev)
	}
	p.pending = make(map[string]domain.CameraEvent)
	watchers := make([]func(domain.CameraEvent), 0, len(p.watchers))
	for _, fn := range p.watchers {
		watchers = append(watchers, fn)
	}
	p.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Pane < events[j].Pane })
	for _, ev := range events {
		if p.publisher != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := p.publisher.PublishCamera(ctx, &ev); err != nil {
				slog.Warn("publish camera event failed", "session", p.sessionID, "pane", ev.Pane, "error", err)
			}
			cancel()
		}
		for _, fn := range watchers {
			fn(ev)
		}
	}
}

func (p *cameraPump) stop() {
	p.stopOnce.Do(func() { close(p.done) })
	<-p.stopped
}
