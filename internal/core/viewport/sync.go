package viewport

import (
	"sync"
	"sync/atomic"

	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/pkg/metrics"
)

// CameraLink keeps the cameras of several panes in lockstep. It mediates
// every change: the latest camera set on any linked pane, by a user or
// programmatically, is applied to all the other panes. Changes that were
// themselves applied by the link are never forwarded again, so two panes
// cannot ping-pong.
//
// Linked panes must share one event loop.
type CameraLink struct {
	panes   []*Controller
	cancels []func()
	once    sync.Once
	closed  atomic.Bool

	mu      sync.Mutex
	pending *linkedChange
}

type linkedChange struct {
	origin *Controller
	camera domain.Camera
}

// Link mirrors camera changes between panes until Close is called.
func Link(panes ...*Controller) *CameraLink {
	l := &CameraLink{panes: panes}
	for _, p := range panes {
		origin := p
		l.cancels = append(l.cancels, p.OnCameraChange(func(ev domain.CameraChange) {
			l.forward(origin, ev)
		}))
	}
	return l
}

// forward records ev as the latest change and schedules one delivery. A
// change arriving before the delivery ran replaces the recorded one, even
// when it came from another pane: the last writer wins.
func (l *CameraLink) forward(origin *Controller, ev domain.CameraChange) {
	if l.closed.Load() {
		return
	}
	if ev.Source == domain.SourceSync {
		metrics.SyncSuppressed.Inc()
		return
	}

	l.mu.Lock()
	scheduled := l.pending != nil
	l.pending = &linkedChange{origin: origin, camera: ev.Camera}
	l.mu.Unlock()

	if scheduled {
		metrics.SyncCoalesced.Inc()
		return
	}
	origin.loop.Post(l.deliver)
}

func (l *CameraLink) deliver() {
	l.mu.Lock()
	change := l.pending
	l.pending = nil
	l.mu.Unlock()

	if change == nil || l.closed.Load() {
		return
	}
	for _, p := range l.panes {
		if p == change.origin {
			continue
		}
		p.applySync(change.camera)
	}
}

// Close detaches the link from all panes.
func (l *CameraLink) Close() {
	l.once.Do(func() {
		l.closed.Store(true)
		for _, cancel := range l.cancels {
			cancel()
		}
	})
}
