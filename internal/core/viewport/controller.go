// Package viewport manages interactive map panes: the lifecycle of a single
// map instance, idempotent layer upserts, and camera mirroring between panes.
//
// All mutable state of a pane lives on an eventloop.Loop. Public methods may be
// called from any goroutine; they hand the work to the loop and return.
package viewport

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/core/ports"
	"github.com/samirrijal/geoviewer/internal/pkg/eventloop"
	"github.com/samirrijal/geoviewer/internal/pkg/geospatial"
	"github.com/samirrijal/geoviewer/internal/pkg/metrics"
)

// Options hold the fixed parameters of a pane.
type Options struct {
	Container     domain.Container
	Tiles         domain.TileSource
	DefaultCenter domain.GeoPoint
	ZoomedIn      float64 // starting zoom when the initial bounds are valid
	ZoomedOut     float64 // starting zoom otherwise
	Fit           domain.FitOptions
}

// DefaultOptions mirror the viewer's stock behaviour.
func DefaultOptions() Options {
	return Options{
		Container:     domain.Container{ID: "map", Width: 800, Height: 600},
		Tiles:         domain.DefaultTileSource,
		DefaultCenter: domain.GeoPoint{Lon: -74.0, Lat: 4.6},
		ZoomedIn:      10,
		ZoomedOut:     5,
		Fit:           domain.FitOptions{Padding: 50, Duration: time.Second},
	}
}

// InitialCamera picks the starting camera for a pane.
func (o Options) InitialCamera(bounds []float64) domain.Camera {
	if box, ok := geospatial.ValidateBounds(bounds); ok {
		return domain.Camera{Center: box.Center(), Zoom: o.ZoomedIn}
	}
	return domain.Camera{Center: o.DefaultCenter, Zoom: o.ZoomedOut}
}

// Op is an operation against a ready map instance.
type Op func(e ports.MapEngine)

type listener struct {
	id int
	fn func(domain.CameraChange)
}

// Controller owns one map instance and its lifecycle:
//
//	Uninitialized -> Loading -> Ready -> Disposed
//
// Operations submitted before Ready are queued and replayed in submission
// order when the engine signals load. Anything submitted after Dispose, and
// any engine callback arriving after it, is ignored.
type Controller struct {
	name    string
	loop    *eventloop.Loop
	factory ports.EngineFactory
	opts    Options

	mu     sync.RWMutex // guards status, camera, err
	status domain.ViewportStatus
	camera domain.Camera
	err    error

	// Owned by the loop goroutine.
	engine    ports.MapEngine
	pending   []Op
	listeners []listener
	readyFns  []func()
	nextID    int
	origin    domain.CameraSource
	syncing   bool
}

// NewController creates an uninitialized controller.
func NewController(name string, loop *eventloop.Loop, factory ports.EngineFactory, opts Options) *Controller {
	return &Controller{
		name:    name,
		loop:    loop,
		factory: factory,
		opts:    opts,
		origin:  domain.SourceUser,
	}
}

// Name returns the pane name used in logs.
func (c *Controller) Name() string { return c.name }

// Options returns the pane options.
func (c *Controller) Options() Options { return c.opts }

// Status returns the lifecycle state.
func (c *Controller) Status() domain.ViewportStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Err returns the engine construction error, if any.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Camera returns the last known camera. ok is false once disposed.
func (c *Controller) Camera() (cam domain.Camera, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.camera, c.status != domain.StatusDisposed
}

// Mount binds the controller to its container and starts loading the map.
// The starting camera is derived from initialBounds.
func (c *Controller) Mount(initialBounds []float64) error {
	c.mu.Lock()
	if c.status != domain.StatusUninitialized {
		st := c.status
		c.mu.Unlock()
		return fmt.Errorf("mount %s: controller is %s", c.name, st)
	}
	c.status = domain.StatusLoading
	c.camera = c.opts.InitialCamera(initialBounds)
	cam := c.camera
	c.mu.Unlock()
	metrics.ViewportTransitions.WithLabelValues("loading").Inc()

	c.loop.Post(func() { c.create(cam) })
	return nil
}

func (c *Controller) create(cam domain.Camera) {
	if c.Status() != domain.StatusLoading {
		return
	}

	engine, err := c.factory.NewEngine(ports.EngineOptions{
		Container: c.opts.Container,
		Tiles:     c.opts.Tiles,
		Camera:    cam,
	})
	if err != nil {
		slog.Error("map engine creation failed", "pane", c.name, "error", err)
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		c.Dispose()
		return
	}

	c.engine = engine
	engine.OnMove(c.handleMove)
	engine.OnLoad(func() { c.loop.Post(c.becomeReady) })
	slog.Debug("viewport loading", "pane", c.name, "center", cam.Center, "zoom", cam.Zoom)
}

func (c *Controller) becomeReady() {
	c.mu.Lock()
	if c.status != domain.StatusLoading {
		c.mu.Unlock()
		return
	}
	c.status = domain.StatusReady
	c.mu.Unlock()
	metrics.ViewportTransitions.WithLabelValues("ready").Inc()

	queued := c.pending
	c.pending = nil
	for _, op := range queued {
		if c.Status() != domain.StatusReady {
			return
		}
		op(c.engine)
		metrics.QueuedOpsReplayed.Inc()
	}

	fns := c.readyFns
	c.readyFns = nil
	for _, fn := range fns {
		fn()
	}
	slog.Debug("viewport ready", "pane", c.name, "replayed", len(queued))
}

// Run submits op. It runs immediately on the loop when the controller is
// ready, is queued while it is still loading, and is dropped once disposed.
func (c *Controller) Run(op Op) {
	c.loop.Post(func() { c.exec(op) })
}

func (c *Controller) exec(op Op) {
	switch c.Status() {
	case domain.StatusUninitialized, domain.StatusLoading:
		c.pending = append(c.pending, op)
	case domain.StatusReady:
		op(c.engine)
	}
}

// SetCamera moves the camera programmatically.
func (c *Controller) SetCamera(cam domain.Camera) {
	c.Run(func(e ports.MapEngine) {
		c.mutate(domain.SourceProgrammatic, func() { e.JumpTo(cam) })
	})
}

// Interact applies a camera change made by the user of this pane.
func (c *Controller) Interact(cam domain.Camera) {
	c.Run(func(e ports.MapEngine) {
		c.mutate(domain.SourceUser, func() { e.JumpTo(cam) })
	})
}

// FitToBounds animates the camera to frame bounds. It reports false, and does
// nothing, when bounds are invalid.
func (c *Controller) FitToBounds(bounds []float64) bool {
	box, ok := geospatial.ValidateBounds(bounds)
	if !ok {
		return false
	}
	c.Run(func(e ports.MapEngine) {
		c.mutate(domain.SourceProgrammatic, func() { e.FitBounds(box, c.opts.Fit) })
	})
	return true
}

// applySync mirrors a linked pane's camera onto this one. It must be called
// on the loop. The change is tagged SourceSync so the link does not forward
// it again.
func (c *Controller) applySync(cam domain.Camera) {
	c.exec(func(e ports.MapEngine) {
		c.syncing = true
		c.mutate(domain.SourceSync, func() { e.JumpTo(cam) })
		c.syncing = false
		metrics.SyncApplied.Inc()
	})
}

func (c *Controller) mutate(origin domain.CameraSource, fn func()) {
	prev := c.origin
	c.origin = origin
	defer func() { c.origin = prev }()
	fn()
}

func (c *Controller) handleMove(cam domain.Camera) {
	c.mu.Lock()
	if c.status == domain.StatusDisposed {
		c.mu.Unlock()
		return
	}
	c.camera = cam
	c.mu.Unlock()

	source := c.origin
	if c.syncing {
		source = domain.SourceSync
	}
	ev := domain.CameraChange{Camera: cam, Source: source}
	for _, l := range append([]listener(nil), c.listeners...) {
		l.fn(ev)
	}
}

// OnCameraChange registers fn for every camera mutation. The returned
// function removes the registration.
func (c *Controller) OnCameraChange(fn func(domain.CameraChange)) (cancel func()) {
	var id int
	c.loop.Post(func() {
		if c.Status() == domain.StatusDisposed {
			return
		}
		c.nextID++
		id = c.nextID
		c.listeners = append(c.listeners, listener{id: id, fn: fn})
	})
	// Posted after the registration, so the loop has already assigned id.
	return func() {
		c.loop.Post(func() {
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// OnReady runs fn on the loop once the controller is ready; immediately (on
// the loop) if it already is. fn never runs if the controller is disposed first.
func (c *Controller) OnReady(fn func()) {
	c.loop.Post(func() {
		switch c.Status() {
		case domain.StatusReady:
			fn()
		case domain.StatusUninitialized, domain.StatusLoading:
			c.readyFns = append(c.readyFns, fn)
		}
	})
}

// Dispose releases the map instance. The controller is marked disposed before
// Dispose returns, so no queued operation or late callback will touch the
// engine afterwards; the engine itself is torn down on the loop.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.status == domain.StatusDisposed {
		c.mu.Unlock()
		return
	}
	c.status = domain.StatusDisposed
	c.mu.Unlock()
	metrics.ViewportTransitions.WithLabelValues("disposed").Inc()

	c.loop.Post(func() {
		c.pending = nil
		c.listeners = nil
		c.readyFns = nil
		if c.engine != nil {
			c.engine.Remove()
			c.engine = nil
		}
		slog.Debug("viewport disposed", "pane", c.name)
	})
}
