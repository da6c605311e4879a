// Package headless provides an in-process map engine. It keeps the camera,
// sources and layers of a map in memory, signals load asynchronously like a
// real renderer, animates camera fits frame by frame and prefetches the base
// tiles a viewport covers.
package headless

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/core/ports"
	"github.com/samirrijal/geoviewer/internal/pkg/geospatial"
)

const frameInterval = time.Second / 60

// Engine is a headless map instance. It is safe for concurrent use; move
// callbacks run on the goroutine that changed the camera.
type Engine struct {
	opts    ports.EngineOptions
	fetcher TileFetcher

	mu      sync.Mutex
	camera  domain.Camera
	sources map[string]*geojson.FeatureCollection
	layers  []domain.Layer
	loaded  bool
	removed bool
	onLoad  []func()
	onMove  []func(domain.Camera)
	frames  int

	ctx    context.Context
	cancel context.CancelFunc
}

func newEngine(opts ports.EngineOptions, fetcher TileFetcher) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		opts:    opts,
		fetcher: fetcher,
		camera:  clampCamera(opts.Camera, opts.Tiles),
		sources: make(map[string]*geojson.FeatureCollection),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// load marks the engine loaded and fires the load callbacks once.
func (e *Engine) load() {
	e.mu.Lock()
	if e.loaded || e.removed {
		e.mu.Unlock()
		return
	}
	e.loaded = true
	fns := e.onLoad
	e.onLoad = nil
	cam := e.camera
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	e.prefetch(cam)
}

func (e *Engine) OnLoad(fn func()) {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return
	}
	if e.loaded {
		e.mu.Unlock()
		fn()
		return
	}
	e.onLoad = append(e.onLoad, fn)
	e.mu.Unlock()
}

func (e *Engine) OnMove(fn func(domain.Camera)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return
	}
	e.onMove = append(e.onMove, fn)
}

func (e *Engine) Camera() domain.Camera {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera
}

// JumpTo moves the camera without animation.
func (e *Engine) JumpTo(cam domain.Camera) {
	if !e.render(clampCamera(cam, e.opts.Tiles)) {
		return
	}
	e.prefetch(e.Camera())
}

// FitBounds animates the camera to frame box. The transition is rendered as a
// fixed number of interpolated frames; the last frame is the exact target.
func (e *Engine) FitBounds(box domain.BoundingBox, opts domain.FitOptions) {
	c := e.opts.Container
	target := geospatial.FitCamera(box, c.Width, c.Height, opts.Padding, e.tileSize(), e.opts.Tiles.MaxZoom)
	target = clampCamera(target, e.opts.Tiles)

	from := e.Camera()
	n := frameCount(opts.Duration)
	for i := 1; i <= n; i++ {
		frame := target
		if i < n {
			frame = interpolate(from, target, easeOut(float64(i)/float64(n)))
		}
		if !e.render(frame) {
			return
		}
	}
	e.prefetch(target)
}

func (e *Engine) render(cam domain.Camera) bool {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return false
	}
	e.camera = cam
	e.frames++
	fns := append([]func(domain.Camera){}, e.onMove...)
	e.mu.Unlock()

	for _, fn := range fns {
		fn(cam)
	}
	return true
}

func (e *Engine) HasSource(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sources[id]
	return ok
}

func (e *Engine) AddSource(id string, data *geojson.FeatureCollection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil
	}
	if _, ok := e.sources[id]; ok {
		return fmt.Errorf("source %q already exists", id)
	}
	e.sources[id] = data
	return nil
}

func (e *Engine) SetSourceData(id string, data *geojson.FeatureCollection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil
	}
	if _, ok := e.sources[id]; !ok {
		return fmt.Errorf("source %q not found", id)
	}
	e.sources[id] = data
	return nil
}

func (e *Engine) AddLayer(layer domain.Layer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil
	}
	if _, ok := e.sources[layer.Source]; !ok {
		return fmt.Errorf("layer %q: source %q not found", layer.ID, layer.Source)
	}
	for _, l := range e.layers {
		if l.ID == layer.ID {
			return fmt.Errorf("layer %q already exists", layer.ID)
		}
	}
	e.layers = append(e.layers, layer)
	return nil
}

func (e *Engine) SetPaint(layerID string, paint domain.Paint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil
	}
	for i := range e.layers {
		if e.layers[i].ID == layerID {
			e.layers[i].Paint = paint
			return nil
		}
	}
	return fmt.Errorf("layer %q not found", layerID)
}

// Remove releases the instance. Every later call is a no-op.
func (e *Engine) Remove() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return
	}
	e.removed = true
	e.onLoad = nil
	e.onMove = nil
	e.sources = map[string]*geojson.FeatureCollection{}
	e.layers = nil
	e.cancel()
}

// Layers returns a copy of the layers in draw order.
func (e *Engine) Layers() []domain.Layer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Layer(nil), e.layers...)
}

// Source returns the data bound to a source.
func (e *Engine) Source(id string) (*geojson.FeatureCollection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fc, ok := e.sources[id]
	return fc, ok
}

// Frames counts the camera frames rendered so far.
func (e *Engine) Frames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *Engine) Removed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removed
}

// VisibleBounds is the geographic extent currently on screen.
func (e *Engine) VisibleBounds() domain.BoundingBox {
	c := e.opts.Container
	return geospatial.VisibleBounds(e.Camera(), c.Width, c.Height, e.tileSize())
}

// Options returns the options the engine was created with.
func (e *Engine) Options() ports.EngineOptions { return e.opts }

func (e *Engine) prefetch(cam domain.Camera) {
	if e.fetcher == nil || e.opts.Tiles.URL == "" {
		return
	}
	e.mu.Lock()
	ready := e.loaded && !e.removed
	e.mu.Unlock()
	if !ready {
		return
	}
	c := e.opts.Container
	tiles := geospatial.CoveringTiles(cam, c.Width, c.Height, e.tileSize(), e.opts.Tiles.MaxZoom)
	go prefetch(e.ctx, e.fetcher, e.opts.Tiles.URL, tiles)
}

func (e *Engine) tileSize() int {
	if e.opts.Tiles.TileSize > 0 {
		return e.opts.Tiles.TileSize
	}
	return domain.DefaultTileSource.TileSize
}

func clampCamera(cam domain.Camera, tiles domain.TileSource) domain.Camera {
	maxZoom := tiles.MaxZoom
	if maxZoom <= 0 {
		maxZoom = domain.DefaultTileSource.MaxZoom
	}
	cam.Zoom = math.Max(tiles.MinZoom, math.Min(maxZoom, cam.Zoom))
	cam.Center.Lat = math.Max(-geospatial.MaxMercatorLat, math.Min(geospatial.MaxMercatorLat, cam.Center.Lat))
	return cam
}

func frameCount(d time.Duration) int {
	n := int(d / frameInterval)
	if n < 1 {
		return 1
	}
	return n
}

func interpolate(a, b domain.Camera, t float64) domain.Camera {
	return domain.Camera{
		Center: domain.GeoPoint{
			Lat: a.Center.Lat + (b.Center.Lat-a.Center.Lat)*t,
			Lon: a.Center.Lon + (b.Center.Lon-a.Center.Lon)*t,
		},
		Zoom: a.Zoom + (b.Zoom-a.Zoom)*t,
	}
}

func easeOut(t float64) float64 {
	return 1 - (1-t)*(1-t)
}
