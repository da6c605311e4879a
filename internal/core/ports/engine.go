package ports

import (
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geoviewer/internal/core/domain"
)

// EngineOptions configure a new map instance.
type EngineOptions struct {
	Container domain.Container
	Tiles     domain.TileSource
	Camera    domain.Camera
}

// MapEngine is one interactive map instance bound to one container.
//
// Move callbacks run synchronously on the goroutine that changed the camera,
// once per rendered frame. Load callbacks may run on any goroutine. After
// Remove every method is a no-op.
type MapEngine interface {
	OnLoad(fn func())
	OnMove(fn func(domain.Camera))

	Camera() domain.Camera
	JumpTo(cam domain.Camera)
	FitBounds(box domain.BoundingBox, opts domain.FitOptions)

	HasSource(id string) bool
	AddSource(id string, data *geojson.FeatureCollection) error
	SetSourceData(id string, data *geojson.FeatureCollection) error
	AddLayer(layer domain.Layer) error
	SetPaint(layerID string, paint domain.Paint) error

	Remove()
}

// EngineFactory creates map instances.
type EngineFactory interface {
	NewEngine(opts EngineOptions) (MapEngine, error)
}
