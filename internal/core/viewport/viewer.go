package viewport

import (
	"sync"

	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/core/ports"
	"github.com/samirrijal/geoviewer/internal/pkg/eventloop"
)

// MapViewer shows a single preview on one pane.
type MapViewer struct {
	ctrl   *Controller
	layers *LayerManager

	mu         sync.Mutex
	lastBounds domain.CandidateBounds
}

// NewMapViewer creates an unmounted viewer.
func NewMapViewer(loop *eventloop.Loop, factory ports.EngineFactory, opts Options) *MapViewer {
	ctrl := NewController(domain.PaneMain, loop, factory, opts)
	return &MapViewer{ctrl: ctrl, layers: NewLayerManager(ctrl)}
}

// Mount creates the map using the bounds available now and draws the preview.
func (v *MapViewer) Mount(preview *domain.Preview) error {
	var bounds domain.CandidateBounds
	if preview != nil {
		bounds = preview.Bounds
	}
	if err := v.ctrl.Mount(bounds); err != nil {
		return err
	}
	v.Update(preview)
	return nil
}

// Update draws new preview data. Geometry is upserted in place, which also
// fits the camera; without geometry the camera is only refitted when the
// bounds changed.
func (v *MapViewer) Update(preview *domain.Preview) {
	if preview == nil {
		return
	}
	v.mu.Lock()
	changed := !v.lastBounds.Equal(preview.Bounds)
	v.lastBounds = preview.Bounds
	v.mu.Unlock()

	if preview.HasGeometry() {
		v.layers.Upsert(domain.RoleData, preview, domain.ColorOriginal)
		return
	}
	if changed {
		v.ctrl.FitToBounds(preview.Bounds)
	}
}

// Unmount disposes the map.
func (v *MapViewer) Unmount() { v.ctrl.Dispose() }

// Controller exposes the pane controller.
func (v *MapViewer) Controller() *Controller { return v.ctrl }

// Layers returns the layer sets on the map.
func (v *MapViewer) Layers() []domain.LayerSet { return v.layers.LayerSets() }
