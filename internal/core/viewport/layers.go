package viewport

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/core/ports"
	"github.com/samirrijal/geoviewer/internal/pkg/metrics"
)

// LayerManager keeps at most one layer set per role on a controller's map.
type LayerManager struct {
	ctrl *Controller

	mu   sync.RWMutex
	sets map[domain.Role]domain.LayerSet
}

// NewLayerManager binds a manager to ctrl.
func NewLayerManager(ctrl *Controller) *LayerManager {
	return &LayerManager{ctrl: ctrl, sets: make(map[domain.Role]domain.LayerSet)}
}

// Upsert draws preview for role, as Draw does, and then fits the camera to
// the preview bounds when they are valid.
func (m *LayerManager) Upsert(role domain.Role, preview *domain.Preview, color domain.Color) {
	if !preview.HasGeometry() {
		return
	}
	m.Draw(role, preview, color)
	m.ctrl.FitToBounds(preview.Bounds)
}

// Draw adds or replaces the data for role without moving the camera. A
// preview without geometry is ignored. When the source already exists its
// data is replaced in place and the layers are repainted if the color changed.
func (m *LayerManager) Draw(role domain.Role, preview *domain.Preview, color domain.Color) {
	if !preview.HasGeometry() {
		return
	}
	data := preview.Geometry

	m.ctrl.Run(func(e ports.MapEngine) {
		set := domain.LayerSet{
			Role:      role,
			SourceID:  string(role),
			FillID:    role.LayerPrefix() + "-fill",
			OutlineID: role.LayerPrefix() + "-outline",
			Color:     color,
			Features:  len(data.Features),
		}

		if e.HasSource(set.SourceID) {
			if err := e.SetSourceData(set.SourceID, data); err != nil {
				slog.Warn("replace source data failed", "pane", m.ctrl.Name(), "source", set.SourceID, "error", err)
				return
			}
			m.mu.RLock()
			prev, known := m.sets[role]
			m.mu.RUnlock()
			if !known || prev.Color != color {
				m.paint(e, set)
			}
			metrics.LayerUpserts.WithLabelValues("update").Inc()
		} else {
			if err := m.create(e, set, data); err != nil {
				slog.Warn("add layers failed", "pane", m.ctrl.Name(), "role", role, "error", err)
				return
			}
			metrics.LayerUpserts.WithLabelValues("create").Inc()
		}

		m.mu.Lock()
		m.sets[role] = set
		m.mu.Unlock()
	})
}

func (m *LayerManager) create(e ports.MapEngine, set domain.LayerSet, data *geojson.FeatureCollection) error {
	if err := e.AddSource(set.SourceID, data); err != nil {
		return fmt.Errorf("add source %s: %w", set.SourceID, err)
	}
	if err := e.AddLayer(domain.Layer{
		ID:     set.FillID,
		Kind:   domain.LayerFill,
		Source: set.SourceID,
		Paint:  domain.Paint{Color: set.Color, Opacity: domain.FillOpacity},
	}); err != nil {
		return fmt.Errorf("add layer %s: %w", set.FillID, err)
	}
	if err := e.AddLayer(domain.Layer{
		ID:     set.OutlineID,
		Kind:   domain.LayerLine,
		Source: set.SourceID,
		Paint:  domain.Paint{Color: set.Color, Width: domain.OutlineWidth},
	}); err != nil {
		return fmt.Errorf("add layer %s: %w", set.OutlineID, err)
	}
	return nil
}

func (m *LayerManager) paint(e ports.MapEngine, set domain.LayerSet) {
	if err := e.SetPaint(set.FillID, domain.Paint{Color: set.Color, Opacity: domain.FillOpacity}); err != nil {
		slog.Warn("repaint fill failed", "layer", set.FillID, "error", err)
	}
	if err := e.SetPaint(set.OutlineID, domain.Paint{Color: set.Color, Width: domain.OutlineWidth}); err != nil {
		slog.Warn("repaint outline failed", "layer", set.OutlineID, "error", err)
	}
}

// LayerSets returns the layer sets currently on the map, ordered by role.
func (m *LayerManager) LayerSets() []domain.LayerSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.LayerSet, 0, len(m.sets))
	for _, s := range m.sets {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}
