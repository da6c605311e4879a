package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Role identifies a logical layer set on a viewport. Upserts are keyed by role.
type Role string

const (
	RoleData        Role = "data"
	RoleOriginal    Role = "original-data"
	RoleTransformed Role = "transformed-data"
)

// LayerPrefix is the short name used for the role's layer ids.
func (r Role) LayerPrefix() string {
	return strings.TrimSuffix(string(r), "-data")
}

// Color is a CSS hex color.
type Color string

const (
	ColorOriginal    Color = "#667eea"
	ColorTransformed Color = "#48bb78"
)

// PaneColor returns the accent for a role. The transformed pane falls back to
// the original accent when it is showing the original data.
func PaneColor(role Role, hasTransformed bool) Color {
	if role == RoleTransformed && hasTransformed {
		return ColorTransformed
	}
	return ColorOriginal
}

const (
	FillOpacity  = 0.6
	OutlineWidth = 2.0
)

// LayerKind is the rendering type of a layer.
type LayerKind string

const (
	LayerFill LayerKind = "fill"
	LayerLine LayerKind = "line"
)

// Paint holds the paint properties the viewer uses.
type Paint struct {
	Color   Color   `json:"color"`
	Opacity float64 `json:"opacity,omitempty"`
	Width   float64 `json:"width,omitempty"`
}

// Layer is a rendering layer bound to a source.
type Layer struct {
	ID     string    `json:"id"`
	Kind   LayerKind `json:"kind"`
	Source string    `json:"source"`
	Paint  Paint     `json:"paint"`
}

// LayerSet is the fill/outline pair bound to one role's source.
type LayerSet struct {
	Role      Role   `json:"role"`
	SourceID  string `json:"source_id"`
	FillID    string `json:"fill_id"`
	OutlineID string `json:"outline_id"`
	Color     Color  `json:"color"`
	Features  int    `json:"features"`
}

// Preview is the payload supplied by the analysis service: a geometry
// collection, its extent and the label of the reference system applied.
type Preview struct {
	Geometry   *geojson.FeatureCollection `json:"geojson"`
	Bounds     CandidateBounds            `json:"bounds"`
	AppliedCRS string                     `json:"crs_aplicado"`
}

// HasGeometry reports whether there is anything to draw.
func (p *Preview) HasGeometry() bool {
	return p != nil && p.Geometry != nil
}

// TileSource describes the raster base map.
type TileSource struct {
	URL         string  `json:"url"`
	TileSize    int     `json:"tile_size"`
	Attribution string  `json:"attribution"`
	MinZoom     float64 `json:"min_zoom"`
	MaxZoom     float64 `json:"max_zoom"`
}

// DefaultTileSource is the OpenStreetMap raster endpoint.
var DefaultTileSource = TileSource{
	URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
	TileSize:    256,
	Attribution: "© OpenStreetMap contributors",
	MinZoom:     0,
	MaxZoom:     22,
}

// Container is the render surface a pane binds to.
type Container struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// FitOptions control an animated fit to bounds.
type FitOptions struct {
	Padding  float64       `json:"padding"`
	Duration time.Duration `json:"duration"`
}

// ViewportStatus is the controller lifecycle state.
type ViewportStatus int

const (
	StatusUninitialized ViewportStatus = iota
	StatusLoading
	StatusReady
	StatusDisposed
)

func (s ViewportStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusDisposed:
		return "disposed"
	default:
		return "uninitialized"
	}
}

func (s ViewportStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ViewportStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "loading":
		*s = StatusLoading
	case "ready":
		*s = StatusReady
	case "disposed":
		*s = StatusDisposed
	case "uninitialized":
		*s = StatusUninitialized
	default:
		return fmt.Errorf("unknown viewport status %q", text)
	}
	return nil
}
