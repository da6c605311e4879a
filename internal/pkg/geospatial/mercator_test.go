package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/pkg/geospatial"
)

func TestFitCamera_FramesBoxWithinPadding(t *testing.T) {
	box := domain.BoundingBox{-74.1, 4.5, -74.0, 4.7}
	const w, h, pad = 800, 600, 50.0

	cam := geospatial.FitCamera(box, w, h, pad, 256, 22)

	if math.Abs(cam.Center.Lon-(-74.05)) > 1e-9 {
		t.Errorf("expected center lon -74.05, got %v", cam.Center.Lon)
	}
	if math.Abs(cam.Center.Lat-4.6) > 1e-3 {
		t.Errorf("expected center lat ~4.6, got %v", cam.Center.Lat)
	}

	pw, ph := geospatial.PixelSize(box, cam.Zoom, 256)
	if pw > w-2*pad+1e-6 || ph > h-2*pad+1e-6 {
		t.Fatalf("box does not fit: %.2fx%.2f px", pw, ph)
	}
	// The constraining axis must be filled.
	if math.Abs(ph-(h-2*pad)) > 1e-6 && math.Abs(pw-(w-2*pad)) > 1e-6 {
		t.Errorf("fit is not tight: %.2fx%.2f px", pw, ph)
	}

	visible := geospatial.VisibleBounds(cam, w, h, 256)
	if visible.MinX() > box.MinX() || visible.MaxX() < box.MaxX() ||
		visible.MinY() > box.MinY() || visible.MaxY() < box.MaxY() {
		t.Errorf("visible bounds %v do not contain %v", visible, box)
	}
}

func TestFitCamera_PointUsesMaxZoom(t *testing.T) {
	box := domain.BoundingBox{-3.0, 43.0, -3.0, 43.0}
	cam := geospatial.FitCamera(box, 800, 600, 50, 256, 18)
	if cam.Zoom != 18 {
		t.Errorf("expected zoom 18, got %v", cam.Zoom)
	}
}

func TestFitCamera_WorldClampsToZero(t *testing.T) {
	box := domain.BoundingBox{-180, -85, 180, 85}
	cam := geospatial.FitCamera(box, 100, 100, 0, 256, 22)
	if cam.Zoom != 0 {
		t.Errorf("expected zoom 0, got %v", cam.Zoom)
	}
}

func TestCoveringTiles(t *testing.T) {
	cam := domain.Camera{Center: domain.GeoPoint{Lon: 0, Lat: 0}, Zoom: 1}
	tiles := geospatial.CoveringTiles(cam, 512, 512, 256, 22)
	if len(tiles) != 4 {
		t.Fatalf("expected the 4 tiles of zoom 1, got %d", len(tiles))
	}
	for _, tl := range tiles {
		if tl.Z != 1 {
			t.Errorf("expected z=1, got %d", tl.Z)
		}
	}
}
