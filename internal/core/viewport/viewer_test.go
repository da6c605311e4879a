package viewport_test

import (
	"testing"

	"github.com/samirrijal/geoviewer/internal/adapters/headless"
	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/core/viewport"
)

func TestMapViewer_MountFitsPreview(t *testing.T) {
	loop := newLoop(t)
	f := headless.NewFactory(nil, 0)
	v := viewport.NewMapViewer(loop, f, testOptions())

	if err := v.Mount(preview(bogota, "EPSG:4326")); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, loop, v.Controller())
	e := engineFor(t, f, "test")

	vb := e.VisibleBounds()
	if vb.MinX() > bogota[0] || vb.MinY() > bogota[1] || vb.MaxX() < bogota[2] || vb.MaxY() < bogota[3] {
		t.Errorf("visible bounds %v do not contain %v", vb, bogota)
	}
	// Latitude is the constraining axis: 500 of 600 px are filled by the box.
	height := vb.MaxY() - vb.MinY()
	if limit := (bogota[3] - bogota[1]) * 600 / 500 * 1.1; height > limit {
		t.Errorf("fit too loose: visible height %v exceeds %v", height, limit)
	}

	sets := v.Layers()
	if len(sets) != 1 || sets[0].Role != domain.RoleData {
		t.Fatalf("expected exactly one data layer set, got %+v", sets)
	}
	if sets[0].Color != domain.ColorOriginal {
		t.Errorf("expected %s, got %s", domain.ColorOriginal, sets[0].Color)
	}
}

func TestMapViewer_UpdateWithoutGeometryRefitsOnBoundsChange(t *testing.T) {
	loop := newLoop(t)
	f := headless.NewFactory(nil, 0)
	v := viewport.NewMapViewer(loop, f, testOptions())

	if err := v.Mount(&domain.Preview{Bounds: bogota}); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, loop, v.Controller())
	e := engineFor(t, f, "test")

	frames := e.Frames()
	v.Update(&domain.Preview{Bounds: bogota})
	settle(t, loop)
	if e.Frames() != frames {
		t.Error("expected no fit when bounds are unchanged")
	}

	madrid := domain.CandidateBounds{-3.9, 40.3, -3.5, 40.6}
	v.Update(&domain.Preview{Bounds: madrid})
	settle(t, loop)

	vb := e.VisibleBounds()
	if vb.MinX() > madrid[0] || vb.MaxX() < madrid[2] || vb.MinY() > madrid[1] || vb.MaxY() < madrid[3] {
		t.Errorf("visible bounds %v do not contain %v", vb, madrid)
	}
	if len(e.Layers()) != 0 {
		t.Errorf("expected no layers without geometry, got %d", len(e.Layers()))
	}
}

func TestMapViewer_Unmount(t *testing.T) {
	loop := newLoop(t)
	f := headless.NewFactory(nil, 0)
	v := viewport.NewMapViewer(loop, f, testOptions())
	if err := v.Mount(nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, loop, v.Controller())

	v.Unmount()
	settle(t, loop)

	if !engineFor(t, f, "test").Removed() {
		t.Error("expected engine to be removed")
	}
	if v.Controller().Status() != domain.StatusDisposed {
		t.Errorf("expected disposed, got %s", v.Controller().Status())
	}
}
