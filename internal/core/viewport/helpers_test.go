package viewport_test

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geoviewer/internal/adapters/headless"
	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/core/viewport"
	"github.com/samirrijal/geoviewer/internal/pkg/eventloop"
)

var bogota = domain.CandidateBounds{-74.2, 4.5, -74.0, 4.8}

func newLoop(t *testing.T) *eventloop.Loop {
	t.Helper()
	loop := eventloop.New()
	t.Cleanup(loop.Close)
	return loop
}

func testOptions() viewport.Options {
	opts := viewport.DefaultOptions()
	opts.Container = domain.Container{ID: "test", Width: 800, Height: 600}
	return opts
}

// settle drains the loop, including tasks that tasks post.
func settle(t *testing.T, loop *eventloop.Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < 8; i++ {
		if err := loop.Flush(ctx); err != nil {
			t.Fatalf("flush: %v", err)
		}
	}
}

func waitReady(t *testing.T, loop *eventloop.Loop, ctrls ...*viewport.Controller) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for _, c := range ctrls {
		for c.Status() != domain.StatusReady {
			if time.Now().After(deadline) {
				t.Fatalf("%s never became ready (status %s)", c.Name(), c.Status())
			}
			time.Sleep(time.Millisecond)
		}
	}
	settle(t, loop)
}

func square(minX, minY, maxX, maxY float64) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}))
	return fc
}

func preview(bounds domain.CandidateBounds, crs string) *domain.Preview {
	p := &domain.Preview{Bounds: bounds, AppliedCRS: crs}
	if len(bounds) == 4 {
		p.Geometry = square(bounds[0], bounds[1], bounds[2], bounds[3])
	}
	return p
}

func engineFor(t *testing.T, f *headless.Factory, containerID string) *headless.Engine {
	t.Helper()
	e, ok := f.Engine(containerID)
	if !ok {
		t.Fatalf("no engine for container %q", containerID)
	}
	return e
}

// recorder collects camera changes. Listeners run on the loop; read after settle.
type recorder struct {
	events []domain.CameraChange
}

func (r *recorder) record(ev domain.CameraChange) { r.events = append(r.events, ev) }

func (r *recorder) count(src domain.CameraSource) int {
	n := 0
	for _, ev := range r.events {
		if ev.Source == src {
			n++
		}
	}
	return n
}

func approxCamera(a, b domain.Camera) bool {
	const eps = 1e-9
	return abs(a.Zoom-b.Zoom) < eps &&
		abs(a.Center.Lat-b.Center.Lat) < eps &&
		abs(a.Center.Lon-b.Center.Lon) < eps
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
