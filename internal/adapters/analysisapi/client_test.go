package analysisapi_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samirrijal/geoviewer/internal/adapters/analysisapi"
	"github.com/samirrijal/geoviewer/internal/core/domain"
)

const previewBody = `{
	"geojson": {"type": "FeatureCollection", "features": [
		{"type": "Feature", "geometry": {"type": "Point", "coordinates": [-74.08, 4.6]}, "properties": {"name": "a"}}
	]},
	"crs_aplicado": "EPSG:4326",
	"bounds": [-74.2, 4.5, -74.0, null]
}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/analysis/abc/preview", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(previewBody))
	})
	mux.HandleFunc("/transformation/t1/preview", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"geojson": null, "crs_aplicado": "EPSG:3116", "bounds": null}`))
	})
	mux.HandleFunc("/analysis/broken/preview", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_AnalysisPreview(t *testing.T) {
	srv := newServer(t)
	c := analysisapi.New(srv.URL+"/", 2*time.Second)

	p, err := c.AnalysisPreview(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.HasGeometry() || len(p.Geometry.Features) != 1 {
		t.Fatalf("expected one feature, got %+v", p.Geometry)
	}
	if p.AppliedCRS != "EPSG:4326" {
		t.Errorf("expected EPSG:4326, got %s", p.AppliedCRS)
	}
	if len(p.Bounds) != 4 || !math.IsNaN(p.Bounds[3]) {
		t.Errorf("expected null bound to decode as NaN, got %v", p.Bounds)
	}
}

func TestClient_TransformationPreviewWithoutGeometry(t *testing.T) {
	srv := newServer(t)
	c := analysisapi.New(srv.URL, 2*time.Second)

	p, err := c.TransformationPreview(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.HasGeometry() {
		t.Error("expected no geometry")
	}
	if p.Bounds != nil {
		t.Errorf("expected nil bounds, got %v", p.Bounds)
	}
}

func TestClient_NotFound(t *testing.T) {
	srv := newServer(t)
	c := analysisapi.New(srv.URL, 2*time.Second)

	_, err := c.AnalysisPreview(context.Background(), "missing")
	if !errors.Is(err, domain.ErrPreviewNotFound) {
		t.Errorf("expected ErrPreviewNotFound, got %v", err)
	}
}

func TestClient_ServerError(t *testing.T) {
	srv := newServer(t)
	c := analysisapi.New(srv.URL, 2*time.Second)

	_, err := c.AnalysisPreview(context.Background(), "broken")
	if err == nil || errors.Is(err, domain.ErrPreviewNotFound) {
		t.Errorf("expected upstream error, got %v", err)
	}
}

func TestClient_CancelledContext(t *testing.T) {
	srv := newServer(t)
	c := analysisapi.New(srv.URL, 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.AnalysisPreview(ctx, "abc"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
