package domain

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/paulmach/orb"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point converts to an orb point (lon, lat order).
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// BoundingBox is a validated WGS 84 extent: minX, minY, maxX, maxY in degrees.
// Values of this type are only produced by geospatial.ValidateBounds.
type BoundingBox [4]float64

func (b BoundingBox) MinX() float64 { return b[0] }
func (b BoundingBox) MinY() float64 { return b[1] }
func (b BoundingBox) MaxX() float64 { return b[2] }
func (b BoundingBox) MaxY() float64 { return b[3] }

// Center returns the arithmetic midpoint of the box.
func (b BoundingBox) Center() GeoPoint {
	return GeoPoint{Lon: (b[0] + b[2]) / 2, Lat: (b[1] + b[3]) / 2}
}

// Bound converts to an orb bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
}

// CandidateBounds is an unvalidated bounding box as supplied by the analysis
// service. JSON nulls decode to NaN so they fail validation instead of
// failing the whole payload.
type CandidateBounds []float64

func (c *CandidateBounds) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = nil
		return nil
	}
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(CandidateBounds, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	*c = out
	return nil
}

func (c CandidateBounds) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	raw := make([]*float64, len(c))
	for i := range c {
		if math.IsNaN(c[i]) || math.IsInf(c[i], 0) {
			continue
		}
		v := c[i]
		raw[i] = &v
	}
	return json.Marshal(raw)
}

// Equal reports whether two candidates hold the same values. NaN equals NaN here.
func (c CandidateBounds) Equal(o CandidateBounds) bool {
	if len(c) != len(o) || (c == nil) != (o == nil) {
		return false
	}
	for i := range c {
		if c[i] == o[i] || (math.IsNaN(c[i]) && math.IsNaN(o[i])) {
			continue
		}
		return false
	}
	return true
}

// Camera is the viewport state: center coordinate and zoom level.
type Camera struct {
	Center GeoPoint `json:"center"`
	Zoom   float64  `json:"zoom"`
}

// CameraSource tells who caused a camera change.
type CameraSource string

const (
	SourceUser         CameraSource = "user"
	SourceProgrammatic CameraSource = "programmatic"
	SourceSync         CameraSource = "sync"
)

// CameraChange is delivered to camera listeners after every mutation.
type CameraChange struct {
	Camera Camera       `json:"camera"`
	Source CameraSource `json:"source"`
}
