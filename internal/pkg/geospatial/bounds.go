package geospatial

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/samirrijal/geoviewer/internal/core/domain"
)

// ValidateBounds checks a candidate bounding box (minX, minY, maxX, maxY) in
// WGS 84 degrees. The box is valid only when it has exactly four finite
// values, both latitudes lie in [-90, 90] and both longitudes in [-180, 180].
// An invalid box is a normal outcome; callers fall back to a default camera.
func ValidateBounds(candidate []float64) (domain.BoundingBox, bool) {
	var box domain.BoundingBox
	if len(candidate) != 4 {
		return box, false
	}
	for _, v := range candidate {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return box, false
		}
	}

	minX, minY, maxX, maxY := candidate[0], candidate[1], candidate[2], candidate[3]
	if minY < -90 || minY > 90 || maxY < -90 || maxY > 90 {
		return box, false
	}
	if minX < -180 || minX > 180 || maxX < -180 || maxX > 180 {
		return box, false
	}

	copy(box[:], candidate)
	return box, true
}

// UnionBounds returns the smallest box covering every valid candidate and
// skips the invalid ones. ok is false when no candidate is valid.
func UnionBounds(candidates ...[]float64) (domain.BoundingBox, bool) {
	var union orb.Bound
	found := false
	for _, c := range candidates {
		box, ok := ValidateBounds(c)
		if !ok {
			continue
		}
		if !found {
			union, found = box.Bound(), true
			continue
		}
		union = union.Union(box.Bound())
	}
	if !found {
		return domain.BoundingBox{}, false
	}
	return domain.BoundingBox{union.Min.X(), union.Min.Y(), union.Max.X(), union.Max.Y()}, true
}
