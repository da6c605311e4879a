package geospatial

import (
	"math"

	"github.com/paulmach/orb/maptile"

	"github.com/samirrijal/geoviewer/internal/core/domain"
)

// MaxMercatorLat is the latitude where Web Mercator reaches the square's edge.
const MaxMercatorLat = 85.051129

// maxTiles bounds the tile coverage of a single viewport.
const maxTiles = 512

// project maps a WGS 84 point to normalized Web Mercator world coordinates in [0, 1].
func project(lon, lat float64) (x, y float64) {
	lat = clamp(lat, -MaxMercatorLat, MaxMercatorLat)
	x = (lon + 180) / 360
	sin := math.Sin(toRad(lat))
	y = 0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)
	return x, y
}

func unproject(x, y float64) domain.GeoPoint {
	lon := x*360 - 180
	lat := toDeg(math.Atan(math.Sinh(math.Pi * (1 - 2*y))))
	return domain.GeoPoint{Lon: lon, Lat: lat}
}

// FitCamera returns the camera that frames box inside a viewport of the given
// pixel size, leaving padding pixels on every side. The zoom is clamped to
// [0, maxZoom].
func FitCamera(box domain.BoundingBox, width, height int, padding float64, tileSize int, maxZoom float64) domain.Camera {
	x1, y1 := project(box.MinX(), box.MaxY())
	x2, y2 := project(box.MaxX(), box.MinY())

	center := unproject((x1+x2)/2, (y1+y2)/2)

	availW := math.Max(float64(width)-2*padding, 1)
	availH := math.Max(float64(height)-2*padding, 1)
	dx := math.Abs(x2 - x1)
	dy := math.Abs(y2 - y1)

	zoom := maxZoom
	if dx > 0 || dy > 0 {
		zoom = math.Inf(1)
		if dx > 0 {
			zoom = math.Min(zoom, math.Log2(availW/(dx*float64(tileSize))))
		}
		if dy > 0 {
			zoom = math.Min(zoom, math.Log2(availH/(dy*float64(tileSize))))
		}
	}

	return domain.Camera{Center: center, Zoom: clamp(zoom, 0, maxZoom)}
}

// VisibleBounds returns the geographic extent shown by cam in a viewport of
// the given pixel size.
func VisibleBounds(cam domain.Camera, width, height, tileSize int) domain.BoundingBox {
	scale := float64(tileSize) * math.Exp2(cam.Zoom)
	cx, cy := project(cam.Center.Lon, cam.Center.Lat)
	halfW := float64(width) / 2 / scale
	halfH := float64(height) / 2 / scale

	nw := unproject(cx-halfW, clamp(cy-halfH, 0, 1))
	se := unproject(cx+halfW, clamp(cy+halfH, 0, 1))

	return domain.BoundingBox{
		clamp(nw.Lon, -180, 180),
		se.Lat,
		clamp(se.Lon, -180, 180),
		nw.Lat,
	}
}

// PixelSize returns the size in pixels that box occupies at zoom.
func PixelSize(box domain.BoundingBox, zoom float64, tileSize int) (w, h float64) {
	scale := float64(tileSize) * math.Exp2(zoom)
	x1, y1 := project(box.MinX(), box.MaxY())
	x2, y2 := project(box.MaxX(), box.MinY())
	return math.Abs(x2-x1) * scale, math.Abs(y2-y1) * scale
}

// CoveringTiles lists the XYZ tiles needed to paint cam in a viewport of the
// given pixel size.
func CoveringTiles(cam domain.Camera, width, height, tileSize int, maxZoom float64) []maptile.Tile {
	z := maptile.Zoom(clamp(math.Floor(cam.Zoom), 0, maxZoom))
	vb := VisibleBounds(cam, width, height, tileSize)

	minX, minY := tileIndex(vb.MinX(), vb.MaxY(), z)
	maxX, maxY := tileIndex(vb.MaxX(), vb.MinY(), z)

	var tiles []maptile.Tile
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			tiles = append(tiles, maptile.New(x, y, z))
			if len(tiles) >= maxTiles {
				return tiles
			}
		}
	}
	return tiles
}

func tileIndex(lon, lat float64, z maptile.Zoom) (uint32, uint32) {
	n := math.Exp2(float64(z))
	x, y := project(lon, lat)
	return uint32(clamp(math.Floor(x*n), 0, n-1)), uint32(clamp(math.Floor(y*n), 0, n-1))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
