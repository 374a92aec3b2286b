package geo

import (
	"math"

	"github.com/signalsfoundry/scenario-editor/model"
)

// CanvasToGeo converts a canvas point to a geographic position. It returns
// nil when the point does not lie on the projected globe. Results are
// clamped to valid longitude and latitude ranges.
func CanvasToGeo(p Point, proj Projection) *LonLat {
	if proj == nil || !finite(p.X) || !finite(p.Y) {
		return nil
	}
	g, ok := proj.Invert(p)
	if !ok || !finite(g.Lon) || !finite(g.Lat) {
		return nil
	}
	return &LonLat{Lon: clamp(g.Lon, -180, 180), Lat: clamp(g.Lat, -90, 90)}
}

// GeoToCanvas converts a geographic position to a canvas point. It returns
// nil when the position is on the hidden side of the projection.
func GeoToCanvas(g LonLat, proj Projection) *Point {
	if proj == nil || !finite(g.Lon) || !finite(g.Lat) {
		return nil
	}
	p, ok := proj.Project(LonLat{Lon: clamp(g.Lon, -180, 180), Lat: clamp(g.Lat, -90, 90)})
	if !ok || !finite(p.X) || !finite(p.Y) {
		return nil
	}
	return &p
}

// ScreenToCanvas undoes the viewport pan and zoom.
func ScreenToCanvas(v model.Viewport, p Point) Point {
	v = usable(v)
	return Point{X: (p.X - v.X) / v.Zoom, Y: (p.Y - v.Y) / v.Zoom}
}

// CanvasToScreen applies the viewport pan and zoom.
func CanvasToScreen(v model.Viewport, p Point) Point {
	v = usable(v)
	return Point{X: p.X*v.Zoom + v.X, Y: p.Y*v.Zoom + v.Y}
}

// ScreenToGeo combines ScreenToCanvas and CanvasToGeo.
func ScreenToGeo(v model.Viewport, p Point, proj Projection) *LonLat {
	return CanvasToGeo(ScreenToCanvas(v, p), proj)
}

// usable substitutes the default viewport for one the surface has not
// reported properly.
func usable(v model.Viewport) model.Viewport {
	if !v.Valid() {
		return model.DefaultViewport
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
