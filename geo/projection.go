// Package geo converts between canvas coordinates and geographic
// coordinates under the projection the editor is rendering with.
package geo

import "math"

const (
	radians = math.Pi / 180
	degrees = 180 / math.Pi
)

// Point is a position on the canvas, in pixels, with Y pointing down.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LonLat is a geographic position in degrees.
type LonLat struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Projection maps between geographic and canvas coordinates. The boolean
// results report whether the point is representable: hidden hemispheres
// and points outside the globe disc return false.
type Projection interface {
	Project(LonLat) (Point, bool)
	Invert(Point) (LonLat, bool)
}

// Orthographic is the globe view: the hemisphere centred on (CenterLon,
// CenterLat) seen from infinitely far away.
type Orthographic struct {
	CenterLon float64
	CenterLat float64
	Scale     float64
	Translate Point
}

// OrthographicFor fits a globe centred on c into a canvas of the given size.
func OrthographicFor(width, height float64, c LonLat) Orthographic {
	return Orthographic{
		CenterLon: c.Lon,
		CenterLat: c.Lat,
		Scale:     math.Min(width, height) / 2,
		Translate: Point{X: width / 2, Y: height / 2},
	}
}

// Project implements Projection.
func (o Orthographic) Project(g LonLat) (Point, bool) {
	if o.Scale <= 0 {
		return Point{}, false
	}
	lambda, phi := o.rotate(g.Lon*radians, g.Lat*radians)
	cosPhi := math.Cos(phi)
	if cosPhi*math.Cos(lambda) < 0 {
		return Point{}, false
	}
	x := cosPhi * math.Sin(lambda)
	y := math.Sin(phi)
	return Point{
		X: o.Translate.X + o.Scale*x,
		Y: o.Translate.Y - o.Scale*y,
	}, true
}

// Invert implements Projection.
func (o Orthographic) Invert(p Point) (LonLat, bool) {
	if o.Scale <= 0 {
		return LonLat{}, false
	}
	x := (p.X - o.Translate.X) / o.Scale
	y := (o.Translate.Y - p.Y) / o.Scale
	rho := math.Hypot(x, y)
	if rho > 1 {
		return LonLat{}, false
	}
	cosC := math.Sqrt(1 - rho*rho)
	lambda := math.Atan2(x, cosC)
	phi := math.Asin(clampUnit(y))

	lambda, phi = o.unrotate(lambda, phi)
	return LonLat{Lon: wrapLon(lambda * degrees), Lat: phi * degrees}, true
}

// rotate moves the view centre to (0, 0).
func (o Orthographic) rotate(lambda, phi float64) (float64, float64) {
	lambda -= o.CenterLon * radians
	dPhi := -o.CenterLat * radians
	cosDPhi, sinDPhi := math.Cos(dPhi), math.Sin(dPhi)

	cosPhi := math.Cos(phi)
	x := math.Cos(lambda) * cosPhi
	y := math.Sin(lambda) * cosPhi
	z := math.Sin(phi)
	return math.Atan2(y, x*cosDPhi-z*sinDPhi), math.Asin(clampUnit(z*cosDPhi + x*sinDPhi))
}

func (o Orthographic) unrotate(lambda, phi float64) (float64, float64) {
	dPhi := -o.CenterLat * radians
	cosDPhi, sinDPhi := math.Cos(dPhi), math.Sin(dPhi)

	cosPhi := math.Cos(phi)
	x := math.Cos(lambda) * cosPhi
	y := math.Sin(lambda) * cosPhi
	z := math.Sin(phi)
	lambda = math.Atan2(y, x*cosDPhi+z*sinDPhi)
	phi = math.Asin(clampUnit(z*cosDPhi - x*sinDPhi))
	return lambda + o.CenterLon*radians, phi
}

// Equirectangular is the flat map view: longitude maps linearly to X over
// Width and latitude to Y over Height.
type Equirectangular struct {
	Width  float64
	Height float64
}

// Project implements Projection.
func (e Equirectangular) Project(g LonLat) (Point, bool) {
	if e.Width <= 0 || e.Height <= 0 {
		return Point{}, false
	}
	return Point{
		X: (clamp(g.Lon, -180, 180) + 180) / 360 * e.Width,
		Y: (90 - clamp(g.Lat, -90, 90)) / 180 * e.Height,
	}, true
}

// Invert implements Projection. Points off the map are clamped to its edge.
func (e Equirectangular) Invert(p Point) (LonLat, bool) {
	if e.Width <= 0 || e.Height <= 0 {
		return LonLat{}, false
	}
	return LonLat{
		Lon: p.X/e.Width*360 - 180,
		Lat: 90 - p.Y/e.Height*180,
	}, true
}

func wrapLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampUnit(v float64) float64 { return clamp(v, -1, 1) }
