package app

import (
	"image"
	"math"

	"github.com/roman-kulish/drone-mission/internal/geo"
)

// minExtent keeps a single waypoint or a straight line from collapsing the
// plot to zero size
const minExtent = 20.0

// Projection maps positions to pixels on a north-up plane of local metres
// around an origin
type Projection struct {
	origin geo.GeoPoint

	minNorth, maxNorth float64
	minEast, maxEast   float64

	scale  float64 // pixels per metre
	offset image.Point
}

// NewProjection fits points into a plot whose longer side is size pixels.
// offset is the position of the plot area inside the image.
func NewProjection(origin geo.GeoPoint, points []geo.GeoPoint, size int, offset image.Point) *Projection {
	p := Projection{
		origin: origin,
		offset: offset,
	}

	for _, pt := range points {
		d := geo.Displacement(origin, pt)
		p.minNorth = math.Min(p.minNorth, d.North)
		p.maxNorth = math.Max(p.maxNorth, d.North)
		p.minEast = math.Min(p.minEast, d.East)
		p.maxEast = math.Max(p.maxEast, d.East)
	}

	p.minNorth, p.maxNorth = pad(p.minNorth, p.maxNorth)
	p.minEast, p.maxEast = pad(p.minEast, p.maxEast)

	p.scale = float64(size) / math.Max(p.maxNorth-p.minNorth, p.maxEast-p.minEast)
	return &p
}

// pad widens a range to at least minExtent and adds a 5% margin on both sides
func pad(lo, hi float64) (float64, float64) {
	if span := hi - lo; span < minExtent {
		grow := (minExtent - span) / 2
		lo, hi = lo-grow, hi+grow
	}
	margin := (hi - lo) * 0.05
	return lo - margin, hi + margin
}

// Origin returns the reference position of the plot
func (p *Projection) Origin() geo.GeoPoint {
	return p.origin
}

// Size returns the plot area size in pixels
func (p *Projection) Size() image.Point {
	return image.Point{
		X: int(math.Ceil((p.maxEast - p.minEast) * p.scale)),
		Y: int(math.Ceil((p.maxNorth - p.minNorth) * p.scale)),
	}
}

// Scale returns pixels per metre
func (p *Projection) Scale() float64 {
	return p.scale
}

// Bounds returns the plot extent in metres from the origin
func (p *Projection) Bounds() (minNorth, maxNorth, minEast, maxEast float64) {
	return p.minNorth, p.maxNorth, p.minEast, p.maxEast
}

// Point returns the image coordinates of a position
func (p *Projection) Point(pt geo.GeoPoint) (x, y float32) {
	return p.Offset(geo.Displacement(p.origin, pt))
}

// Offset returns the image coordinates of a displacement from the origin
func (p *Projection) Offset(d geo.LocalOffset) (x, y float32) {
	x = float32(float64(p.offset.X) + (d.East-p.minEast)*p.scale)
	y = float32(float64(p.offset.Y) + (p.maxNorth-d.North)*p.scale)
	return x, y
}

func (p *Projection) offsetXY(north, east float64) (float32, float32) {
	return p.Offset(geo.LocalOffset{North: north, East: east})
}
