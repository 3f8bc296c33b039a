// Package geo converts between absolute latitude/longitude positions and
// local north/east offsets in metres.
//
// The conversion uses a flat-earth approximation around a reference point.
// It is only valid for displacements that are small compared to the Earth's
// radius; callers are responsible for keeping offsets within a few
// kilometres. Nothing here checks that.
package geo

import (
	"fmt"
	"math"
)

// GeoPoint is an absolute position in degrees
type GeoPoint struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`   // Latitude in degrees
	Longitude float64 `json:"longitude" yaml:"longitude"` // Longitude in degrees
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("%.7f,%.7f", p.Latitude, p.Longitude)
}

// LocalOffset is a displacement in metres on the local tangent plane
type LocalOffset struct {
	North float64 `json:"north" yaml:"north"` // Metres north
	East  float64 `json:"east" yaml:"east"`   // Metres east
}

// Neg returns the offset pointing the opposite way.
func (o LocalOffset) Neg() LocalOffset {
	return LocalOffset{North: -o.North, East: -o.East}
}

// Distance returns the length of the offset in metres.
func (o LocalOffset) Distance() float64 {
	return math.Hypot(o.North, o.East)
}

func (o LocalOffset) String() string {
	return fmt.Sprintf("(%.2fm N, %.2fm E)", o.North, o.East)
}

// MetresPerDegreeLatitude returns the length of one degree of latitude at
// the given latitude (degrees).
func MetresPerDegreeLatitude(latitude float64) float64 {
	phi := latitude * math.Pi / 180
	return 111132.954 - 559.822*math.Cos(2*phi) + 1.175*math.Cos(4*phi)
}

// MetresPerDegreeLongitude returns the length of one degree of longitude at
// the given latitude (degrees).
func MetresPerDegreeLongitude(latitude float64) float64 {
	phi := latitude * math.Pi / 180
	return (math.Pi / 180) * 6367449 * math.Cos(phi)
}

// ToOffset returns the displacement between reference and target, computed
// as reference minus target and scaled at the midpoint latitude of the two.
// Because both directions share the midpoint, ToOffset(a, b) is exactly
// ToOffset(b, a).Neg().
func ToOffset(reference, target GeoPoint) LocalOffset {
	mid := (reference.Latitude + target.Latitude) / 2

	return LocalOffset{
		North: (reference.Latitude - target.Latitude) * MetresPerDegreeLatitude(mid),
		East:  (reference.Longitude - target.Longitude) * MetresPerDegreeLongitude(mid),
	}
}

// FromOffset moves reference by offset. Metres per degree are evaluated at
// the reference latitude, not at the midpoint of the move, so
// FromOffset(r, ToOffset(r, t).Neg()) lands close to t but not on it.
func FromOffset(reference GeoPoint, offset LocalOffset) GeoPoint {
	return GeoPoint{
		Latitude:  reference.Latitude + offset.North/MetresPerDegreeLatitude(reference.Latitude),
		Longitude: reference.Longitude + offset.East/MetresPerDegreeLongitude(reference.Latitude),
	}
}

// Displacement returns where target lies as seen from origin: positive
// North means target is north of origin.
func Displacement(origin, target GeoPoint) LocalOffset {
	return ToOffset(target, origin)
}
