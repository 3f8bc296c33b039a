package app

import (
	"math"

	"github.com/roman-kulish/drone-mission/internal/geo"
	"github.com/roman-kulish/drone-mission/internal/mission"
	"github.com/roman-kulish/drone-mission/internal/telemetry"
)

// PlotData is everything drawn on a plot
type PlotData struct {
	Title string
	Plan  mission.Plan
	Home  *geo.GeoPoint
	Track []*telemetry.Telemetry // snapshots with a position, oldest first
}

// Origin returns the reference point of the plot: home when known, the
// first waypoint otherwise
func (d *PlotData) Origin() geo.GeoPoint {
	switch {
	case d.Home != nil:
		return *d.Home
	case d.Plan.Len() > 0:
		return d.Plan.Item(0).Position
	case len(d.Track) > 0:
		return trackPoint(d.Track[0])
	}
	return geo.GeoPoint{}
}

// Points returns every position on the plot
func (d *PlotData) Points() []geo.GeoPoint {
	points := make([]geo.GeoPoint, 0, d.Plan.Len()+len(d.Track)+1)
	if d.Home != nil {
		points = append(points, *d.Home)
	}
	for _, item := range d.Plan.Items() {
		points = append(points, item.Position)
	}
	for _, t := range d.Track {
		points = append(points, trackPoint(t))
	}
	return points
}

// AltitudeRange returns the lowest and highest relative altitude among the
// waypoints and the track
func (d *PlotData) AltitudeRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, item := range d.Plan.Items() {
		lo = math.Min(lo, float64(item.RelativeAltitude))
		hi = math.Max(hi, float64(item.RelativeAltitude))
	}
	for _, t := range d.Track {
		if t.RelativeAltitude != nil {
			lo = math.Min(lo, *t.RelativeAltitude)
			hi = math.Max(hi, *t.RelativeAltitude)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}

// TrackLength returns the distance flown along the recorded track in metres
func (d *PlotData) TrackLength() float64 {
	var total float64
	for i := 1; i < len(d.Track); i++ {
		total += geo.ToOffset(trackPoint(d.Track[i-1]), trackPoint(d.Track[i])).Distance()
	}
	return total
}

func trackPoint(t *telemetry.Telemetry) geo.GeoPoint {
	return geo.GeoPoint{Latitude: *t.Latitude, Longitude: *t.Longitude}
}
