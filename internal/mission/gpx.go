package mission

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"

	"github.com/roman-kulish/drone-mission/internal/geo"
)

// ErrNoGPXPoints is returned when a GPX document contains no usable points
var ErrNoGPXPoints = errors.New("no waypoints, route or track points found")

// gpxPointPaths are tried in order; the first one yielding points wins.
var gpxPointPaths = []string{"//wpt", "//rtept", "//trkpt"}

// ReadGPX reads waypoints from a GPX document. Waypoints are preferred,
// then route points, then track points.
func ReadGPX(r io.Reader) ([]geo.GeoPoint, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("parsing GPX: %w", err)
	}

	root := doc.SelectElement("gpx")
	if root == nil {
		return nil, errors.New("missing <gpx> root element")
	}

	for _, path := range gpxPointPaths {
		elements := root.FindElements(path)
		if len(elements) == 0 {
			continue
		}

		points := make([]geo.GeoPoint, 0, len(elements))
		for i, el := range elements {
			lat, err := strconv.ParseFloat(el.SelectAttrValue("lat", ""), 64)
			if err != nil {
				return nil, fmt.Errorf("point %d: invalid latitude: %w", i, err)
			}
			lon, err := strconv.ParseFloat(el.SelectAttrValue("lon", ""), 64)
			if err != nil {
				return nil, fmt.Errorf("point %d: invalid longitude: %w", i, err)
			}
			points = append(points, geo.GeoPoint{Latitude: lat, Longitude: lon})
		}
		return points, nil
	}

	return nil, ErrNoGPXPoints
}
