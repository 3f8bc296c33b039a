package app

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/roman-kulish/drone-mission/internal/geo"
	"github.com/roman-kulish/drone-mission/internal/mission"
	"github.com/roman-kulish/drone-mission/internal/telemetry"
)

var testHome = geo.GeoPoint{Latitude: 47.397742, Longitude: 8.545594}

func ptr[T any](v T) *T {
	return &v
}

func testPlotData() *PlotData {
	at := func(north, east float64) geo.GeoPoint {
		return geo.FromOffset(testHome, geo.LocalOffset{North: north, East: east})
	}

	p1, p2, p3 := at(50, 0), at(50, 100), at(-20, 100)
	plan := mission.NewPlan(
		mission.NewItem(p1.Latitude, p1.Longitude, 10, 5, false, 0, 0, mission.CameraNone),
		mission.NewItem(p2.Latitude, p2.Longitude, 20, 5, true, -45, 0, mission.CameraTakePhoto),
		mission.NewItem(p3.Latitude, p3.Longitude, 30, 5, false, 0, 0, mission.CameraNone),
	)

	var track []*telemetry.Telemetry
	for _, p := range []geo.GeoPoint{testHome, p1, p2, p3, testHome} {
		track = append(track, &telemetry.Telemetry{
			Latitude:         ptr(p.Latitude),
			Longitude:        ptr(p.Longitude),
			RelativeAltitude: ptr(15.0),
		})
	}

	home := testHome
	return &PlotData{Title: "test", Plan: plan, Home: &home, Track: track}
}

func TestProjection(t *testing.T) {
	data := testPlotData()
	proj := NewProjection(*data.Home, data.Points(), 500, image.Pt(10, 20))

	minNorth, maxNorth, minEast, maxEast := proj.Bounds()
	if minNorth > -20 || maxNorth < 50 || minEast > 0 || maxEast < 100 {
		t.Errorf("bounds (%.1f..%.1f N, %.1f..%.1f E) do not cover the plan", minNorth, maxNorth, minEast, maxEast)
	}

	size := proj.Size()
	if size.X < 499 || size.X > 501 || size.Y >= size.X {
		t.Errorf("size = %v, east extent should span 500px", size)
	}

	x, y := proj.Point(*data.Home)
	ex, ey := proj.Point(data.Plan.Item(0).Position)
	if math.Abs(float64(x-ex)) > 1 || ey >= y {
		t.Errorf("item north of home drawn at (%.1f,%.1f), home at (%.1f,%.1f)", ex, ey, x, y)
	}

	nx, _ := proj.Point(data.Plan.Item(1).Position)
	if nx <= ex {
		t.Error("eastern item not drawn to the right")
	}
}

func TestProjection_SinglePoint(t *testing.T) {
	proj := NewProjection(testHome, []geo.GeoPoint{testHome}, 200, image.Point{})

	size := proj.Size()
	if size.X != size.Y || size.X < 199 || size.X > 201 {
		t.Errorf("size = %v", size)
	}

	x, y := proj.Point(testHome)
	if math.Abs(float64(x)-100) > 1 || math.Abs(float64(y)-100) > 1 {
		t.Errorf("single point drawn at (%.1f,%.1f), want centre", x, y)
	}
}

func TestAltitudeColors(t *testing.T) {
	colors := NewAltitudeColors(10, 30)

	low, high := colors.Color(10), colors.Color(30)
	if low.B <= low.R {
		t.Errorf("lowest altitude should be blue, got %v", low)
	}
	if high.R <= high.B {
		t.Errorf("highest altitude should be red, got %v", high)
	}
	if mid := colors.Color(20); mid.G <= mid.R || mid.G <= mid.B || mid.A != 0xff {
		t.Errorf("middle altitude should be opaque green, got %v", mid)
	}
	if colors.Color(-100) != low || colors.Color(100) != high {
		t.Error("out of range altitudes not clamped")
	}

	flat := NewAltitudeColors(10, 10)
	if flat.Color(10) != low {
		t.Error("flat range should use the low color")
	}
}

func TestPlotRenderer_Render(t *testing.T) {
	data := testPlotData()

	for _, noAnnotations := range []bool{false, true} {
		r, err := NewPlotRenderer(RenderConfig{Size: 400, NoAnnotations: noAnnotations})
		if err != nil {
			t.Fatal(err)
		}

		img, err := r.Render(data)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}

		b := img.Bounds()
		if b.Dx() < 400+defaultLeftBorder || b.Dy() < defaultTopBorder+defaultBottomBorder {
			t.Errorf("image too small: %v", b)
		}

		proj := NewProjection(data.Origin(), data.Points(), 400, image.Pt(defaultLeftBorder, defaultTopBorder))
		x, y := proj.Point(data.Plan.Item(2).Position)
		want := NewAltitudeColors(data.AltitudeRange()).Color(30)
		if got := img.RGBAAt(int(x), int(y)); !near(got, want) {
			t.Errorf("marker at (%d,%d) = %v, want %v", int(x), int(y), got, want)
		}

		if got := img.RGBAAt(1, 1); got != backgroundColor {
			t.Errorf("corner = %v, want background", got)
		}
	}
}

func TestPlotRenderer_Empty(t *testing.T) {
	r, err := NewPlotRenderer(RenderConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = r.Render(&PlotData{}); err == nil {
		t.Error("expected error for empty plot")
	}
}

func TestWriteKML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteKML(&buf, testPlotData()); err != nil {
		t.Fatalf("WriteKML: %v", err)
	}

	doc := buf.String()
	for _, want := range []string{
		"<kml",
		"<name>test</name>",
		"<name>Home</name>",
		"<name>Planned path</name>",
		"<name>WP 3</name>",
		"<name>Flight track</name>",
		"#styleCamera",
		"relativeToGround",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("KML missing %q", want)
		}
	}

	if n := strings.Count(doc, "<Placemark>"); n != 6 {
		t.Errorf("%d placemarks, want 6", n)
	}
}

func near(a, b color.RGBA) bool {
	d := func(x, y uint8) bool { return math.Abs(float64(x)-float64(y)) <= 2 }
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B)
}
