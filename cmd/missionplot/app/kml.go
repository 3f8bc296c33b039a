package app

import (
	"fmt"
	"image/color"
	"io"

	kml "github.com/twpayne/go-kml"
	"github.com/twpayne/go-kml/icon"

	"github.com/roman-kulish/drone-mission/internal/mission"
)

var balloonStyle = kml.BalloonStyle(
	kml.BgColor(color.RGBA{R: 0xde, G: 0xde, B: 0xde, A: 0x40}),
	kml.Text(`<b><font size="+2">$[name]</font></b><br/><br/>$[description]<br/>`),
)

// WriteKML exports the plan, home and track as a KML document
func WriteKML(w io.Writer, data *PlotData) error {
	k := kml.KML(missionFolder(data))
	if err := k.WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("writing KML: %w", err)
	}
	return nil
}

func missionFolder(data *PlotData) kml.Element {
	name := data.Title
	if name == "" {
		name = "Mission"
	}

	folder := kml.Folder(kml.Name(name)).
		Add(kml.Description(fmt.Sprintf("%d items, %.0f m", data.Plan.Len(), data.Plan.PathLength()))).
		Add(kml.Open(true)).
		Add(kmlStyles()...)

	if data.Home != nil {
		folder.Add(kml.Placemark(
			kml.Name("Home"),
			kml.StyleURL("#styleHome"),
			kml.Point(
				kml.Coordinates(kml.Coordinate{Lon: data.Home.Longitude, Lat: data.Home.Latitude}),
			),
		))
	}

	if data.Plan.Len() > 0 {
		folder.Add(planPath(data.Plan))
		folder.Add(waypoints(data.Plan)...)
	}

	if len(data.Track) > 0 {
		folder.Add(flightTrack(data))
	}

	return folder
}

func planPath(plan mission.Plan) kml.Element {
	points := make([]kml.Coordinate, 0, plan.Len())
	for _, item := range plan.Items() {
		points = append(points, kml.Coordinate{
			Lon: item.Position.Longitude,
			Lat: item.Position.Latitude,
			Alt: float64(item.RelativeAltitude),
		})
	}

	return kml.Placemark(
		kml.Name("Planned path"),
		kml.StyleURL("#stylePath"),
		kml.LineString(
			kml.AltitudeMode(kml.AltitudeModeRelativeToGround),
			kml.Extrude(true),
			kml.Tessellate(false),
			kml.Coordinates(points...),
		),
	)
}

func waypoints(plan mission.Plan) []kml.Element {
	elements := make([]kml.Element, 0, plan.Len())
	for i, item := range plan.Items() {
		style := "#styleWaypoint"
		if item.CameraAction != mission.CameraNone {
			style = "#styleCamera"
		}

		elements = append(elements, kml.Placemark(
			kml.Name(fmt.Sprintf("WP %d", i+1)),
			kml.Description(fmt.Sprintf("Position: %s<br/>Altitude: %.1fm<br/>Speed: %.1fm/s<br/>Fly through: %t<br/>Gimbal: %.0f° pitch, %.0f° yaw<br/>Camera: %s<br/>",
				item.Position, item.RelativeAltitude, item.Speed, item.FlyThrough, item.GimbalPitch, item.GimbalYaw, item.CameraAction)),
			kml.StyleURL(style),
			kml.Point(
				kml.AltitudeMode(kml.AltitudeModeRelativeToGround),
				kml.Coordinates(kml.Coordinate{
					Lon: item.Position.Longitude,
					Lat: item.Position.Latitude,
					Alt: float64(item.RelativeAltitude),
				}),
			),
		))
	}
	return elements
}

func flightTrack(data *PlotData) kml.Element {
	points := make([]kml.Coordinate, 0, len(data.Track))
	for _, t := range data.Track {
		var alt float64
		if t.RelativeAltitude != nil {
			alt = *t.RelativeAltitude
		}
		points = append(points, kml.Coordinate{Lon: *t.Longitude, Lat: *t.Latitude, Alt: alt})
	}

	return kml.Placemark(
		kml.Name("Flight track"),
		kml.Description(fmt.Sprintf("%d samples, %.0f m", len(data.Track), data.TrackLength())),
		kml.StyleURL("#styleTrack"),
		kml.LineString(
			kml.AltitudeMode(kml.AltitudeModeRelativeToGround),
			kml.Tessellate(false),
			kml.Coordinates(points...),
		),
	)
}

func kmlStyles() []kml.Element {
	return []kml.Element{
		kml.SharedStyle(
			"styleWaypoint",
			kml.IconStyle(
				kml.Scale(0.8),
				kml.Icon(kml.Href(icon.PaddleHref("ylw-circle"))),
			),
			balloonStyle,
		),
		kml.SharedStyle(
			"styleCamera",
			kml.IconStyle(
				kml.Scale(0.8),
				kml.Icon(kml.Href(icon.PaddleHref("red-diamond"))),
			),
			balloonStyle,
		),
		kml.SharedStyle(
			"styleHome",
			kml.IconStyle(
				kml.Scale(0.8),
				kml.Icon(kml.Href(icon.PaddleHref("grn-stars"))),
			),
			balloonStyle,
		),
		kml.SharedStyle(
			"stylePath",
			kml.LineStyle(
				kml.Width(2.0),
				kml.Color(color.RGBA{R: 0, G: 0xff, B: 0xff, A: 0x66}),
			),
			kml.PolyStyle(
				kml.Color(color.RGBA{R: 0xc0, G: 0xc0, B: 0xc0, A: 0x66}),
			),
		),
		kml.SharedStyle(
			"styleTrack",
			kml.LineStyle(
				kml.Width(1.5),
				kml.Color(color.RGBA{R: 0xff, G: 0x80, A: 0xcc}),
			),
		),
	}
}
