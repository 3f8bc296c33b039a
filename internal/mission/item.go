package mission

import (
	"fmt"
	"strings"

	"github.com/roman-kulish/drone-mission/internal/geo"
)

const (
	CameraNone CameraAction = iota
	CameraTakePhoto
	CameraStartVideo
	CameraStopVideo
	CameraStartPhotoInterval
	CameraStopPhotoInterval
)

// CameraAction is the camera command attached to a mission item
type CameraAction uint8

var cameraActionNames = map[CameraAction]string{
	CameraNone:               "none",
	CameraTakePhoto:          "takePhoto",
	CameraStartVideo:         "startVideo",
	CameraStopVideo:          "stopVideo",
	CameraStartPhotoInterval: "startPhotoInterval",
	CameraStopPhotoInterval:  "stopPhotoInterval",
}

func (a CameraAction) String() string {
	if s, ok := cameraActionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("CameraAction(%d)", uint8(a))
}

// MarshalText implements encoding.TextMarshaler
func (a CameraAction) MarshalText() ([]byte, error) {
	s, ok := cameraActionNames[a]
	if !ok {
		return nil, fmt.Errorf("unknown camera action %d", uint8(a))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Names are matched
// case-insensitively, an empty value means no action.
func (a *CameraAction) UnmarshalText(text []byte) error {
	name := strings.TrimSpace(string(text))
	if name == "" {
		*a = CameraNone
		return nil
	}
	for action, s := range cameraActionNames {
		if strings.EqualFold(s, name) {
			*a = action
			return nil
		}
	}
	return fmt.Errorf("unknown camera action '%s'", name)
}

// Item is a single waypoint and the vehicle and camera actions to perform
// there. Items are plain values; a copy never aliases another.
type Item struct {
	Position         geo.GeoPoint // Waypoint position
	RelativeAltitude float32      // Altitude above home in metres
	Speed            float32      // Speed towards this waypoint in m/s
	FlyThrough       bool         // Pass the waypoint without stopping
	GimbalPitch      float32      // Gimbal pitch in degrees
	GimbalYaw        float32      // Gimbal yaw in degrees
	CameraAction     CameraAction // Camera command issued on arrival
}

// NewItem creates a mission item
func NewItem(latitude, longitude float64, relativeAltitude, speed float32, flyThrough bool,
	gimbalPitch, gimbalYaw float32, cameraAction CameraAction) Item {
	return Item{
		Position:         geo.GeoPoint{Latitude: latitude, Longitude: longitude},
		RelativeAltitude: relativeAltitude,
		Speed:            speed,
		FlyThrough:       flyThrough,
		GimbalPitch:      gimbalPitch,
		GimbalYaw:        gimbalYaw,
		CameraAction:     cameraAction,
	}
}

func (i Item) String() string {
	return fmt.Sprintf("%s alt=%.1fm speed=%.1fm/s camera=%s", i.Position, i.RelativeAltitude, i.Speed, i.CameraAction)
}

// Plan is an ordered, read-only sequence of mission items
type Plan struct {
	items []Item
}

// NewPlan creates a plan holding a copy of items
func NewPlan(items ...Item) Plan {
	p := Plan{items: make([]Item, len(items))}
	copy(p.items, items)
	return p
}

// Items returns a copy of the plan items
func (p Plan) Items() []Item {
	items := make([]Item, len(p.items))
	copy(items, p.items)
	return items
}

// Item returns the item at index i
func (p Plan) Item(i int) Item {
	return p.items[i]
}

func (p Plan) Len() int {
	return len(p.items)
}

// PathLength returns the horizontal length of the path through all
// waypoints in metres.
func (p Plan) PathLength() float64 {
	var total float64
	for i := 1; i < len(p.items); i++ {
		total += geo.Displacement(p.items[i-1].Position, p.items[i].Position).Distance()
	}
	return total
}
