package mission

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/drone-mission/internal/geo"
)

var (
	// ErrHomeUnknown is returned when home-relative items are resolved
	// without a home position
	ErrHomeUnknown = errors.New("home position unknown")

	// ErrEmptyMission is returned when a mission resolves to no items
	ErrEmptyMission = errors.New("mission has no items")
)

// Defaults are applied to waypoints imported from a GPX file
type Defaults struct {
	RelativeAltitude float32 `yaml:"relativeAltitude"`
	Speed            float32 `yaml:"speed"`
	FlyThrough       bool    `yaml:"flyThrough"`
}

// ItemSpec is a mission item as written in a configuration file. The
// position is either absolute (latitude and longitude) or relative to the
// home position (north and east in metres).
type ItemSpec struct {
	Latitude         *float64     `yaml:"latitude,omitempty"`
	Longitude        *float64     `yaml:"longitude,omitempty"`
	North            *float64     `yaml:"north,omitempty"`
	East             *float64     `yaml:"east,omitempty"`
	RelativeAltitude float32      `yaml:"relativeAltitude"`
	Speed            float32      `yaml:"speed"`
	FlyThrough       bool         `yaml:"flyThrough"`
	GimbalPitch      float32      `yaml:"gimbalPitch"`
	GimbalYaw        float32      `yaml:"gimbalYaw"`
	CameraAction     CameraAction `yaml:"cameraAction"`
}

// Relative reports whether the item is placed relative to home
func (s *ItemSpec) Relative() bool {
	return s.North != nil || s.East != nil
}

// Validate checks that exactly one kind of position is given
func (s *ItemSpec) Validate() error {
	absolute := s.Latitude != nil || s.Longitude != nil

	switch {
	case absolute && s.Relative():
		return errors.New("both absolute and relative position given")
	case absolute && (s.Latitude == nil || s.Longitude == nil):
		return errors.New("latitude and longitude must be given together")
	case s.Relative() && (s.North == nil || s.East == nil):
		return errors.New("north and east must be given together")
	case !absolute && !s.Relative():
		return errors.New("no position given")
	case s.Speed < 0:
		return fmt.Errorf("negative speed %.1f", s.Speed)
	}
	return nil
}

// Item resolves the spec into a mission item. home is only consulted for
// relative items.
func (s *ItemSpec) Item(home *geo.GeoPoint) (Item, error) {
	if err := s.Validate(); err != nil {
		return Item{}, err
	}

	var pos geo.GeoPoint
	if s.Relative() {
		if home == nil {
			return Item{}, ErrHomeUnknown
		}
		pos = geo.FromOffset(*home, geo.LocalOffset{North: *s.North, East: *s.East})
	} else {
		pos = geo.GeoPoint{Latitude: *s.Latitude, Longitude: *s.Longitude}
	}

	return NewItem(pos.Latitude, pos.Longitude, s.RelativeAltitude, s.Speed, s.FlyThrough,
		s.GimbalPitch, s.GimbalYaw, s.CameraAction), nil
}

// Spec describes a mission as written in a configuration file
type Spec struct {
	GPXFile  string     `yaml:"gpxFile"`
	Defaults Defaults   `yaml:"defaults"`
	Items    []ItemSpec `yaml:"items"`
}

// NeedsHome reports whether any item is placed relative to home
func (s *Spec) NeedsHome() bool {
	for i := range s.Items {
		if s.Items[i].Relative() {
			return true
		}
	}
	return false
}

// Resolve builds the mission plan. Waypoints from the GPX file come first,
// followed by the listed items. home may be nil if no item is relative.
func (s *Spec) Resolve(home *geo.GeoPoint) (Plan, error) {
	var items []Item

	if s.GPXFile != "" {
		f, err := os.Open(s.GPXFile)
		if err != nil {
			return Plan{}, fmt.Errorf("opening GPX file: %w", err)
		}
		defer f.Close()

		points, err := ReadGPX(f)
		if err != nil {
			return Plan{}, fmt.Errorf("reading GPX file '%s': %w", s.GPXFile, err)
		}

		for _, p := range points {
			items = append(items, NewItem(p.Latitude, p.Longitude, s.Defaults.RelativeAltitude,
				s.Defaults.Speed, s.Defaults.FlyThrough, 0, 0, CameraNone))
		}
	}

	for i := range s.Items {
		item, err := s.Items[i].Item(home)
		if err != nil {
			return Plan{}, fmt.Errorf("mission item %d: %w", i, err)
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return Plan{}, ErrEmptyMission
	}

	return NewPlan(items...), nil
}

// LoadSpec reads a mission spec from a YAML file. A relative GPX file path
// is resolved against the directory of the spec file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mission file: %w", err)
	}

	var spec Spec
	if err = yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing mission file: %w", err)
	}

	if spec.GPXFile != "" && !filepath.IsAbs(spec.GPXFile) {
		spec.GPXFile = filepath.Join(filepath.Dir(path), spec.GPXFile)
	}

	return &spec, nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (a *CameraAction) UnmarshalYAML(value *yaml.Node) error {
	return a.UnmarshalText([]byte(value.Value))
}

func absolute(latitude, longitude float64, relativeAltitude, speed float32, flyThrough bool,
	gimbalPitch, gimbalYaw float32, action CameraAction) ItemSpec {
	return ItemSpec{
		Latitude:         &latitude,
		Longitude:        &longitude,
		RelativeAltitude: relativeAltitude,
		Speed:            speed,
		FlyThrough:       flyThrough,
		GimbalPitch:      gimbalPitch,
		GimbalYaw:        gimbalYaw,
		CameraAction:     action,
	}
}

// DefaultSpec returns the demonstration mission flown around the PX4 SITL
// default home position, exercising every camera action.
func DefaultSpec() Spec {
	return Spec{
		Items: []ItemSpec{
			absolute(47.398170327054473, 8.5456490218639658, 10, 5, false, 20, 60, CameraNone),
			absolute(47.398241338125118, 8.5455360114574432, 10, 2, true, 0, -60, CameraTakePhoto),
			absolute(47.398139363821485, 8.5453846156597137, 10, 5, true, -45, 0, CameraStartVideo),
			absolute(47.398058617228855, 8.5454618036746979, 10, 2, false, -90, 30, CameraStopVideo),
			absolute(47.398100366082858, 8.5456969141960144, 10, 5, false, -45, -30, CameraStartPhotoInterval),
			absolute(47.398001890458097, 8.5455576181411743, 10, 5, false, 0, 0, CameraStopPhotoInterval),
			absolute(47.398170327054473, 8.5456490218639658, 10, 5, false, 20, 60, CameraNone),
		},
	}
}
