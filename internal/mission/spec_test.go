package mission

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/drone-mission/internal/geo"
)

const missionYAML = `
items:
  - latitude: 47.398170
    longitude: 8.545649
    relativeAltitude: 10
    speed: 5
    gimbalPitch: 20
    gimbalYaw: 60
  - north: 100
    east: 50
    relativeAltitude: 15
    speed: 2
    flyThrough: true
    cameraAction: takePhoto
  - north: 0
    east: 0
    relativeAltitude: 10
    speed: 5
    cameraAction: StartPhotoInterval
`

func TestSpec_ResolveRelativeItems(t *testing.T) {
	var spec Spec
	if err := yaml.Unmarshal([]byte(missionYAML), &spec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !spec.NeedsHome() {
		t.Fatal("expected spec to need a home position")
	}

	if _, err := spec.Resolve(nil); !errors.Is(err, ErrHomeUnknown) {
		t.Fatalf("expected ErrHomeUnknown, got %v", err)
	}

	home := geo.GeoPoint{Latitude: 47.397742, Longitude: 8.545594}
	plan, err := spec.Resolve(&home)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if plan.Len() != 3 {
		t.Fatalf("expected 3 items, got %d", plan.Len())
	}

	first := plan.Item(0)
	if first.Position != (geo.GeoPoint{Latitude: 47.398170, Longitude: 8.545649}) {
		t.Errorf("absolute item moved: %v", first.Position)
	}
	if first.GimbalPitch != 20 || first.GimbalYaw != 60 || first.CameraAction != CameraNone {
		t.Errorf("unexpected first item: %+v", first)
	}

	second := plan.Item(1)
	want := geo.FromOffset(home, geo.LocalOffset{North: 100, East: 50})
	if second.Position != want {
		t.Errorf("relative item at %v, want %v", second.Position, want)
	}
	if !second.FlyThrough || second.CameraAction != CameraTakePhoto || second.RelativeAltitude != 15 {
		t.Errorf("unexpected second item: %+v", second)
	}

	third := plan.Item(2)
	if third.Position != home {
		t.Errorf("zero offset item at %v, want home %v", third.Position, home)
	}
	if third.CameraAction != CameraStartPhotoInterval {
		t.Errorf("camera action = %s", third.CameraAction)
	}

	// the displacement from home must point north-east
	d := geo.Displacement(home, second.Position)
	if math.Abs(d.North-100) > 0.01 || math.Abs(d.East-50) > 0.01 {
		t.Errorf("displacement from home = %v, want about (100, 50)", d)
	}
}

func TestItemSpec_Validate(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		spec    ItemSpec
		wantErr bool
	}{
		{"absolute", ItemSpec{Latitude: f(1), Longitude: f(2)}, false},
		{"relative", ItemSpec{North: f(1), East: f(2)}, false},
		{"both", ItemSpec{Latitude: f(1), Longitude: f(2), North: f(1), East: f(1)}, true},
		{"latitude only", ItemSpec{Latitude: f(1)}, true},
		{"north only", ItemSpec{North: f(1)}, true},
		{"no position", ItemSpec{}, true},
		{"negative speed", ItemSpec{Latitude: f(1), Longitude: f(2), Speed: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCameraAction_Unknown(t *testing.T) {
	var spec Spec
	err := yaml.Unmarshal([]byte("items:\n  - north: 1\n    east: 1\n    cameraAction: selfie\n"), &spec)
	if err == nil || !strings.Contains(err.Error(), "selfie") {
		t.Fatalf("expected unknown camera action error, got %v", err)
	}
}

func TestDefaultSpec(t *testing.T) {
	spec := DefaultSpec()
	if spec.NeedsHome() {
		t.Error("default mission should not depend on home")
	}

	plan, err := spec.Resolve(nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if plan.Len() != 7 {
		t.Fatalf("expected 7 items, got %d", plan.Len())
	}

	seen := map[CameraAction]bool{}
	for _, item := range plan.Items() {
		seen[item.CameraAction] = true
	}
	for action := range cameraActionNames {
		if !seen[action] {
			t.Errorf("camera action %s not exercised", action)
		}
	}

	if plan.Item(0).Position != plan.Item(6).Position {
		t.Error("default mission should return to its first waypoint")
	}
}

func TestPlan_ItemsIsACopy(t *testing.T) {
	plan := NewPlan(NewItem(1, 2, 10, 5, false, 0, 0, CameraNone))

	items := plan.Items()
	items[0].Speed = 99

	if plan.Item(0).Speed != 5 {
		t.Error("mutating Items() result changed the plan")
	}
}

const gpxDoc = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <rte>
    <rtept lat="47.3981" lon="8.5456"><ele>500</ele></rtept>
    <rtept lat="47.3985" lon="8.5460"/>
  </rte>
  <trk><trkseg><trkpt lat="1" lon="1"/></trkseg></trk>
</gpx>`

func TestReadGPX(t *testing.T) {
	points, err := ReadGPX(strings.NewReader(gpxDoc))
	if err != nil {
		t.Fatalf("ReadGPX: %v", err)
	}

	// route points win over track points
	want := []geo.GeoPoint{{Latitude: 47.3981, Longitude: 8.5456}, {Latitude: 47.3985, Longitude: 8.5460}}
	if len(points) != len(want) {
		t.Fatalf("got %d points, want %d", len(points), len(want))
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, points[i], want[i])
		}
	}

	if _, err = ReadGPX(strings.NewReader(`<gpx></gpx>`)); !errors.Is(err, ErrNoGPXPoints) {
		t.Errorf("expected ErrNoGPXPoints, got %v", err)
	}
}

func TestLoadSpec_GPXRelativePath(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "route.gpx"), []byte(gpxDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	specYAML := "gpxFile: route.gpx\ndefaults:\n  relativeAltitude: 25\n  speed: 4\n"
	if err := os.WriteFile(filepath.Join(dir, "mission.yaml"), []byte(specYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	spec, err := LoadSpec(filepath.Join(dir, "mission.yaml"))
	if err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}

	plan, err := spec.Resolve(nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if plan.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", plan.Len())
	}
	if it := plan.Item(1); it.RelativeAltitude != 25 || it.Speed != 4 {
		t.Errorf("defaults not applied: %+v", it)
	}
}
