package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}

	if config.Settings.PauseAtItem != 2 || config.Settings.PauseHold != 5*time.Second {
		t.Errorf("unexpected pause settings %+v", config.Settings)
	}
	if config.Settings.HeartbeatTimeout != 3*time.Second {
		t.Errorf("heartbeat timeout = %s", config.Settings.HeartbeatTimeout)
	}

	spec, err := config.MissionSpec()
	if err != nil {
		t.Fatal(err)
	}
	if len(spec.Items) != 7 {
		t.Errorf("default mission has %d items", len(spec.Items))
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
settings:
  logLevel: debug
  pauseAtItem: 3
  pauseHold: 2s
  abortOnMissionFailure: true
storage:
  enabled: true
  dataDirectory: /var/lib/flights
simulator:
  home:
    latitude: 51.5
    longitude: -0.12
mission:
  gpxFile: route.gpx
  defaults:
    relativeAltitude: 25
    speed: 4
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	s := config.Settings
	if s.LogLevel != slog.LevelDebug || s.PauseAtItem != 3 || s.PauseHold != 2*time.Second || !s.AbortOnMissionFailure {
		t.Errorf("settings not applied: %+v", s)
	}
	if s.PollInterval != time.Second || s.HealthRetries != 10 {
		t.Errorf("defaults lost: %+v", s)
	}
	if !config.Storage.Enabled || config.Storage.DataDirectory != "/var/lib/flights" {
		t.Errorf("storage = %+v", config.Storage)
	}
	if config.Simulator.Home == nil || config.Simulator.Home.Latitude != 51.5 {
		t.Errorf("simulator home = %v", config.Simulator.Home)
	}
	if config.Simulator.Tick != time.Second {
		t.Errorf("simulator tick default lost: %s", config.Simulator.Tick)
	}

	spec, err := config.MissionSpec()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "route.gpx"); spec.GPXFile != want {
		t.Errorf("gpx file = %q, want %q", spec.GPXFile, want)
	}
	if spec.Defaults.RelativeAltitude != 25 {
		t.Errorf("defaults = %+v", spec.Defaults)
	}
}

func TestLoadConfig_MissionFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "survey.yaml", `
items:
  - north: 10
    east: 0
    relativeAltitude: 10
    speed: 5
  - latitude: 47.3981
    longitude: 8.5456
    relativeAltitude: 10
    speed: 5
    cameraAction: takePhoto
`)
	path := writeFile(t, dir, "config.yaml", "missionFile: survey.yaml\n")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	spec, err := config.MissionSpec()
	if err != nil {
		t.Fatalf("MissionSpec: %v", err)
	}
	if len(spec.Items) != 2 || !spec.NeedsHome() {
		t.Errorf("unexpected mission %+v", spec)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"malformed", "settings: [\n"},
		{"both missions", "missionFile: a.yaml\nmission:\n  items: []\n"},
		{"no health retries", "settings:\n  healthRetries: 0\n"},
		{"zero poll interval", "settings:\n  pollInterval: 0s\n"},
		{"bad duration", "settings:\n  pauseHold: soon\n"},
		{"zero heartbeat timeout", "settings:\n  heartbeatTimeout: 0s\n"},
		{"zero discovery timeout", "settings:\n  discoveryTimeout: 0s\n"},
		{"negative command timeout", "settings:\n  commandTimeout: -1s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "config.yaml", tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_UnboundedCommands(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "settings:\n  commandTimeout: 0s\n")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.Settings.CommandTimeout != 0 {
		t.Errorf("commandTimeout = %v, want 0", config.Settings.CommandTimeout)
	}
}
