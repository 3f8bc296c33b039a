package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/drone-mission/internal/geo"
	"github.com/roman-kulish/drone-mission/internal/mission"
)

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Storage   StorageConfig   `yaml:"storage"`
	Simulator SimulatorConfig `yaml:"simulator"`

	// MissionFile points to a separate mission file; Mission is an inline
	// mission. Without either the built-in demonstration mission is flown.
	MissionFile string        `yaml:"missionFile"`
	Mission     *mission.Spec `yaml:"mission"`

	dir string // directory of the configuration file
}

// Settings represents global application settings
type Settings struct {
	LogLevel              slog.Level    `yaml:"logLevel"`
	DiscoveryTimeout      time.Duration `yaml:"discoveryTimeout"`
	HeartbeatTimeout      time.Duration `yaml:"heartbeatTimeout"`
	CommandTimeout        time.Duration `yaml:"commandTimeout"`
	HealthRetries         int           `yaml:"healthRetries"`
	HealthInterval        time.Duration `yaml:"healthInterval"`
	PauseAtItem           int           `yaml:"pauseAtItem"`
	PauseHold             time.Duration `yaml:"pauseHold"`
	PollInterval          time.Duration `yaml:"pollInterval"`
	DisarmWait            time.Duration `yaml:"disarmWait"`
	AbortOnMissionFailure bool          `yaml:"abortOnMissionFailure"`
}

// TelemetryConfig represents telemetry recording settings
type TelemetryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// StorageConfig represents flight log settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
}

// SimulatorConfig configures the vehicle behind sim://
type SimulatorConfig struct {
	Home          *geo.GeoPoint `yaml:"home"`
	Tick          time.Duration `yaml:"tick"`
	Latency       time.Duration `yaml:"latency"`
	HealthDelay   time.Duration `yaml:"healthDelay"`
	LinkLossAfter time.Duration `yaml:"linkLossAfter"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel:         slog.LevelInfo,
			DiscoveryTimeout: 10 * time.Second,
			HeartbeatTimeout: 3 * time.Second,
			CommandTimeout:   30 * time.Second,
			HealthRetries:    10,
			HealthInterval:   time.Second,
			PauseAtItem:      2,
			PauseHold:        5 * time.Second,
			PollInterval:     time.Second,
			DisarmWait:       2 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:  true,
			Interval: time.Second,
		},
		Storage: StorageConfig{
			DataDirectory: "data",
		},
		Simulator: SimulatorConfig{
			Tick:    time.Second,
			Latency: 50 * time.Millisecond,
		},
	}
}

// LoadConfig reads the configuration file at path over the defaults. An
// empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}

	config.dir = filepath.Dir(path)

	if err = config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.MissionFile != "" && c.Mission != nil {
		return fmt.Errorf("both missionFile and mission given")
	}
	if c.Settings.HealthRetries < 1 {
		return fmt.Errorf("healthRetries must be at least 1")
	}
	if c.Settings.PollInterval <= 0 || c.Settings.HealthInterval <= 0 {
		return fmt.Errorf("pollInterval and healthInterval must be positive")
	}
	if c.Settings.DiscoveryTimeout <= 0 || c.Settings.HeartbeatTimeout <= 0 {
		return fmt.Errorf("discoveryTimeout and heartbeatTimeout must be positive")
	}
	if c.Settings.CommandTimeout < 0 {
		return fmt.Errorf("commandTimeout must not be negative")
	}
	return nil
}

func (c *Config) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// MissionSpec returns the mission to fly
func (c *Config) MissionSpec() (*mission.Spec, error) {
	switch {
	case c.MissionFile != "":
		return mission.LoadSpec(c.resolvePath(c.MissionFile))

	case c.Mission != nil:
		spec := *c.Mission
		spec.GPXFile = c.resolvePath(spec.GPXFile)
		return &spec, nil

	default:
		spec := mission.DefaultSpec()
		return &spec, nil
	}
}
