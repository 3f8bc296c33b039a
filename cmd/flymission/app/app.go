package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/drone-mission/internal/autopilot"
	"github.com/roman-kulish/drone-mission/internal/autopilot/mavlink"
	"github.com/roman-kulish/drone-mission/internal/autopilot/sim"
	"github.com/roman-kulish/drone-mission/internal/storage"
	"github.com/roman-kulish/drone-mission/internal/telemetry"
)

// Run connects to the vehicle at rawURL and flies the configured mission
// once. A vehicle that stops sending heartbeats ends the run with
// autopilot.ErrSystemTimedOut.
func Run(ctx context.Context, rawURL string, config *Config, logger *slog.Logger) error {
	u, err := autopilot.ParseConnectionURL(rawURL)
	if err != nil {
		return err
	}

	spec, err := config.MissionSpec()
	if err != nil {
		return fmt.Errorf("loading mission: %w", err)
	}

	system, err := connect(ctx, u, config, logger)
	if err != nil {
		return err
	}
	defer system.Close()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	system.OnTimeout(func(systemID uint8) {
		logger.Warn("system timed out", slog.Int("systemID", int(systemID)))
		cancel(autopilot.ErrSystemTimedOut)
	})

	var options []func(*Orchestrator)

	if config.Storage.Enabled {
		store, dbPath, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer closeStorage(store, dbPath, logger)

		sessionID, err := store.CreateSession(ctx, u.String(), system.ID(), config)
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		options = append(options, WithStore(store, sessionID))

		if config.Telemetry.Enabled {
			recorder := telemetry.NewRecorder(system, storage.SessionSink(store, sessionID),
				telemetry.WithLogger(logger),
				telemetry.WithInterval(config.Telemetry.Interval),
			)
			options = append(options, WithRecorder(recorder))
		}
	}

	err = NewOrchestrator(system, spec, config.Settings, logger, options...).Run(ctx)

	if cause := context.Cause(ctx); errors.Is(cause, autopilot.ErrSystemTimedOut) {
		return cause
	}
	return err
}

func connect(ctx context.Context, u *autopilot.ConnectionURL, config *Config, logger *slog.Logger) (autopilot.System, error) {
	if u.Scheme == autopilot.SchemeSim {
		options := []func(*sim.Vehicle){
			sim.WithLogger(logger),
			sim.WithTick(config.Simulator.Tick),
			sim.WithLatency(config.Simulator.Latency),
			sim.WithHealthDelay(config.Simulator.HealthDelay),
			sim.WithLinkLossAfter(config.Simulator.LinkLossAfter),
		}
		if config.Simulator.Home != nil {
			options = append(options, sim.WithHome(*config.Simulator.Home))
		}

		logger.Info("starting simulated vehicle")
		return sim.NewVehicle(options...), nil
	}

	ctx, cancel := context.WithTimeout(ctx, config.Settings.DiscoveryTimeout)
	defer cancel()

	system, err := mavlink.Connect(ctx, u,
		mavlink.WithLogger(logger),
		mavlink.WithHeartbeatTimeout(config.Settings.HeartbeatTimeout),
		mavlink.WithCommandTimeout(config.Settings.CommandTimeout),
	)
	if err != nil {
		return nil, err
	}
	return system, nil
}

func createStorage(config *StorageConfig) (storage.Store, string, error) {
	dataDir := config.DataDirectory
	if !filepath.IsAbs(dataDir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		dataDir = filepath.Join(wd, dataDir)
	}

	stat, err := os.Stat(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("storage directory '%s' does not exist: %w", dataDir, err)
		}
		return nil, "", fmt.Errorf("checking storage directory: %w", err)
	}
	if !stat.IsDir() {
		return nil, "", fmt.Errorf("invalid storage directory '%s'", dataDir)
	}

	dbPath := filepath.Join(dataDir, fmt.Sprintf("mission_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), dbPath, nil
}

func closeStorage(store storage.Store, dbPath string, logger *slog.Logger) {
	if err := store.Close(); err != nil {
		logger.Error(fmt.Sprintf("closing flight log: %s", err.Error()))
		return
	}

	if stat, err := os.Stat(dbPath); err == nil {
		logger.Info("flight log written", slog.String("path", dbPath), slog.String("size", humanize.Bytes(uint64(stat.Size()))))
	}
}
