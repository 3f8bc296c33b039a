package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/drone-mission/internal/geo"
	"github.com/roman-kulish/drone-mission/internal/mission"
	"github.com/roman-kulish/drone-mission/internal/storage"
	"github.com/roman-kulish/drone-mission/internal/telemetry"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	data, err := loadPlotData(ctx, config, logger)
	if err != nil {
		return err
	}

	logger.Info("plotting",
		slog.Group("plot",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("items", data.Plan.Len()),
			slog.Int("track", len(data.Track)),
			slog.String("path", humanize.SIWithDigits(data.Plan.PathLength(), 1, "m")),
		))

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if config.Format == FormatKML {
		return WriteKML(out, data)
	}

	renderer, err := NewPlotRenderer(RenderConfig{
		Size:          config.Size,
		NoAnnotations: config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating plot renderer: %w", err)
	}

	img, err := renderer.Render(data)
	if err != nil {
		return fmt.Errorf("rendering plot: %w", err)
	}

	logger.Debug("rendered", slog.Int("width", img.Bounds().Dx()), slog.Int("height", img.Bounds().Dy()))

	switch config.Format {
	case FormatPNG:
		err = png.Encode(out, img)

	case FormatJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}

// loadPlotData reads the plan from the mission file, or from the flight log
// when only a flight log is given, and the recorded track from the flight log
func loadPlotData(ctx context.Context, config *Config, logger *slog.Logger) (*PlotData, error) {
	data := PlotData{Home: config.Home}

	if config.MissionFile != "" || config.DBPath == "" {
		plan, err := loadMission(config.MissionFile, config.Home)
		if err != nil {
			return nil, err
		}
		data.Plan = plan
	}

	if config.DBPath == "" {
		return &data, nil
	}

	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return nil, fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	if config.MissionFile == "" {
		plan, err := store.MissionItems(ctx, config.SessionID)
		if err != nil {
			return nil, fmt.Errorf("reading mission items: %w", err)
		}
		data.Plan = plan
	}

	session, track, err := readTrack(ctx, store, config.SessionID)
	if err != nil {
		return nil, err
	}

	data.Track = track
	data.Title = fmt.Sprintf("Session %d, %s, %s", session.ID,
		session.StartTime.Local().Format(time.DateTime), session.VehicleURL)

	if data.Home == nil && len(track) > 0 {
		launch := trackPoint(track[0])
		data.Home = &launch
	}

	logger.Info("finished reading flight log",
		slog.Int64("session", session.ID),
		slog.Int("items", data.Plan.Len()),
		slog.Int("track", len(track)),
	)

	return &data, nil
}

func loadMission(path string, home *geo.GeoPoint) (mission.Plan, error) {
	var spec *mission.Spec
	if path == "" {
		s := mission.DefaultSpec()
		spec = &s
	} else {
		var err error
		if spec, err = mission.LoadSpec(path); err != nil {
			return mission.Plan{}, err
		}
	}

	if spec.NeedsHome() && home == nil {
		return mission.Plan{}, fmt.Errorf("mission has relative items, use -home: %w", mission.ErrHomeUnknown)
	}

	plan, err := spec.Resolve(home)
	if err != nil {
		return mission.Plan{}, fmt.Errorf("resolving mission: %w", err)
	}
	return plan, nil
}

func readTrack(ctx context.Context, store storage.Store, sessionID int64) (*storage.Session, []*telemetry.Telemetry, error) {
	iter, err := store.ReadTrack(ctx, sessionID, storage.WithPositionOnly())
	if err != nil {
		return nil, nil, fmt.Errorf("reading track: %w", err)
	}
	defer iter.Close()

	var track []*telemetry.Telemetry
	for iter.Next(ctx) {
		track = append(track, iter.Current())
	}
	if err = iter.Error(); err != nil {
		return nil, nil, fmt.Errorf("reading track: %w", err)
	}

	return iter.Session(), track, nil
}
