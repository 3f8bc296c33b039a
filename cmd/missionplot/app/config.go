package app

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/roman-kulish/drone-mission/internal/geo"
)

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
	FormatKML  OutputFormat = "kml"

	defaultPlotSize = 800
)

// OutputFormat selects the file written by the plotter
type OutputFormat string

var validFormats = map[OutputFormat]struct{}{
	FormatPNG:  {},
	FormatJPEG: {},
	FormatKML:  {},
}

type Config struct {
	MissionFile   string
	Home          *geo.GeoPoint
	DBPath        string
	SessionID     int64
	OutputFile    string
	Format        OutputFormat
	Size          int
	Verbose       bool
	NoAnnotations bool
}

func NewConfig() *Config {
	return &Config{
		Format: FormatPNG,
		Size:   defaultPlotSize,
	}
}

func NewConfigFromCLI(args []string) (*Config, error) {
	return parseConfig(flag.CommandLine, args)
}

func parseConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var format, home string
	fs.StringVar(&c.MissionFile, "c", "", "Path to the mission file, the built-in mission is used when omitted")
	fs.StringVar(&home, "home", "", "Home position as 'latitude,longitude' for relative mission items")
	fs.StringVar(&c.DBPath, "db", "", "Path to a flight log to plot the recorded track from")
	fs.Int64Var(&c.SessionID, "s", 1, "Flight log session ID")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&format, "f", string(FormatPNG), "Output format. [png, jpeg, kml]")
	fs.IntVar(&c.Size, "size", defaultPlotSize, "Size of the plot area in pixels")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as scales and waypoint labels")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	format = strings.ToLower(format)

	var err error
	switch {
	case c.OutputFile == "":
		err = errors.New("output file is required")
	case c.DBPath != "" && c.SessionID <= 0:
		err = errors.New("session id is required")
	case c.Size < 100:
		err = fmt.Errorf("plot size %d is too small", c.Size)
	}
	if err == nil {
		if _, ok := validFormats[OutputFormat(format)]; !ok {
			err = fmt.Errorf("invalid output format: %s", format)
		}
	}
	if err == nil && home != "" {
		c.Home, err = parseGeoPoint(home)
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = OutputFormat(format)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

func parseGeoPoint(s string) (*geo.GeoPoint, error) {
	lat, lon, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("invalid position '%s': expected 'latitude,longitude'", s)
	}

	latitude, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil || latitude < -90 || latitude > 90 {
		return nil, fmt.Errorf("invalid latitude '%s'", lat)
	}
	longitude, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil || longitude < -180 || longitude > 180 {
		return nil, fmt.Errorf("invalid longitude '%s'", lon)
	}

	return &geo.GeoPoint{Latitude: latitude, Longitude: longitude}, nil
}
