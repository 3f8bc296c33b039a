package app

import (
	"flag"
	"io"
	"testing"
)

func parseTestArgs(args ...string) (*Config, error) {
	fs := flag.NewFlagSet("missionplot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return parseConfig(fs, args)
}

func TestParseConfig(t *testing.T) {
	c, err := parseTestArgs("-o", "out/plot", "-f", "KML", "-home", "47.3977, 8.5456", "-db", "log.sqlite", "-s", "3")
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}

	if c.OutputFile != "out/plot.kml" || c.Format != FormatKML {
		t.Errorf("output = %s (%s)", c.OutputFile, c.Format)
	}
	if c.Home == nil || c.Home.Latitude != 47.3977 || c.Home.Longitude != 8.5456 {
		t.Errorf("home = %v", c.Home)
	}
	if c.DBPath != "log.sqlite" || c.SessionID != 3 {
		t.Errorf("flight log = %s #%d", c.DBPath, c.SessionID)
	}
	if c.Size != defaultPlotSize {
		t.Errorf("size = %d", c.Size)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no output", nil},
		{"bad format", []string{"-o", "plot", "-f", "gif"}},
		{"bad home", []string{"-o", "plot", "-home", "47.3"}},
		{"home out of range", []string{"-o", "plot", "-home", "97,8"}},
		{"no session", []string{"-o", "plot", "-db", "log.sqlite", "-s", "0"}},
		{"tiny plot", []string{"-o", "plot", "-size", "10"}},
		{"unknown flag", []string{"-o", "plot", "-x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseTestArgs(tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}
