package app

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/drone-mission/internal/mission"
)

const (
	dpi            = 96.0
	fontSize       = 10.0
	tickMarkLength = 5
	labelOffset    = markerRadius + 3
)

type annotatorConfig struct {
	FontSize float64
	Borders  BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, proj *Projection, step float64, data *PlotData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *Projection, float64, *PlotData) error
	}{
		{"drawing east scale", a.drawEastScale},
		{"drawing north scale", a.drawNorthScale},
		{"drawing waypoint labels", a.drawWaypointLabels},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, proj, step, data); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawEastScale(img *image.RGBA, proj *Projection, step float64, _ *PlotData) error {
	_, _, minEast, maxEast := proj.Bounds()
	textY := a.config.Borders.Top - tickMarkLength - a.fontHeight()/2

	for e := math.Ceil(minEast/step) * step; e <= maxEast; e += step {
		fx, _ := proj.offsetXY(0, e)
		x := int(fx)

		for y := a.config.Borders.Top - tickMarkLength; y < a.config.Borders.Top; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatDistance(e)
		width := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-width.Round()/2, textY)); err != nil {
			return fmt.Errorf("drawing label: %w", err)
		}
	}

	return nil
}

func (a *annotator) drawNorthScale(img *image.RGBA, proj *Projection, step float64, _ *PlotData) error {
	minNorth, maxNorth, _, _ := proj.Bounds()
	metrics := a.fontFace.Metrics()

	for n := math.Ceil(minNorth/step) * step; n <= maxNorth; n += step {
		_, fy := proj.offsetXY(n, 0)
		y := int(fy)

		for x := a.config.Borders.Left - tickMarkLength; x < a.config.Borders.Left; x++ {
			img.Set(x, y, color.Black)
		}

		label := formatDistance(n)
		width := font.MeasureString(a.fontFace, label)
		textX := a.config.Borders.Left - tickMarkLength - 3 - width.Round()
		textY := y + a.fontHeight()/2 - metrics.Descent.Round()
		if _, err := a.context.DrawString(label, freetype.Pt(textX, textY)); err != nil {
			return fmt.Errorf("drawing label: %w", err)
		}
	}

	return nil
}

func (a *annotator) drawWaypointLabels(_ *image.RGBA, proj *Projection, _ float64, data *PlotData) error {
	for i, item := range data.Plan.Items() {
		x, y := proj.Point(item.Position)

		label := fmt.Sprintf("%d", i+1)
		if item.CameraAction != mission.CameraNone {
			label += " " + item.CameraAction.String()
		}

		pt := freetype.Pt(int(x)+labelOffset, int(y)-labelOffset)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing label for item %d: %w", i, err)
		}
	}

	if data.Home != nil {
		x, y := proj.Point(*data.Home)
		if _, err := a.context.DrawString("H", freetype.Pt(int(x)+labelOffset, int(y)+labelOffset)); err != nil {
			return fmt.Errorf("drawing home label: %w", err)
		}
	}

	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, proj *Projection, step float64, data *PlotData) error {
	lo, hi := data.AltitudeRange()

	parts := []string{
		fmt.Sprintf("Items: %d", data.Plan.Len()),
		fmt.Sprintf("Path: %s", humanize.SIWithDigits(data.Plan.PathLength(), 1, "m")),
		fmt.Sprintf("Altitude: %.0f - %.0f m", lo, hi),
		fmt.Sprintf("Grid: %s", formatDistance(step)),
		fmt.Sprintf("Origin: %s", proj.Origin()),
	}
	if len(data.Track) > 0 {
		parts = append(parts, fmt.Sprintf("Track: %s samples, %s",
			humanize.Comma(int64(len(data.Track))), humanize.SIWithDigits(data.TrackLength(), 1, "m")))
	}
	if data.Title != "" {
		parts = append([]string{data.Title}, parts...)
	}

	metrics := a.fontFace.Metrics()
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-a.fontHeight())/2 - metrics.Descent.Round()

	pt := freetype.Pt(a.config.Borders.Left, textY)
	if _, err := a.context.DrawString(strings.Join(parts, "; "), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

func formatDistance(metres float64) string {
	if math.Abs(metres) >= 1000 {
		return fmt.Sprintf("%.1f km", metres/1000)
	}
	return fmt.Sprintf("%.0f m", metres)
}
