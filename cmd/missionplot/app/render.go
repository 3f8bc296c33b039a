package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/roman-kulish/drone-mission/internal/mission"
)

const (
	pathWidth    = 3.0
	trackWidth   = 1.5
	gridWidth    = 1.0
	markerRadius = 7.0
	homeSize     = 8.0

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 70
	defaultBottomBorder = 40
	defaultRightBorder  = 40
)

// circle is the cubic Bézier control distance for a quarter circle
const circle = 0.5523

// BorderConfig defines the sizes of white space around the plot
type BorderConfig struct {
	Top    int // Space for the east scale
	Left   int // Space for the north scale
	Bottom int // Space for the information bar
	Right  int // Right padding
}

// RenderConfig holds the plot rendering options
type RenderConfig struct {
	Size          int     // Longer side of the plot area in pixels
	FontSize      float64 // Font size in points
	NoAnnotations bool
	BorderConfig  BorderConfig
}

// PlotRenderer draws a mission plan and an optional flight track on a north
// up plane of local metres
type PlotRenderer struct {
	config RenderConfig
}

// NewPlotRenderer creates a new plot renderer with the given configuration
func NewPlotRenderer(config RenderConfig) (*PlotRenderer, error) {
	if config.Size == 0 {
		config.Size = defaultPlotSize
	}
	if config.Size < 0 {
		return nil, fmt.Errorf("invalid plot size %d", config.Size)
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &PlotRenderer{config: config}, nil
}

// Render creates an image of the plot data with annotations
func (r *PlotRenderer) Render(data *PlotData) (*image.RGBA, error) {
	if data.Plan.Len() == 0 && len(data.Track) == 0 {
		return nil, errors.New("nothing to plot")
	}

	borders := r.config.BorderConfig
	proj := NewProjection(data.Origin(), data.Points(), r.config.Size, image.Pt(borders.Left, borders.Top))

	size := proj.Size()
	img := image.NewRGBA(image.Rect(0, 0, size.X+borders.Left+borders.Right, size.Y+borders.Top+borders.Bottom))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	c := canvas{img: img, z: vector.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())}
	colors := NewAltitudeColors(data.AltitudeRange())
	step := niceDistanceStep(proj)

	r.renderGrid(&c, proj, step)
	r.renderTrack(&c, proj, data)
	r.renderPath(&c, proj, data.Plan, colors)
	r.renderMarkers(&c, proj, data, colors)

	if r.config.NoAnnotations {
		return img, nil
	}

	ann, err := newAnnotator(annotatorConfig{
		FontSize: r.config.FontSize,
		Borders:  borders,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, proj, step, data); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	return img, nil
}

func (r *PlotRenderer) renderGrid(c *canvas, proj *Projection, step float64) {
	minNorth, maxNorth, minEast, maxEast := proj.Bounds()
	x0, y0 := proj.offsetXY(minNorth, minEast)
	x1, y1 := proj.offsetXY(maxNorth, maxEast)

	for e := math.Ceil(minEast/step) * step; e <= maxEast; e += step {
		x, _ := proj.offsetXY(0, e)
		c.line(x, y0, x, y1, gridWidth, gridColor)
	}
	for n := math.Ceil(minNorth/step) * step; n <= maxNorth; n += step {
		_, y := proj.offsetXY(n, 0)
		c.line(x0, y, x1, y, gridWidth, gridColor)
	}
}

func (r *PlotRenderer) renderTrack(c *canvas, proj *Projection, data *PlotData) {
	for i := 1; i < len(data.Track); i++ {
		ax, ay := proj.Point(trackPoint(data.Track[i-1]))
		bx, by := proj.Point(trackPoint(data.Track[i]))
		c.line(ax, ay, bx, by, trackWidth, trackColor)
	}
}

// renderPath strokes every leg of the plan in the color of its destination
// altitude
func (r *PlotRenderer) renderPath(c *canvas, proj *Projection, plan mission.Plan, colors AltitudeColors) {
	for i := 1; i < plan.Len(); i++ {
		from, to := plan.Item(i-1), plan.Item(i)
		ax, ay := proj.Point(from.Position)
		bx, by := proj.Point(to.Position)
		c.line(ax, ay, bx, by, pathWidth, colors.Color(float64(to.RelativeAltitude)))
	}
}

func (r *PlotRenderer) renderMarkers(c *canvas, proj *Projection, data *PlotData, colors AltitudeColors) {
	if data.Home != nil {
		x, y := proj.Point(*data.Home)
		c.triangle(x, y, homeSize, homeColor)
	}

	for _, item := range data.Plan.Items() {
		x, y := proj.Point(item.Position)
		if item.CameraAction != mission.CameraNone {
			c.disc(x, y, markerRadius+2, cameraRingColor)
		}
		c.disc(x, y, markerRadius, colors.Color(float64(item.RelativeAltitude)))
	}
}

// niceDistanceStep picks a round grid spacing giving a line every 100
// pixels or so
func niceDistanceStep(proj *Projection) float64 {
	steps := []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1_000, 2_000, 5_000, 10_000}

	target := 100 / proj.Scale()
	for _, step := range steps {
		if step >= target {
			return step
		}
	}
	return steps[len(steps)-1]
}

// canvas fills vector shapes onto an image one at a time
type canvas struct {
	img *image.RGBA
	z   *vector.Rasterizer
}

func (c *canvas) fill(col color.Color) {
	b := c.img.Bounds()
	c.z.Draw(c.img, b, image.NewUniform(col), image.Point{})
	c.z.Reset(b.Dx(), b.Dy())
}

// line strokes a segment as a quad of the given width
func (c *canvas) line(ax, ay, bx, by, width float32, col color.Color) {
	dx, dy := bx-ax, by-ay
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}

	nx, ny := -dy/length*width/2, dx/length*width/2

	c.z.MoveTo(ax+nx, ay+ny)
	c.z.LineTo(bx+nx, by+ny)
	c.z.LineTo(bx-nx, by-ny)
	c.z.LineTo(ax-nx, ay-ny)
	c.z.ClosePath()
	c.fill(col)
}

func (c *canvas) disc(x, y, radius float32, col color.Color) {
	k := radius * circle

	c.z.MoveTo(x+radius, y)
	c.z.CubeTo(x+radius, y+k, x+k, y+radius, x, y+radius)
	c.z.CubeTo(x-k, y+radius, x-radius, y+k, x-radius, y)
	c.z.CubeTo(x-radius, y-k, x-k, y-radius, x, y-radius)
	c.z.CubeTo(x+k, y-radius, x+radius, y-k, x+radius, y)
	c.z.ClosePath()
	c.fill(col)
}

func (c *canvas) triangle(x, y, size float32, col color.Color) {
	c.z.MoveTo(x, y-size)
	c.z.LineTo(x+size, y+size)
	c.z.LineTo(x-size, y+size)
	c.z.ClosePath()
	c.fill(col)
}
