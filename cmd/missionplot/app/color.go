package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	hueLow  = 240.0 // blue, lowest altitude
	hueHigh = 0.0   // red, highest altitude
)

var (
	backgroundColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	gridColor       = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	trackColor      = color.RGBA{R: 0x70, G: 0x70, B: 0x70, A: 0xc0}
	homeColor       = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
	cameraRingColor = color.RGBA{A: 0xff}
)

// AltitudeColors maps altitudes in [min, max] onto a blue to red ramp
type AltitudeColors struct {
	min, max float64
}

func NewAltitudeColors(min, max float64) AltitudeColors {
	return AltitudeColors{min: min, max: max}
}

func (c AltitudeColors) Color(altitude float64) color.RGBA {
	var normalized float64
	if span := c.max - c.min; span > 0 {
		normalized = math.Max(0, math.Min(1, (altitude-c.min)/span))
	}

	hue := hueLow - normalized*(hueLow-hueHigh)
	r, g, b := colorful.Hsv(hue, 0.9+normalized*0.1, 0.85).Clamped().RGB255()

	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
