package core

import (
	"image/color"
	"math"
)

// DisplayGamma is the exponent of the display encoding assumed for 8-bit sources
const DisplayGamma = 2.2

// Linearize converts a display-encoded color to linear light
func Linearize(c Vec3) Vec3 {
	return c.Pow(DisplayGamma)
}

// EncodeDisplay converts a linear color back to display encoding
func EncodeDisplay(c Vec3) Vec3 {
	return c.Pow(1.0 / DisplayGamma)
}

// ColorFromRGBA converts an 8-bit color to a Vec3 with components in [0, 1].
// Alpha is ignored.
func ColorFromRGBA(r, g, b uint8) Vec3 {
	return Vec3{
		X: float64(r) / 255.0,
		Y: float64(g) / 255.0,
		Z: float64(b) / 255.0,
	}
}

// ToRGBA quantizes a [0, 1] color to 8 bits per channel with round-to-nearest.
// The result is opaque.
func ToRGBA(c Vec3) color.RGBA {
	if !c.IsFinite() {
		c = Vec3{}
	}
	c = c.Clamp(0.0, 1.0)
	return color.RGBA{
		R: uint8(math.Round(255 * c.X)),
		G: uint8(math.Round(255 * c.Y)),
		B: uint8(math.Round(255 * c.Z)),
		A: 255,
	}
}
