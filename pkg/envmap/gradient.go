package envmap

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/df07/go-envmap-prefilter/pkg/core"
	"github.com/df07/go-envmap-prefilter/pkg/projection"
)

// Gradient is a procedural sky blending from Bottom (straight down) to Top
// (straight up) with the Y component of the direction. Colors are display
// encoded in [0,1].
type Gradient struct {
	Top    core.Vec3
	Bottom core.Vec3
}

// Sample returns the gradient color along dir
func (g Gradient) Sample(dir core.Vec3) core.Vec3 {
	t := 0.5 * (dir.Normalize().Y + 1.0) // Map Y from [-1,1] to [0,1]
	return g.Bottom.Multiply(1.0 - t).Add(g.Top.Multiply(t))
}

// Equirectangular bakes the gradient into a width×width/2 panorama
func (g Gradient) Equirectangular(width int) (*Image, error) {
	height := width / 2
	if height < 1 {
		return nil, ErrEmptyImage
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		v := (float64(y) + 0.5) / float64(height)
		// Every texel in a row has the same elevation
		c := core.ToRGBA(g.Sample(projection.DirectionFromEquirectUV(0.5, v)))
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return NewEquirectangular(img)
}

// ParseGradient parses "top,bottom" where both are hex colors such as
// "#87ceeb" or "fff"
func ParseGradient(s string) (Gradient, error) {
	topHex, bottomHex, ok := strings.Cut(s, ",")
	if !ok {
		return Gradient{}, fmt.Errorf("envmap: gradient %q must be \"top,bottom\"", s)
	}
	top, err := parseHexColor(topHex)
	if err != nil {
		return Gradient{}, err
	}
	bottom, err := parseHexColor(bottomHex)
	if err != nil {
		return Gradient{}, err
	}
	return Gradient{Top: top, Bottom: bottom}, nil
}

func parseHexColor(s string) (core.Vec3, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return core.Vec3{}, fmt.Errorf("envmap: invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return core.Vec3{}, fmt.Errorf("envmap: invalid color %q", s)
	}
	return core.ColorFromRGBA(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}
