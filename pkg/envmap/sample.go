package envmap

import (
	"image"
	"math"

	"github.com/df07/go-envmap-prefilter/pkg/core"
	"github.com/df07/go-envmap-prefilter/pkg/projection"
)

// Sample returns the bilinearly filtered, display-encoded color seen along
// dir. Panoramas wrap horizontally and clamp vertically; cube faces clamp at
// their edges.
func (im *Image) Sample(dir core.Vec3) core.Vec3 {
	switch im.layout {
	case Cubemap:
		face, u, v := projection.CubeFaceUV(dir)
		return bilinear(im.faces[face], u, v, false)
	default:
		u, v := projection.EquirectUV(dir.Normalize())
		return bilinear(im.faces[0], u, v, true)
	}
}

// bilinear filters the four texels around (u, v) ∈ [0,1]²
func bilinear(img *image.RGBA, u, v float64, wrapX bool) core.Vec3 {
	w, h := img.Rect.Dx(), img.Rect.Dy()

	// -0.5 to adjust for the texel center offset
	x := u*float64(w) - 0.5
	y := v*float64(h) - 0.5
	x0f, y0f := math.Floor(x), math.Floor(y)
	fx, fy := x-x0f, y-y0f
	x0, y0 := int(x0f), int(y0f)
	x1, y1 := x0+1, y0+1

	if wrapX {
		x0, x1 = wrap(x0, w), wrap(x1, w)
	} else {
		x0, x1 = clampIndex(x0, w), clampIndex(x1, w)
	}
	y0, y1 = clampIndex(y0, h), clampIndex(y1, h)

	c00 := texel(img, x0, y0)
	c10 := texel(img, x1, y0)
	c01 := texel(img, x0, y1)
	c11 := texel(img, x1, y1)

	top := c00.Multiply(1 - fx).Add(c10.Multiply(fx))
	bottom := c01.Multiply(1 - fx).Add(c11.Multiply(fx))
	return top.Multiply(1 - fy).Add(bottom.Multiply(fy))
}

func texel(img *image.RGBA, x, y int) core.Vec3 {
	i := img.PixOffset(x+img.Rect.Min.X, y+img.Rect.Min.Y)
	return core.ColorFromRGBA(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func clampIndex(i, n int) int {
	return max(0, min(n-1, i))
}
