package envmap

import (
	"fmt"
	"image/color"

	"github.com/df07/go-envmap-prefilter/pkg/core"
	"github.com/df07/go-envmap-prefilter/pkg/projection"
)

// TexelInfo describes how one texel of an output image looks up the source
type TexelInfo struct {
	Mode      projection.Mode
	X, Y      int
	UV        core.Vec2 // Texel centre in [-1,1]²
	Direction core.Vec3 // Unit world-space ray

	// Source coordinate in [0,1]². SourceFace is only set for cubemaps.
	SourceFace projection.Face
	SourceU    float64
	SourceV    float64

	Color color.RGBA // Unfiltered reprojection of the source along Direction
}

// Inspect returns the ray and source lookup behind texel (x, y) of a
// size×size output rendered with mode.
func (im *Image) Inspect(mode projection.Mode, size, x, y int) (TexelInfo, error) {
	if !mode.Valid() {
		return TexelInfo{}, fmt.Errorf("envmap: invalid projection %v", mode)
	}
	if size < 1 || x < 0 || y < 0 || x >= size || y >= size {
		return TexelInfo{}, fmt.Errorf("envmap: texel (%d, %d) outside %dx%d image", x, y, size, size)
	}

	uv := projection.PixelUV(x, y, size, core.Vec2{})
	dir := projection.Ray(uv, mode)
	info := TexelInfo{
		Mode:      mode,
		X:         x,
		Y:         y,
		UV:        uv,
		Direction: dir,
		Color:     core.ToRGBA(im.Sample(dir)),
	}

	if im.layout == Cubemap {
		info.SourceFace, info.SourceU, info.SourceV = projection.CubeFaceUV(dir)
	} else {
		info.SourceU, info.SourceV = projection.EquirectUV(dir)
	}
	return info, nil
}
