package renderer

import (
	"math"

	"github.com/df07/go-envmap-prefilter/pkg/core"
)

// AntiAliasingKernel returns n deterministic, equally weighted sub-texel
// offsets in texel units, each component in [-0.5, 0.5]. Offsets are
// stratified along x and follow the radical inverse along y, shifted by half
// a stratum. A single frame is not jittered.
func AntiAliasingKernel(n int) []core.Vec2 {
	if n < 1 {
		return nil
	}

	offsets := make([]core.Vec2, n)
	for i := range offsets {
		y := core.RadicalInverse(uint32(i)) + 0.5/float64(n)
		offsets[i] = core.Vec2{
			X: (float64(i)+0.5)/float64(n) - 0.5,
			Y: y - math.Floor(y) - 0.5,
		}
	}
	return offsets
}
