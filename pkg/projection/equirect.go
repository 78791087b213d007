package projection

import (
	"math"

	"github.com/df07/go-envmap-prefilter/pkg/core"
)

// EquirectUV maps a unit direction to texture coordinates in a latitude/
// longitude panorama. v is 0 at +Y and 1 at -Y; u wraps around the ±π seam
// and is returned in [0, 1).
func EquirectUV(dir core.Vec3) (u, v float64) {
	v = math.Acos(max(-1, min(1, dir.Y))) / math.Pi
	v = max(0, min(1, v))

	u = math.Atan2(dir.X, dir.Z)/(2*math.Pi) + 0.5
	u -= math.Floor(u)
	return u, v
}

// DirectionFromEquirectUV is the inverse of EquirectUV
func DirectionFromEquirectUV(u, v float64) core.Vec3 {
	theta := v * math.Pi
	phi := (u - 0.5) * 2 * math.Pi
	sinTheta := math.Sin(theta)
	return core.Vec3{
		X: sinTheta * math.Sin(phi),
		Y: math.Cos(theta),
		Z: sinTheta * math.Cos(phi),
	}
}
