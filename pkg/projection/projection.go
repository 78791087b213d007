package projection

import (
	"math"

	"github.com/df07/go-envmap-prefilter/pkg/core"
)

// source selects which input feeds one component of a face vector
type source int

const (
	srcU source = iota
	srcV
	srcMajor // the face's major axis: 1 for cube faces, the hemisphere height for spheres
)

type component struct {
	src  source
	sign float64
}

// faceTable lists, per face, how (u, v, major) permute into world (x, y, z).
// It follows the OpenGL cubemap face orientation.
var faceTable = [NumFaces][3]component{
	PX: {{srcMajor, +1}, {srcV, -1}, {srcU, -1}},
	NX: {{srcMajor, -1}, {srcV, -1}, {srcU, +1}},
	PY: {{srcU, +1}, {srcMajor, +1}, {srcV, +1}},
	NY: {{srcU, +1}, {srcMajor, -1}, {srcV, -1}},
	PZ: {{srcU, +1}, {srcV, -1}, {srcMajor, +1}},
	NZ: {{srcU, -1}, {srcV, -1}, {srcMajor, -1}},
}

// faceVector evaluates the face table for the given inputs without normalizing
func faceVector(face Face, u, v, major float64) core.Vec3 {
	inputs := [3]float64{srcU: u, srcV: v, srcMajor: major}
	row := faceTable[face]
	return core.Vec3{
		X: row[0].sign * inputs[row[0].src],
		Y: row[1].sign * inputs[row[1].src],
		Z: row[2].sign * inputs[row[2].src],
	}
}

// Axis returns the principal axis of a face, e.g. (1,0,0) for PX
func Axis(face Face) core.Vec3 {
	return faceVector(face, 0, 0, 1)
}

type transform func(uv core.Vec2, face Face) core.Vec3

var transforms = [...]transform{
	Cube:       cubeRay,
	Sphere:     sphereRay,
	Paraboloid: paraboloidRay,
}

// Ray returns the unit world direction represented by uv ∈ [-1,1]² in the
// output image of the given mode.
func Ray(uv core.Vec2, m Mode) core.Vec3 {
	return transforms[m.Family](uv, m.Face)
}

func cubeRay(uv core.Vec2, face Face) core.Vec3 {
	return faceVector(face, uv.X, uv.Y, 1).Normalize()
}

// sphereRay models a mirror-ball probe facing along the face axis: uv is the
// orthographic projection of a unit hemisphere and the axis ray is reflected
// off the hemisphere normal.
func sphereRay(uv core.Vec2, face Face) core.Vec3 {
	z := math.Sqrt(max(0, 1-uv.Dot(uv)))
	normal := faceVector(face, uv.X, uv.Y, z).Normalize()
	return Axis(face).Negate().Reflect(normal).Normalize()
}

// paraboloidRay uses the unclamped cube-face direction as the mirror normal
func paraboloidRay(uv core.Vec2, face Face) core.Vec3 {
	normal := faceVector(face, uv.X, uv.Y, 1).Normalize()
	return Axis(face).Negate().Reflect(normal).Normalize()
}

// PixelUV returns the uv coordinate of texel (x, y) in a size×size image,
// shifted by offset (in texels). Row 0 maps to uv.y ≈ -1.
func PixelUV(x, y, size int, offset core.Vec2) core.Vec2 {
	s := float64(size)
	return core.Vec2{
		X: (float64(x)+0.5+offset.X)*2/s - 1,
		Y: (float64(y)+0.5+offset.Y)*2/s - 1,
	}
}

// CubeFaceUV returns the face a direction points into and the texture
// coordinate (u, v) ∈ [0,1]² on that face, with v increasing with the row
// index. It is the inverse of the Cube family of Ray.
func CubeFaceUV(dir core.Vec3) (face Face, u, v float64) {
	ax, ay, az := math.Abs(dir.X), math.Abs(dir.Y), math.Abs(dir.Z)

	var su, sv, ma float64
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		if dir.X >= 0 {
			face, su, sv = PX, -dir.Z, -dir.Y
		} else {
			face, su, sv = NX, dir.Z, -dir.Y
		}
	case ay >= az:
		ma = ay
		if dir.Y >= 0 {
			face, su, sv = PY, dir.X, dir.Z
		} else {
			face, su, sv = NY, dir.X, -dir.Z
		}
	default:
		ma = az
		if dir.Z >= 0 {
			face, su, sv = PZ, dir.X, -dir.Y
		} else {
			face, su, sv = NZ, -dir.X, -dir.Y
		}
	}

	if ma == 0 {
		return PX, 0.5, 0.5
	}
	return face, 0.5 * (su/ma + 1), 0.5 * (sv/ma + 1)
}
