package core

import (
	"math"
	"math/bits"
)

// RadicalInverse returns the base-2 radical inverse (Van der Corput value) of i,
// i.e. the bits of i mirrored about the binary point, in [0, 1).
func RadicalInverse(i uint32) float64 {
	return float64(bits.Reverse32(i)) * 2.3283064365386963e-10 // 1 / 2^32
}

// Hammersley returns the i-th point of an n-point Hammersley set in [0,1]².
// The result depends only on (i, n).
func Hammersley(i, n uint32) Vec2 {
	return Vec2{X: float64(i) / float64(n), Y: RadicalInverse(i)}
}

// TangentFrame builds an orthonormal basis around n. The helper "up" axis is
// +Z unless n is nearly parallel to it, in which case +X is used.
func TangentFrame(n Vec3) (tangent, bitangent Vec3) {
	up := NewVec3(0, 0, 1)
	if math.Abs(n.Z) >= 0.999 {
		up = NewVec3(1, 0, 0)
	}
	tangent = up.Cross(n).Normalize()
	bitangent = n.Cross(tangent)
	return tangent, bitangent
}

// toWorld transforms a tangent-space vector into the frame around n
func toWorld(local Vec3, n Vec3) Vec3 {
	tangent, bitangent := TangentFrame(n)
	return tangent.Multiply(local.X).Add(bitangent.Multiply(local.Y)).Add(n.Multiply(local.Z))
}

// SampleCosineHemisphere maps a 2D sample to a cosine-weighted direction in the
// hemisphere around normal
func SampleCosineHemisphere(normal Vec3, sample Vec2) Vec3 {
	a := 2.0 * math.Pi * sample.X
	r := math.Sqrt(sample.Y)

	local := Vec3{
		X: r * math.Cos(a),
		Y: r * math.Sin(a),
		Z: math.Sqrt(max(0, 1.0-sample.Y)),
	}
	return toWorld(local, normal).Normalize()
}

// ImportanceSampleGGX maps a 2D sample to a half vector distributed according
// to the GGX normal distribution around n. The distribution is parameterized by
// alpha = roughness².
func ImportanceSampleGGX(sample Vec2, n Vec3, roughness float64) Vec3 {
	a := roughness * roughness

	phi := 2.0 * math.Pi * sample.X
	cosTheta := math.Sqrt((1.0 - sample.Y) / (1.0 + (a*a-1.0)*sample.Y))
	sinTheta := math.Sqrt(max(0, 1.0-cosTheta*cosTheta))

	local := Vec3{
		X: math.Cos(phi) * sinTheta,
		Y: math.Sin(phi) * sinTheta,
		Z: cosTheta,
	}
	return toWorld(local, n).Normalize()
}
