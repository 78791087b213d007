package core

import (
	"math"
	"testing"
)

func TestRadicalInverse(t *testing.T) {
	tests := []struct {
		input    uint32
		expected float64
	}{
		{0, 0.0},
		{1, 0.5},
		{2, 0.25},
		{3, 0.75},
		{4, 0.125},
		{5, 0.625},
		{0x80000000, 1.0 / 4294967296.0},
	}

	for _, tt := range tests {
		got := RadicalInverse(tt.input)
		if got != tt.expected {
			t.Errorf("RadicalInverse(%d) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestHammersley_Deterministic(t *testing.T) {
	const n = 512
	for i := uint32(0); i < n; i++ {
		a := Hammersley(i, n)
		b := Hammersley(i, n)
		if a != b {
			t.Fatalf("Hammersley(%d, %d) not deterministic: %v != %v", i, n, a, b)
		}
		if a.X != float64(i)/float64(n) {
			t.Errorf("Hammersley(%d, %d).X = %v, expected exactly %v", i, n, a.X, float64(i)/float64(n))
		}
		if a.Y < 0 || a.Y >= 1 {
			t.Errorf("Hammersley(%d, %d).Y = %v out of [0,1)", i, n, a.Y)
		}
	}
}

func TestTangentFrame_Orthonormal(t *testing.T) {
	normals := []Vec3{
		NewVec3(1, 0, 0),
		NewVec3(0, 1, 0),
		NewVec3(0, 0, 1),
		NewVec3(0, 0, -1),
		NewVec3(1, 1, 1).Normalize(),
		NewVec3(-0.3, 0.2, 0.9).Normalize(),
	}

	const tolerance = 1e-9
	for _, n := range normals {
		tangent, bitangent := TangentFrame(n)
		if math.Abs(tangent.Length()-1) > tolerance || math.Abs(bitangent.Length()-1) > tolerance {
			t.Errorf("frame for %v not unit length: |T|=%v |B|=%v", n, tangent.Length(), bitangent.Length())
		}
		if math.Abs(tangent.Dot(n)) > tolerance || math.Abs(bitangent.Dot(n)) > tolerance || math.Abs(tangent.Dot(bitangent)) > tolerance {
			t.Errorf("frame for %v not orthogonal", n)
		}
	}
}

func TestSampleCosineHemisphere_AboveSurface(t *testing.T) {
	normal := NewVec3(0.2, -0.7, 0.4).Normalize()
	const n = 256
	for i := uint32(0); i < n; i++ {
		dir := SampleCosineHemisphere(normal, Hammersley(i, n))
		if math.Abs(dir.Length()-1) > 1e-9 {
			t.Errorf("sample %d not normalized: %v", i, dir.Length())
		}
		if dir.Dot(normal) < -1e-9 {
			t.Errorf("sample %d below hemisphere: dot=%v", i, dir.Dot(normal))
		}
	}
}

func TestImportanceSampleGGX(t *testing.T) {
	normal := NewVec3(0, 1, 0)

	t.Run("zero roughness collapses to normal", func(t *testing.T) {
		for i := uint32(0); i < 64; i++ {
			h := ImportanceSampleGGX(Hammersley(i, 64), normal, 0)
			if h.Subtract(normal).Length() > 1e-9 {
				t.Errorf("sample %d: expected %v, got %v", i, normal, h)
			}
		}
	})

	t.Run("rougher lobes spread wider", func(t *testing.T) {
		meanCos := func(roughness float64) float64 {
			sum := 0.0
			for i := uint32(0); i < 256; i++ {
				sum += ImportanceSampleGGX(Hammersley(i, 256), normal, roughness).Dot(normal)
			}
			return sum / 256
		}
		smooth, rough := meanCos(0.2), meanCos(0.9)
		if smooth <= rough {
			t.Errorf("expected smoother lobe to be tighter: mean cos %v (0.2) vs %v (0.9)", smooth, rough)
		}
	})
}
