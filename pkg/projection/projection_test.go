package projection

import (
	"errors"
	"math"
	"testing"

	"github.com/df07/go-envmap-prefilter/pkg/core"
)

const tolerance = 1e-9

func TestCubeRay_CenterIsPrincipalAxis(t *testing.T) {
	expected := map[Face]core.Vec3{
		PX: core.NewVec3(1, 0, 0),
		NX: core.NewVec3(-1, 0, 0),
		PY: core.NewVec3(0, 1, 0),
		NY: core.NewVec3(0, -1, 0),
		PZ: core.NewVec3(0, 0, 1),
		NZ: core.NewVec3(0, 0, -1),
	}

	for face, axis := range expected {
		got := Ray(core.Vec2{}, Mode{Family: Cube, Face: face})
		if got != axis {
			t.Errorf("face %v: expected exactly %v, got %v", face, axis, got)
		}
	}
}

func TestCubeRay_GLOrientation(t *testing.T) {
	// Row 0 (uv.y = -1) of every side face looks up.
	for _, face := range []Face{PX, NX, PZ, NZ} {
		top := Ray(core.NewVec2(0, -1), Mode{Family: Cube, Face: face})
		if top.Y <= 0 {
			t.Errorf("face %v: expected first row to point up, got %v", face, top)
		}
	}

	// +Y face: first row points towards -Z, +Z face: first column towards -X.
	if got := Ray(core.NewVec2(0, -1), Mode{Family: Cube, Face: PY}); got.Z >= 0 {
		t.Errorf("py first row should lean to -Z, got %v", got)
	}
	if got := Ray(core.NewVec2(-1, 0), Mode{Family: Cube, Face: PZ}); got.X >= 0 {
		t.Errorf("pz first column should lean to -X, got %v", got)
	}
}

func TestRay_UnitLength(t *testing.T) {
	for i := 0; i < NumModes; i++ {
		mode, err := ModeFromIndex(i)
		if err != nil {
			t.Fatal(err)
		}
		for _, uv := range []core.Vec2{{X: 0, Y: 0}, {X: 0.3, Y: -0.8}, {X: -1, Y: 1}, {X: 0.99, Y: 0.99}} {
			dir := Ray(uv, mode)
			if math.Abs(dir.Length()-1) > tolerance {
				t.Errorf("mode %v uv %v: |dir| = %v", mode, uv, dir.Length())
			}
		}
	}
}

func TestSphereAndParaboloid_CenterIsPrincipalAxis(t *testing.T) {
	for _, family := range []Family{Sphere, Paraboloid} {
		for _, face := range Faces() {
			got := Ray(core.Vec2{}, Mode{Family: family, Face: face})
			if got.Subtract(Axis(face)).Length() > tolerance {
				t.Errorf("%v %v: expected %v, got %v", family, face, Axis(face), got)
			}
		}
	}
}

func TestSphereRay_RimLooksBehind(t *testing.T) {
	got := Ray(core.NewVec2(1, 0), Mode{Family: Sphere, Face: PZ})
	if got.Subtract(core.NewVec3(0, 0, -1)).Length() > tolerance {
		t.Errorf("expected rim of +Z mirror ball to reflect -Z, got %v", got)
	}

	// Outside the disc the hemisphere height clamps to zero.
	outside := Ray(core.NewVec2(2, 0), Mode{Family: Sphere, Face: PZ})
	if !outside.IsFinite() || math.Abs(outside.Length()-1) > tolerance {
		t.Errorf("expected finite unit vector outside the disc, got %v", outside)
	}
}

func TestCubeFaceUV_InvertsCubeRay(t *testing.T) {
	for _, face := range Faces() {
		for _, uv := range []core.Vec2{{X: 0, Y: 0}, {X: 0.5, Y: -0.25}, {X: -0.9, Y: 0.7}, {X: 0.1, Y: 0.95}} {
			dir := Ray(uv, Mode{Family: Cube, Face: face})
			gotFace, u, v := CubeFaceUV(dir)
			if gotFace != face {
				t.Errorf("face %v uv %v: got face %v", face, uv, gotFace)
				continue
			}
			if math.Abs(u*2-1-uv.X) > tolerance || math.Abs(v*2-1-uv.Y) > tolerance {
				t.Errorf("face %v uv %v: got (%v, %v)", face, uv, u*2-1, v*2-1)
			}
		}
	}
}

func TestCubeFaceUV_ZeroVector(t *testing.T) {
	face, u, v := CubeFaceUV(core.Vec3{})
	if face != PX || u != 0.5 || v != 0.5 {
		t.Errorf("expected (px, 0.5, 0.5), got (%v, %v, %v)", face, u, v)
	}
}

func TestPixelUV(t *testing.T) {
	tests := []struct {
		name     string
		x, y     int
		size     int
		offset   core.Vec2
		expected core.Vec2
	}{
		{"single texel centre", 0, 0, 1, core.Vec2{}, core.NewVec2(0, 0)},
		{"first texel of 4", 0, 0, 4, core.Vec2{}, core.NewVec2(-0.75, -0.75)},
		{"last texel of 4", 3, 3, 4, core.Vec2{}, core.NewVec2(0.75, 0.75)},
		{"half texel jitter", 0, 0, 4, core.NewVec2(0.5, -0.5), core.NewVec2(-0.5, -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PixelUV(tt.x, tt.y, tt.size, tt.offset)
			if math.Abs(got.X-tt.expected.X) > tolerance || math.Abs(got.Y-tt.expected.Y) > tolerance {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestEquirect_RoundTrip(t *testing.T) {
	dirs := []core.Vec3{
		core.NewVec3(1, 0, 0),
		core.NewVec3(0, 0, 1),
		core.NewVec3(0, 0, -1),
		core.NewVec3(-1, 0.2, -0.0001),
		core.NewVec3(0.3, -0.9, 0.1),
		core.NewVec3(-0.5, 0.5, 0.5),
	}

	for _, d := range dirs {
		dir := d.Normalize()
		u, v := EquirectUV(dir)
		if u < 0 || u >= 1 || v < 0 || v > 1 {
			t.Errorf("dir %v: uv (%v, %v) out of range", dir, u, v)
		}
		back := DirectionFromEquirectUV(u, v)
		if back.Subtract(dir).Length() > 1e-9 {
			t.Errorf("dir %v: round trip gave %v", dir, back)
		}
	}
}

func TestEquirectUV_SeamAndPoles(t *testing.T) {
	// Both sides of the -Z seam land at opposite ends of the u range.
	uLeft, _ := EquirectUV(core.NewVec3(-1e-6, 0, -1).Normalize())
	uRight, _ := EquirectUV(core.NewVec3(1e-6, 0, -1).Normalize())
	if uLeft > 0.01 || uRight < 0.99 {
		t.Errorf("expected seam at u=0/1, got left=%v right=%v", uLeft, uRight)
	}

	// Slight overshoot at the poles must not produce NaN.
	_, vTop := EquirectUV(core.NewVec3(0, 1.0000001, 0))
	_, vBottom := EquirectUV(core.NewVec3(0, -1.0000001, 0))
	if vTop != 0 || vBottom != 1 {
		t.Errorf("expected poles at v=0 and v=1, got %v and %v", vTop, vBottom)
	}
}

func TestModeIndexRoundTrip(t *testing.T) {
	for i := 0; i < NumModes; i++ {
		mode, err := ModeFromIndex(i)
		if err != nil {
			t.Fatalf("ModeFromIndex(%d): %v", i, err)
		}
		if mode.Index() != i || !mode.Valid() {
			t.Errorf("mode %v: index %d, expected %d", mode, mode.Index(), i)
		}
	}

	if _, err := ModeFromIndex(NumModes); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		id          string
		expected    Mode
		expectError bool
	}{
		{"cube-map-px", Mode{Cube, PX}, false},
		{"sphere-map-nz", Mode{Sphere, NZ}, false},
		{"paraboloid-map-py", Mode{Paraboloid, PY}, false},
		{"cube-map-ny-3", Mode{Cube, NY}, false},
		{"cylinder-map-px", Mode{}, true},
		{"cube-map-qx", Mode{}, true},
		{"cube-px", Mode{}, true},
		{"", Mode{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := ParseIdentifier(tt.id)
			if tt.expectError {
				if !errors.Is(err, ErrUnknownMode) {
					t.Errorf("Expected ErrUnknownMode, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
			if got.String() != tt.id[:len(got.String())] {
				t.Errorf("String() %q is not a prefix of %q", got.String(), tt.id)
			}
		})
	}
}
