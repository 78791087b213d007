// Package projection maps output texel coordinates to world-space ray
// directions for cube, mirror-sphere and paraboloid parameterizations, and maps
// directions back to source-image coordinates.
package projection

import (
	"errors"
	"fmt"
	"strings"
)

// Family selects the parameterization of an output image
type Family int

const (
	Cube Family = iota
	Sphere
	Paraboloid
)

var familyNames = [...]string{"cube", "sphere", "paraboloid"}

func (f Family) String() string {
	if f < 0 || int(f) >= len(familyNames) {
		return fmt.Sprintf("family(%d)", int(f))
	}
	return familyNames[f]
}

// Face identifies one of the six cube faces, in the order +X,-X,+Y,-Y,+Z,-Z
type Face int

const (
	PX Face = iota
	NX
	PY
	NY
	PZ
	NZ
)

// NumFaces is the number of cube faces
const NumFaces = 6

var faceNames = [...]string{"px", "nx", "py", "ny", "pz", "nz"}

func (f Face) String() string {
	if f < 0 || int(f) >= len(faceNames) {
		return fmt.Sprintf("face(%d)", int(f))
	}
	return faceNames[f]
}

// Faces returns all faces in cubemap order
func Faces() []Face {
	return []Face{PX, NX, PY, NY, PZ, NZ}
}

// Mode is a projection family combined with the face it renders
type Mode struct {
	Family Family
	Face   Face
}

// NumModes is the number of distinct projection modes
const NumModes = 3 * NumFaces

var ErrUnknownMode = errors.New("projection: unknown mode")

// Index returns the flat mode index in [0, NumModes)
func (m Mode) Index() int {
	return int(m.Family)*NumFaces + int(m.Face)
}

// Valid reports whether both the family and the face are in range
func (m Mode) Valid() bool {
	return m.Family >= Cube && m.Family <= Paraboloid && m.Face >= PX && m.Face <= NZ
}

func (m Mode) String() string {
	return m.Family.String() + "-map-" + m.Face.String()
}

// ModeFromIndex is the inverse of Mode.Index
func ModeFromIndex(i int) (Mode, error) {
	if i < 0 || i >= NumModes {
		return Mode{}, fmt.Errorf("%w: index %d", ErrUnknownMode, i)
	}
	return Mode{Family: Family(i / NumFaces), Face: Face(i % NumFaces)}, nil
}

// ParseFamily parses a family name such as "sphere"
func ParseFamily(name string) (Family, error) {
	for i, n := range familyNames {
		if n == name {
			return Family(i), nil
		}
	}
	return 0, fmt.Errorf("%w: family %q", ErrUnknownMode, name)
}

// ParseFace parses a face name such as "nz"
func ParseFace(name string) (Face, error) {
	for i, n := range faceNames {
		if n == name {
			return Face(i), nil
		}
	}
	return 0, fmt.Errorf("%w: face %q", ErrUnknownMode, name)
}

// ParseIdentifier extracts the mode from an output identifier of the form
// "<family>-map-<face>", optionally followed by "-<suffix>"
// (e.g. "cube-map-px", "paraboloid-map-nz-3").
func ParseIdentifier(id string) (Mode, error) {
	familyName, rest, ok := strings.Cut(id, "-map-")
	if !ok {
		return Mode{}, fmt.Errorf("%w: identifier %q", ErrUnknownMode, id)
	}
	faceName, _, _ := strings.Cut(rest, "-")

	family, err := ParseFamily(familyName)
	if err != nil {
		return Mode{}, err
	}
	face, err := ParseFace(faceName)
	if err != nil {
		return Mode{}, err
	}
	return Mode{Family: family, Face: face}, nil
}
