package scheduler

import (
	"fmt"
	"image"
	"strings"

	"github.com/df07/go-envmap-prefilter/pkg/projection"
)

// Convention is the cube face orientation expected by the consumer of the
// output images
type Convention int

const (
	// ConventionNative emits faces exactly as rendered
	ConventionNative Convention = iota
	// ConventionMirrored targets consumers with the opposite handedness: the
	// +X and -X cube faces trade places and every cube face is rotated 180°.
	// This is specific to such targets and not a property of cubemaps.
	ConventionMirrored
)

func (c Convention) String() string {
	switch c {
	case ConventionNative:
		return "native"
	case ConventionMirrored:
		return "mirrored"
	default:
		return fmt.Sprintf("convention(%d)", int(c))
	}
}

// ParseConvention parses "native" or "mirrored"
func ParseConvention(name string) (Convention, error) {
	switch strings.ToLower(name) {
	case "", "native":
		return ConventionNative, nil
	case "mirrored":
		return ConventionMirrored, nil
	default:
		return 0, fmt.Errorf("unknown face convention %q", name)
	}
}

// ApplyConvention rewrites a finished cube face for the target convention.
// Sphere and paraboloid outputs are never changed.
func ApplyConvention(c Convention, job Job, img *image.RGBA) (Job, *image.RGBA) {
	if c != ConventionMirrored || job.Projection.Family != projection.Cube {
		return job, img
	}

	switch job.Projection.Face {
	case projection.PX:
		job.Projection.Face = projection.NX
	case projection.NX:
		job.Projection.Face = projection.PX
	}
	job.ID = swapXFaces(job.ID)
	return job, rotate180(img)
}

// swapXFaces exchanges the "px" and "nx" tokens of a dash-separated identifier
func swapXFaces(id string) string {
	parts := strings.Split(id, "-")
	for i, p := range parts {
		switch p {
		case "px":
			parts[i] = "nx"
		case "nx":
			parts[i] = "px"
		}
	}
	return strings.Join(parts, "-")
}

// rotate180 flips an image horizontally and vertically into a new buffer
func rotate180(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.SetRGBA(b.Dx()-1-x, b.Dy()-1-y, src.RGBAAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
