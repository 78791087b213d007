// Package envmap holds decoded 8-bit environment images and performs filtered
// lookups along world-space directions.
package envmap

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/df07/go-envmap-prefilter/pkg/projection"
)

// Layout describes how the environment is stored
type Layout int

const (
	// Equirectangular is a single latitude/longitude panorama (2:1)
	Equirectangular Layout = iota
	// Cubemap is six square faces in +X,-X,+Y,-Y,+Z,-Z order
	Cubemap
)

func (l Layout) String() string {
	switch l {
	case Equirectangular:
		return "equirectangular"
	case Cubemap:
		return "cubemap"
	default:
		return "unknown"
	}
}

var (
	ErrEmptyImage = errors.New("envmap: empty image")
	ErrFaceCount  = errors.New("envmap: cubemap requires six faces")
	ErrFaceSize   = errors.New("envmap: cubemap faces must be square")
)

// Image is an immutable RGBA8 environment. All faces share the same size.
type Image struct {
	layout        Layout
	width, height int
	faces         []*image.RGBA
}

// NewEquirectangular copies a decoded panorama into an environment image
func NewEquirectangular(src image.Image) (*Image, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	b := src.Bounds()
	return &Image{
		layout: Equirectangular,
		width:  b.Dx(),
		height: b.Dy(),
		faces:  []*image.RGBA{toRGBA(src, b.Dx(), b.Dy())},
	}, nil
}

// NewCubemap copies six decoded faces into an environment image. Faces are
// resampled to the size of the largest face if they differ.
func NewCubemap(faces []image.Image) (*Image, error) {
	if len(faces) != projection.NumFaces {
		return nil, fmt.Errorf("%w: got %d", ErrFaceCount, len(faces))
	}

	size := 0
	for i, f := range faces {
		if f == nil || f.Bounds().Empty() {
			return nil, fmt.Errorf("%w: face %v", ErrEmptyImage, projection.Face(i))
		}
		b := f.Bounds()
		if b.Dx() != b.Dy() {
			return nil, fmt.Errorf("%w: face %v is %dx%d", ErrFaceSize, projection.Face(i), b.Dx(), b.Dy())
		}
		size = max(size, b.Dx())
	}

	img := &Image{layout: Cubemap, width: size, height: size}
	for _, f := range faces {
		img.faces = append(img.faces, toRGBA(f, size, size))
	}
	return img, nil
}

// toRGBA converts src into a fresh RGBA buffer of the given size, scaling with
// Catmull-Rom when the sizes differ
func toRGBA(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}
	return dst
}

// Layout returns the storage layout
func (im *Image) Layout() Layout { return im.layout }

// Width returns the width of one face in pixels
func (im *Image) Width() int { return im.width }

// Height returns the height of one face in pixels
func (im *Image) Height() int { return im.height }

// NumFaces returns 1 for panoramas and 6 for cubemaps
func (im *Image) NumFaces() int { return len(im.faces) }

// Face returns the pixels of face i. The returned image must not be modified.
func (im *Image) Face(i int) *image.RGBA { return im.faces[i] }
