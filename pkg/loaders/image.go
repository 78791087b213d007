// Package loaders decodes source environment images from disk and delivers
// finished output images to directories or archives.
package loaders

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"
	"path/filepath"
	"strings"

	"github.com/mrjoshuak/go-openexr/exr"
	_ "golang.org/x/image/bmp"  // BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF decoder
	_ "golang.org/x/image/webp" // WebP decoder

	"github.com/df07/go-envmap-prefilter/pkg/core"
	"github.com/df07/go-envmap-prefilter/pkg/envmap"
	"github.com/df07/go-envmap-prefilter/pkg/projection"
)

var ErrUnsupportedLayout = errors.New("loaders: unsupported environment layout")

// LoadImage decodes an image file. PNG, JPEG, BMP, TIFF and WebP are detected
// from the file header; OpenEXR files are recognized by their extension and
// converted to 8-bit display values.
func LoadImage(filename string) (image.Image, error) {
	if isEXR(filename) {
		img, _, err := loadEXR(filename)
		return img, err
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	// Decode image (auto-detects the format from the file header)
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filename, err)
	}
	return img, nil
}

// LoadEquirectangular loads a panorama. OpenEXR files tagged as cube
// environment maps are returned as cubemaps. A logger, if given, is warned
// about panoramas that are not 2:1.
func LoadEquirectangular(filename string, logger core.Logger) (*envmap.Image, error) {
	var img image.Image
	if isEXR(filename) {
		rgba, cube, err := loadEXR(filename)
		if err != nil {
			return nil, err
		}
		if cube {
			return splitEXRCube(rgba)
		}
		img = rgba
	} else {
		var err error
		if img, err = LoadImage(filename); err != nil {
			return nil, err
		}
	}

	b := img.Bounds()
	if b.Dx() != 2*b.Dy() && logger != nil {
		logger.Printf("Warning: %s is %dx%d, expected a 2:1 panorama\n", filename, b.Dx(), b.Dy())
	}
	return envmap.NewEquirectangular(img)
}

// LoadCubemap loads six face images in +X,-X,+Y,-Y,+Z,-Z order
func LoadCubemap(filenames []string) (*envmap.Image, error) {
	if len(filenames) != projection.NumFaces {
		return nil, fmt.Errorf("%w: got %d files", envmap.ErrFaceCount, len(filenames))
	}

	faces := make([]image.Image, 0, len(filenames))
	for _, name := range filenames {
		img, err := LoadImage(name)
		if err != nil {
			return nil, err
		}
		faces = append(faces, img)
	}
	return envmap.NewCubemap(faces)
}

// CubeFacePaths finds the face files "px", "nx", "py", "ny", "pz", "nz" in
// dir, with any supported image extension
func CubeFacePaths(dir string) ([]string, error) {
	paths := make([]string, 0, projection.NumFaces)
	for _, face := range projection.Faces() {
		matches, err := filepath.Glob(filepath.Join(dir, face.String()+".*"))
		if err != nil {
			return nil, err
		}

		found := ""
		for _, m := range matches {
			if IsSupportedImage(m) {
				found = m
				break
			}
		}
		if found == "" {
			return nil, fmt.Errorf("no image for face %v in %s: %w", face, dir, os.ErrNotExist)
		}
		paths = append(paths, found)
	}
	return paths, nil
}

var supportedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true,
	".tif": true, ".tiff": true, ".webp": true, ".exr": true,
}

// IsSupportedImage reports whether filename has an extension LoadImage reads
func IsSupportedImage(filename string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

func isEXR(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".exr")
}

// loadEXR reads an OpenEXR file, encodes its linear values for display and
// quantizes them to 8 bits. It reports whether the header marks the file as
// a cube environment map.
func loadEXR(filename string) (*image.RGBA, bool, error) {
	in, err := exr.OpenRGBAInputFile(filename)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open EXR file: %w", err)
	}
	defer in.Close()

	pixels, err := in.ReadRGBA()
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode EXR %s: %w", filename, err)
	}

	b := pixels.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := pixels.RGBA(b.Min.X+x, b.Min.Y+y)
			linear := core.NewVec3(float64(r), float64(g), float64(bl))
			img.SetRGBA(x, y, core.ToRGBA(core.EncodeDisplay(linear)))
		}
	}

	cube := in.Header().HasEnvmap() && in.Header().Envmap() == exr.EnvMapCube
	return img, cube, nil
}

// splitEXRCube cuts a vertically stacked N×6N cube environment into faces
func splitEXRCube(img *image.RGBA) (*envmap.Image, error) {
	b := img.Bounds()
	size := b.Dy() / projection.NumFaces
	if size == 0 || b.Dx() < size {
		return nil, fmt.Errorf("%w: cube strip of %dx%d", ErrUnsupportedLayout, b.Dx(), b.Dy())
	}

	faces := make([]image.Image, 0, projection.NumFaces)
	for face := 0; face < projection.NumFaces; face++ {
		dst := image.NewRGBA(image.Rect(0, 0, size, size))
		draw.Draw(dst, dst.Bounds(), img, image.Pt(0, face*size), draw.Src)
		faces = append(faces, dst)
	}
	return envmap.NewCubemap(faces)
}
