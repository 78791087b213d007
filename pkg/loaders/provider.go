package loaders

import (
	"context"
	"sync"

	"github.com/df07/go-envmap-prefilter/pkg/core"
	"github.com/df07/go-envmap-prefilter/pkg/envmap"
)

// FileProvider loads a source environment on first use and serves
// the cached image to every later job. Failed loads are not cached, so each
// job reports its own failure.
type FileProvider struct {
	load func() (*envmap.Image, error)

	mu  sync.Mutex
	img *envmap.Image
}

// NewEquirectProvider serves the panorama (or EXR cube environment) at path
func NewEquirectProvider(path string, logger core.Logger) *FileProvider {
	return &FileProvider{load: func() (*envmap.Image, error) {
		return LoadEquirectangular(path, logger)
	}}
}

// NewCubeProvider serves six face images in +X,-X,+Y,-Y,+Z,-Z order
func NewCubeProvider(paths []string) *FileProvider {
	paths = append([]string(nil), paths...)
	return &FileProvider{load: func() (*envmap.Image, error) {
		return LoadCubemap(paths)
	}}
}

// NewCubeDirProvider serves the faces px, nx, py, ny, pz and nz found in dir
func NewCubeDirProvider(dir string) *FileProvider {
	return &FileProvider{load: func() (*envmap.Image, error) {
		paths, err := CubeFacePaths(dir)
		if err != nil {
			return nil, err
		}
		return LoadCubemap(paths)
	}}
}

// NewGradientProvider serves a procedural sky baked into a panorama of the
// given width
func NewGradientProvider(g envmap.Gradient, width int) *FileProvider {
	return &FileProvider{load: func() (*envmap.Image, error) {
		return g.Equirectangular(width)
	}}
}

// Load implements scheduler.InputProvider
func (p *FileProvider) Load(ctx context.Context) (*envmap.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.img != nil {
		return p.img, nil
	}

	img, err := p.load()
	if err != nil {
		return nil, err
	}
	p.img = img
	return img, nil
}
