package scheduler

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/df07/go-envmap-prefilter/pkg/envmap"
	"github.com/df07/go-envmap-prefilter/pkg/kernel"
	"github.com/df07/go-envmap-prefilter/pkg/projection"
)

// Output sizes are clamped to this range at enqueue time
const (
	MinSize = 8
	MaxSize = 8192
)

// Job describes one output image. Jobs are values; once enqueued they are
// never modified.
type Job struct {
	ID            string          // Opaque identifier handed back to the sink
	Size          int             // Output edge length in texels
	SampleCount   int             // Anti-aliasing frames averaged into the output
	KernelSamples int             // Monte-Carlo samples per texel and frame
	Convolution   kernel.Mode     // Reproject, Diffuse or Specular
	Roughness     float64         // Specular roughness in [0,1]
	MipLevel      int             // Mip index for specular chains
	Projection    projection.Mode // Output parameterization
	Debug         bool            // Render ray directions instead of the source
}

// validate checks everything that cannot be clamped
func (j Job) validate() error {
	switch {
	case j.SampleCount < 1:
		return fmt.Errorf("%w: sample count %d", ErrInvalidJobParameters, j.SampleCount)
	case !j.Projection.Valid():
		return fmt.Errorf("%w: projection %v", ErrInvalidJobParameters, j.Projection)
	case j.Convolution < kernel.Reproject || j.Convolution > kernel.Specular:
		return fmt.Errorf("%w: convolution %v", ErrInvalidJobParameters, j.Convolution)
	case math.IsNaN(j.Roughness) || j.Roughness < 0 || j.Roughness > 1:
		return fmt.Errorf("%w: roughness %v", ErrInvalidJobParameters, j.Roughness)
	}
	return nil
}

// ClampSize limits an output edge length to [MinSize, MaxSize]
func ClampSize(size int) int {
	return max(MinSize, min(MaxSize, size))
}

// JobStats summarizes a completed job
type JobStats struct {
	Job              Job
	Frames           int
	Texels           int
	DegenerateTexels int
	Duration         time.Duration
}

// InputProvider supplies the decoded source environment for a job
type InputProvider interface {
	Load(ctx context.Context) (*envmap.Image, error)
}

// InputFunc adapts a plain function to InputProvider
type InputFunc func(ctx context.Context) (*envmap.Image, error)

func (f InputFunc) Load(ctx context.Context) (*envmap.Image, error) { return f(ctx) }

// OutputSink receives exactly one finished image per completed job
type OutputSink interface {
	Emit(job Job, img *image.RGBA) error
}

// SinkFunc adapts a plain function to OutputSink
type SinkFunc func(job Job, img *image.RGBA) error

func (f SinkFunc) Emit(job Job, img *image.RGBA) error { return f(job, img) }
