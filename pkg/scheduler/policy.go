package scheduler

import (
	"fmt"
	"math/bits"

	"github.com/df07/go-envmap-prefilter/pkg/kernel"
	"github.com/df07/go-envmap-prefilter/pkg/projection"
)

// SubmitConversion enqueues a reprojection of the source into the output
// named by id, e.g. "sphere-map-pz". The projection is parsed from id.
func (s *Scheduler) SubmitConversion(id string, size, samples int) error {
	mode, err := projection.ParseIdentifier(id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJobParameters, err)
	}
	return s.Enqueue(Job{
		ID:          id,
		Size:        size,
		SampleCount: samples,
		Convolution: kernel.Reproject,
		Projection:  mode,
	})
}

// MipCount returns ⌈log2(baseSize)⌉, the number of levels in a specular
// chain starting at baseSize. Sizes below 2 yield a single level.
func MipCount(baseSize int) int {
	if baseSize <= 1 {
		return 1
	}
	return bits.Len(uint(baseSize - 1))
}

// MipRoughness returns the roughness of level mip in a chain of numMips
// levels, linear from 0 at the base to 1 at the last level
func MipRoughness(mip, numMips int) float64 {
	if numMips <= 1 {
		return 0
	}
	return float64(mip) / float64(numMips-1)
}

// SubmitMipChain enqueues a full specular chain for a cubemap of baseSize:
// six faces per level, halving the size and raising roughness at each level
func (s *Scheduler) SubmitMipChain(baseSize, samplesPerMip int) error {
	baseSize = ClampSize(baseSize)
	return s.SubmitMipChainLevels(baseSize, MipCount(baseSize), samplesPerMip)
}

// SubmitMipChainLevels enqueues the first levels of a specular chain. The
// base size is clamped before halving, and level sizes below MinSize are
// clamped too.
func (s *Scheduler) SubmitMipChainLevels(baseSize, levels, samplesPerMip int) error {
	if levels < 1 {
		return fmt.Errorf("%w: %d mip levels", ErrInvalidJobParameters, levels)
	}
	baseSize = ClampSize(baseSize)

	jobs := make([]Job, 0, levels*projection.NumFaces)
	for mip := 0; mip < levels; mip++ {
		for _, face := range projection.Faces() {
			jobs = append(jobs, Job{
				ID:          fmt.Sprintf("specular-map-%v-%d", face, mip),
				Size:        baseSize >> mip,
				SampleCount: samplesPerMip,
				Convolution: kernel.Specular,
				Roughness:   MipRoughness(mip, levels),
				MipLevel:    mip,
				Projection:  projection.Mode{Family: projection.Cube, Face: face},
			})
		}
	}
	return s.enqueueAll(jobs)
}

// SubmitDiffuseSet enqueues the six faces of the diffuse irradiance cubemap
func (s *Scheduler) SubmitDiffuseSet(samples int) error {
	jobs := make([]Job, 0, projection.NumFaces)
	for _, face := range projection.Faces() {
		jobs = append(jobs, Job{
			ID:          fmt.Sprintf("diffuse-map-%v", face),
			Size:        s.config.DiffuseSize,
			SampleCount: samples,
			Convolution: kernel.Diffuse,
			Projection:  projection.Mode{Family: projection.Cube, Face: face},
		})
	}
	return s.enqueueAll(jobs)
}
