// Package kernel evaluates the per-texel convolution of an environment along a
// surface normal.
package kernel

import (
	"fmt"

	"github.com/df07/go-envmap-prefilter/pkg/core"
)

// Mode selects the convolution performed for each texel
type Mode int

const (
	// Reproject samples the source once along the texel ray
	Reproject Mode = iota
	// Diffuse integrates the cosine-weighted irradiance around the normal
	Diffuse
	// Specular integrates a GGX lobe of the given roughness around the normal
	Specular
)

func (m Mode) String() string {
	switch m {
	case Reproject:
		return "reproject"
	case Diffuse:
		return "diffuse"
	case Specular:
		return "specular"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// minWeight is the smallest total weight treated as a valid integral
const minWeight = 1e-12

// Params configures one evaluation
type Params struct {
	Mode      Mode
	Roughness float64 // Specular only, clamped to [0,1]
	Samples   int     // Monte-Carlo samples for Diffuse and Specular
	Debug     bool    // visualize the normal instead of sampling
}

// Source returns the display-encoded color seen along a direction
type Source interface {
	Sample(dir core.Vec3) core.Vec3
}

// SourceFunc adapts a plain function to Source
type SourceFunc func(dir core.Vec3) core.Vec3

func (f SourceFunc) Sample(dir core.Vec3) core.Vec3 { return f(dir) }

// Result is the display-encoded output color of one texel
type Result struct {
	Color      core.Vec3
	Degenerate bool // no usable samples; Color is black
}

// Evaluate convolves src around the unit normal n
func Evaluate(n core.Vec3, p Params, src Source) Result {
	if p.Debug {
		return Result{Color: n.Multiply(0.5).Add(core.NewVec3(0.5, 0.5, 0.5))}
	}
	if src == nil {
		return Result{Degenerate: true}
	}

	switch p.Mode {
	case Diffuse:
		return integrate(n, p.Samples, src, func(xi core.Vec2) core.Vec3 {
			return core.SampleCosineHemisphere(n, xi)
		})
	case Specular:
		roughness := max(0, min(1, p.Roughness))
		return integrate(n, p.Samples, src, func(xi core.Vec2) core.Vec3 {
			// view direction equals the normal
			h := core.ImportanceSampleGGX(xi, n, roughness)
			return h.Multiply(2 * n.Dot(h)).Subtract(n).Normalize()
		})
	default:
		return Result{Color: src.Sample(n)}
	}
}

// integrate averages the linearized source over the Hammersley set mapped by
// sample, weighting each lookup by max(n·l, 0)
func integrate(n core.Vec3, samples int, src Source, sample func(core.Vec2) core.Vec3) Result {
	if samples < 1 {
		return Result{Degenerate: true}
	}

	var sum core.Vec3
	total := 0.0
	for i := 0; i < samples; i++ {
		l := sample(core.Hammersley(uint32(i), uint32(samples)))
		nDotL := n.Dot(l)
		if nDotL <= 0 {
			continue
		}
		sum = sum.Add(core.Linearize(src.Sample(l)).Multiply(nDotL))
		total += nDotL
	}

	if total <= minWeight || !sum.IsFinite() {
		return Result{Degenerate: true}
	}
	return Result{Color: core.EncodeDisplay(sum.Multiply(1.0 / total))}
}
