package renderer

import "time"

// FrameStats contains statistics about one or more rendered frames
type FrameStats struct {
	Frames           int           // Number of frames covered
	Texels           int           // Total number of texel evaluations
	DegenerateTexels int           // Evaluations whose integral had no usable samples
	Duration         time.Duration // Wall time spent rendering
}

// Add merges other into the statistics
func (fs *FrameStats) Add(other FrameStats) {
	fs.Frames += other.Frames
	fs.Texels += other.Texels
	fs.DegenerateTexels += other.DegenerateTexels
	fs.Duration += other.Duration
}

// DegenerateRatio returns the fraction of evaluations that were degenerate
func (fs FrameStats) DegenerateRatio() float64 {
	if fs.Texels == 0 {
		return 0
	}
	return float64(fs.DegenerateTexels) / float64(fs.Texels)
}
