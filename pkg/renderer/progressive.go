// Package renderer accumulates anti-aliased frames of a per-texel shader into
// a square 8-bit image, splitting each frame into tiles rendered in parallel.
package renderer

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/df07/go-envmap-prefilter/pkg/core"
	"github.com/df07/go-envmap-prefilter/pkg/projection"
)

var (
	ErrInvalidBuffer = errors.New("renderer: size and frame count must be positive")
	ErrFrameOrder    = errors.New("renderer: frame submitted out of order")
	ErrFrameOverflow = errors.New("renderer: frame index beyond frame count")
	ErrIncomplete    = errors.New("renderer: accumulation incomplete")
)

// Shader evaluates one texel at the jittered face coordinate uv ∈ [-1,1]².
// It must be safe for concurrent use. The second result marks a degenerate
// evaluation.
type Shader func(uv core.Vec2) (core.Vec3, bool)

// AccumulationBuffer sums successive jittered frames of one job and averages
// them on read-back
type AccumulationBuffer struct {
	pool   *WorkerPool
	size   int
	frames int
	next   int         // Index of the next frame to render
	sum    []core.Vec3 // Running per-texel sum, row-major
	kernel []core.Vec2 // Per-frame sub-texel offsets
	tiles  []*Tile     // Tile grid for the current size
}

// NewAccumulationBuffer creates an empty buffer. Frames are rendered on pool,
// or serially on the calling goroutine when pool is nil.
func NewAccumulationBuffer(pool *WorkerPool) *AccumulationBuffer {
	return &AccumulationBuffer{pool: pool}
}

// Reset clears all state and prepares for frames of a size×size image
func (ab *AccumulationBuffer) Reset(size, frames int) error {
	if size < 1 || frames < 1 {
		return fmt.Errorf("%w: size %d, frames %d", ErrInvalidBuffer, size, frames)
	}

	tileSize := DefaultPoolConfig().TileSize
	if ab.pool != nil {
		tileSize = ab.pool.TileSize()
	}

	if ab.size != size || ab.tiles == nil {
		ab.tiles = NewTileGrid(size, size, tileSize)
	}
	if cap(ab.sum) >= size*size {
		ab.sum = ab.sum[:size*size]
		clear(ab.sum)
	} else {
		ab.sum = make([]core.Vec3, size*size)
	}

	ab.size = size
	ab.frames = frames
	ab.next = 0
	ab.kernel = AntiAliasingKernel(frames)
	return nil
}

// Size returns the edge length of the image being accumulated
func (ab *AccumulationBuffer) Size() int { return ab.size }

// Frames returns the number of frames the current job averages
func (ab *AccumulationBuffer) Frames() int { return ab.frames }

// FramesDone returns the number of frames rendered since the last Reset
func (ab *AccumulationBuffer) FramesDone() int { return ab.next }

// Complete reports whether every frame has been rendered
func (ab *AccumulationBuffer) Complete() bool {
	return ab.frames > 0 && ab.next == ab.frames
}

// Frame renders frame index with shade and adds it to the running sum.
// Frames must be rendered in order starting at 0.
func (ab *AccumulationBuffer) Frame(index int, shade Shader) (FrameStats, error) {
	if ab.frames == 0 || index >= ab.frames {
		return FrameStats{}, fmt.Errorf("%w: frame %d of %d", ErrFrameOverflow, index, ab.frames)
	}
	if index != ab.next {
		return FrameStats{}, fmt.Errorf("%w: got frame %d, expected %d", ErrFrameOrder, index, ab.next)
	}

	startTime := time.Now()
	ft := &frameTask{
		size:   ab.size,
		offset: ab.kernel[index],
		shade:  shade,
		sum:    ab.sum,
	}

	var stats FrameStats
	var err error
	if ab.pool == nil {
		for _, tile := range ab.tiles {
			stats.Add(ft.renderTile(tile))
		}
	} else {
		stats, err = ab.renderParallel(ft)
	}
	if err != nil {
		return FrameStats{}, err
	}

	ab.next++
	stats.Frames = 1
	stats.Duration = time.Since(startTime)
	return stats, nil
}

// renderParallel submits every tile of the frame to the pool and waits for
// all of them
func (ab *AccumulationBuffer) renderParallel(ft *frameTask) (FrameStats, error) {
	ab.pool.Start()
	if !ab.pool.Running() {
		return FrameStats{}, ErrPoolStopped
	}

	// Submit from a separate goroutine so that queue capacity never has to
	// cover the whole grid
	go func() {
		for taskID, tile := range ab.tiles {
			ab.pool.SubmitTask(TileTask{Tile: tile, TaskID: taskID, Frame: ft})
		}
	}()

	var stats FrameStats
	var firstErr error
	for i := 0; i < len(ab.tiles); i++ {
		result, ok := ab.pool.GetResult()
		if !ok {
			return FrameStats{}, fmt.Errorf("worker pool closed unexpectedly")
		}
		if result.Error != nil && firstErr == nil {
			firstErr = result.Error
		}
		stats.Add(result.Stats)
	}
	return stats, firstErr
}

// Result returns the mean of all rendered frames quantized to 8 bits
func (ab *AccumulationBuffer) Result() (*image.RGBA, error) {
	if !ab.Complete() {
		return nil, fmt.Errorf("%w: %d of %d frames", ErrIncomplete, ab.next, ab.frames)
	}

	img := image.NewRGBA(image.Rect(0, 0, ab.size, ab.size))
	scale := 1.0 / float64(ab.frames)
	for y := 0; y < ab.size; y++ {
		for x := 0; x < ab.size; x++ {
			img.SetRGBA(x, y, core.ToRGBA(ab.sum[y*ab.size+x].Multiply(scale)))
		}
	}
	return img, nil
}

// frameTask is the state shared by all tiles of one frame
type frameTask struct {
	size   int
	offset core.Vec2
	shade  Shader
	sum    []core.Vec3
}

// renderTile shades every texel of tile and adds it to the shared sum
func (ft *frameTask) renderTile(tile *Tile) FrameStats {
	var stats FrameStats
	for y := tile.Bounds.Min.Y; y < tile.Bounds.Max.Y; y++ {
		for x := tile.Bounds.Min.X; x < tile.Bounds.Max.X; x++ {
			color, degenerate := ft.shade(projection.PixelUV(x, y, ft.size, ft.offset))
			if !color.IsFinite() {
				color, degenerate = core.Vec3{}, true
			}
			i := y*ft.size + x
			ft.sum[i] = ft.sum[i].Add(color)

			stats.Texels++
			if degenerate {
				stats.DegenerateTexels++
			}
		}
	}
	return stats
}

// Tile represents a rectangular region of the image to be rendered
type Tile struct {
	ID     int             // Unique tile identifier
	Bounds image.Rectangle // Pixel bounds (x0,y0,x1,y1)
}

// NewTile creates a new tile with the specified bounds
func NewTile(id int, bounds image.Rectangle) *Tile {
	return &Tile{ID: id, Bounds: bounds}
}

// NewTileGrid creates a grid of tiles covering the entire image
func NewTileGrid(width, height, tileSize int) []*Tile {
	var tiles []*Tile
	tileID := 0

	// Calculate number of tiles in each dimension
	tilesX := (width + tileSize - 1) / tileSize // Ceiling division
	tilesY := (height + tileSize - 1) / tileSize

	for tileY := 0; tileY < tilesY; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			x0 := tileX * tileSize
			y0 := tileY * tileSize
			x1 := min(x0+tileSize, width) // Don't exceed image bounds
			y1 := min(y0+tileSize, height)

			tiles = append(tiles, NewTile(tileID, image.Rect(x0, y0, x1, y1)))
			tileID++
		}
	}

	return tiles
}
