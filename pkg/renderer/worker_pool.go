package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrPoolStopped is returned when work is submitted to a stopped pool
var ErrPoolStopped = errors.New("renderer: worker pool stopped")

// PoolConfig configures the tile worker pool
type PoolConfig struct {
	NumWorkers int // Number of parallel workers (0 = use CPU count)
	TileSize   int // Edge length of the square tiles a frame is split into
}

// DefaultPoolConfig returns sensible default values
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers: 0, // Auto-detect CPU count
		TileSize:   32,
	}
}

// TileTask represents one tile of one frame for the worker pool
type TileTask struct {
	Tile   *Tile
	TaskID int        // Index of the tile in its grid
	Frame  *frameTask // Shared frame state; tiles write disjoint texels
}

// TileResult contains the result from rendering a tile
type TileResult struct {
	TaskID int
	Stats  FrameStats
	Error  error
}

// WorkerPool manages parallel tile rendering. It is long-lived: one pool
// serves every frame of every job.
type WorkerPool struct {
	taskQueue   chan TileTask
	resultQueue chan TileResult
	workers     []*Worker
	numWorkers  int
	tileSize    int
	wg          sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// Worker handles individual tile rendering tasks
type Worker struct {
	ID          int
	taskQueue   chan TileTask
	resultQueue chan TileResult
}

// NewWorkerPool creates a worker pool with the specified configuration
func NewWorkerPool(config PoolConfig) *WorkerPool {
	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	tileSize := config.TileSize
	if tileSize <= 0 {
		tileSize = DefaultPoolConfig().TileSize
	}

	wp := &WorkerPool{
		taskQueue:   make(chan TileTask, numWorkers*2),
		resultQueue: make(chan TileResult, numWorkers*2),
		numWorkers:  numWorkers,
		tileSize:    tileSize,
	}

	for i := 0; i < numWorkers; i++ {
		wp.workers = append(wp.workers, &Worker{
			ID:          i,
			taskQueue:   wp.taskQueue,
			resultQueue: wp.resultQueue,
		})
	}

	return wp
}

// Start begins all workers. Calling Start more than once has no effect.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.started || wp.stopped {
		return
	}
	wp.started = true

	for _, worker := range wp.workers {
		wp.wg.Add(1)
		go worker.run(&wp.wg)
	}
}

// Stop gracefully shuts down all workers. It must not be called while a
// frame is being rendered.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	wp.mu.Unlock()

	close(wp.taskQueue) // No more tasks
	wp.wg.Wait()        // Wait for workers to finish
	close(wp.resultQueue)
}

// Running reports whether the pool accepts tasks
func (wp *WorkerPool) Running() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.started && !wp.stopped
}

// SubmitTask submits a tile task to the worker pool
func (wp *WorkerPool) SubmitTask(task TileTask) {
	wp.taskQueue <- task
}

// GetResult retrieves a completed tile result
func (wp *WorkerPool) GetResult() (TileResult, bool) {
	result, ok := <-wp.resultQueue
	return result, ok
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

// TileSize returns the tile edge length frames are split into
func (wp *WorkerPool) TileSize() int {
	return wp.tileSize
}

// run is the main worker loop
func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range w.taskQueue {
		// Each tile has non-overlapping bounds, so writing the shared sum is safe
		stats, err := renderTileSafe(task)
		w.resultQueue <- TileResult{
			TaskID: task.TaskID,
			Stats:  stats,
			Error:  err,
		}
	}
}

// renderTileSafe renders a tile, converting a shader panic into an error so
// a single bad tile cannot take the pool down
func renderTileSafe(task TileTask) (stats FrameStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tile %d: shader panic: %v", task.TaskID, r)
		}
	}()
	return task.Frame.renderTile(task.Tile), nil
}
