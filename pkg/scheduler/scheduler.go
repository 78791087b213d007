// Package scheduler runs prefiltering jobs one at a time through a shared
// accumulation pipeline. Work advances in ticks of at most one frame.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/df07/go-envmap-prefilter/pkg/core"
	"github.com/df07/go-envmap-prefilter/pkg/envmap"
	"github.com/df07/go-envmap-prefilter/pkg/kernel"
	"github.com/df07/go-envmap-prefilter/pkg/log"
	"github.com/df07/go-envmap-prefilter/pkg/projection"
	"github.com/df07/go-envmap-prefilter/pkg/renderer"
)

// State is the phase of the scheduler's state machine
type State int

const (
	// Idle means no job is active and the queue is empty
	Idle State = iota
	// Preparing pops the next job, loads its source and resets accumulation
	Preparing
	// Accumulating renders one anti-aliasing frame per tick
	Accumulating
	// Emitting hands the finished image to the sink
	Emitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case Accumulating:
		return "accumulating"
	case Emitting:
		return "emitting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config contains scheduler configuration
type Config struct {
	KernelSamples int        // Default per-texel Monte-Carlo budget
	DiffuseSize   int        // Output size of diffuse irradiance faces
	Workers       int        // Parallel tile workers (0 = use CPU count)
	TileSize      int        // Tile edge length for parallel frames
	Convention    Convention // Cube face convention of the output target
}

// DefaultConfig returns sensible default values
func DefaultConfig() Config {
	return Config{
		KernelSamples: 512,
		DiffuseSize:   64,
		Workers:       0,
		TileSize:      renderer.DefaultPoolConfig().TileSize,
		Convention:    ConventionNative,
	}
}

// Hooks are optional callbacks invoked from the ticking goroutine
type Hooks struct {
	JobStarted   func(job Job)
	FrameDone    func(job Job, frame int, stats renderer.FrameStats)
	JobCompleted func(stats JobStats)
	JobFailed    func(err *JobError)
}

// activeJob is the accumulation state of the one job being processed
type activeJob struct {
	job     Job
	shade   renderer.Shader
	frame   int
	stats   renderer.FrameStats
	started time.Time
}

// Scheduler owns the job queue, the active job and the accumulation buffer
type Scheduler struct {
	config Config
	input  InputProvider
	sink   OutputSink
	logger core.Logger
	hooks  Hooks

	pool   *renderer.WorkerPool
	buffer *renderer.AccumulationBuffer

	tickMu sync.Mutex // serializes ticks; guards buffer

	mu     sync.Mutex // guards the fields below and the active job's progress
	state  State
	queue  []Job
	active *activeJob
}

// New creates a scheduler reading sources from input and delivering results
// to sink. A nil logger logs through the "scheduler" module logger. Close
// must be called to release the worker pool.
func New(config Config, input InputProvider, sink OutputSink, logger core.Logger) *Scheduler {
	if logger == nil {
		logger = log.NewPrintfLogger("scheduler")
	}
	defaults := DefaultConfig()
	if config.KernelSamples < 1 {
		config.KernelSamples = defaults.KernelSamples
	}
	if config.DiffuseSize < 1 {
		config.DiffuseSize = defaults.DiffuseSize
	}
	if config.TileSize < 1 {
		config.TileSize = defaults.TileSize
	}

	pool := renderer.NewWorkerPool(renderer.PoolConfig{
		NumWorkers: config.Workers,
		TileSize:   config.TileSize,
	})

	return &Scheduler{
		config: config,
		input:  input,
		sink:   sink,
		logger: logger,
		pool:   pool,
		buffer: renderer.NewAccumulationBuffer(pool),
		state:  Idle,
	}
}

// SetHooks installs progress callbacks. It must be called before the first tick.
func (s *Scheduler) SetHooks(h Hooks) {
	s.hooks = h
}

// Config returns the effective configuration
func (s *Scheduler) Config() Config {
	return s.config
}

// Close stops the worker pool. The scheduler cannot be used afterwards.
func (s *Scheduler) Close() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.pool.Stop()
}

// State returns the current state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QueueLen returns the number of jobs waiting behind the active one
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Pending returns a copy of the queued jobs in FIFO order
func (s *Scheduler) Pending() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.queue...)
}

// Active returns the job being processed, if any
func (s *Scheduler) Active() (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Job{}, false
	}
	return s.active.job, true
}

// Enqueue validates job, clamps its size and appends it to the queue
func (s *Scheduler) Enqueue(job Job) error {
	return s.enqueueAll([]Job{job})
}

// enqueueAll appends jobs atomically: either all are queued or none
func (s *Scheduler) enqueueAll(jobs []Job) error {
	normalized := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if err := job.validate(); err != nil {
			return fmt.Errorf("job %s: %w", job.ID, err)
		}
		job.Size = ClampSize(job.Size)
		if job.KernelSamples < 1 {
			job.KernelSamples = s.config.KernelSamples
		}
		normalized = append(normalized, job)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, normalized...)
	if s.state == Idle && len(s.queue) > 0 {
		s.state = Preparing
	}
	return nil
}

// Cancel drops the active job. Its partial accumulation is never emitted.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.logger.Printf("Job %s cancelled after %d frames\n", s.active.job.ID, s.active.frame)
	}
	s.active = nil
	s.advanceLocked()
}

// advanceLocked moves to the next job or to Idle. The active job must already
// be cleared.
func (s *Scheduler) advanceLocked() {
	if len(s.queue) > 0 {
		s.state = Preparing
	} else {
		s.state = Idle
	}
}

// Tick performs exactly one step of the state machine: preparing a job,
// rendering one frame, or emitting a finished image. A failed job is
// reported as a *JobError and the scheduler moves on. Tick is a no-op while
// Idle.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if err := ctx.Err(); err != nil {
		s.Cancel()
		return err
	}

	s.mu.Lock()
	state := s.state
	a := s.active
	s.mu.Unlock()

	switch state {
	case Preparing:
		return s.prepare(ctx)
	case Accumulating:
		return s.accumulate(a)
	case Emitting:
		return s.emit(a)
	default:
		return nil
	}
}

// Run ticks until the scheduler is Idle. Job failures do not stop the run;
// they are returned joined once the queue drains. Cancelling ctx drops the
// active job and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	var failures []error
	for s.State() != Idle {
		err := s.Tick(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var jobErr *JobError
		if !errors.As(err, &jobErr) {
			return err
		}
		failures = append(failures, err)
	}
	return errors.Join(failures...)
}

// prepare pops the next job, loads its source and resets the accumulation buffer
func (s *Scheduler) prepare(ctx context.Context) error {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.state = Idle
		s.mu.Unlock()
		return nil
	}
	job := s.queue[0]
	s.queue = s.queue[1:]
	a := &activeJob{job: job, started: time.Now()}
	s.active = a
	s.mu.Unlock()

	if s.hooks.JobStarted != nil {
		s.hooks.JobStarted(job)
	}
	s.logger.Printf("Job %s: %s %v %dx%d, %d frames x %d samples (roughness %.3f)\n",
		job.ID, job.Convolution, job.Projection, job.Size, job.Size, job.SampleCount, job.KernelSamples, job.Roughness)

	var source kernel.Source
	if !job.Debug {
		img, err := s.loadSource(ctx)
		if err != nil {
			return s.fail(a, fmt.Errorf("%w: %w", ErrInputUnavailable, err))
		}
		source = img
	}

	if err := s.buffer.Reset(job.Size, job.SampleCount); err != nil {
		return s.fail(a, err)
	}
	a.shade = newShader(job, source)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == a {
		s.state = Accumulating
	}
	return nil
}

func (s *Scheduler) loadSource(ctx context.Context) (*envmap.Image, error) {
	if s.input == nil {
		return nil, errors.New("no input provider")
	}
	img, err := s.input.Load(ctx)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New("input provider returned no image")
	}
	return img, nil
}

// newShader binds a job's projection and convolution into a per-texel function
func newShader(job Job, source kernel.Source) renderer.Shader {
	params := kernel.Params{
		Mode:      job.Convolution,
		Roughness: job.Roughness,
		Samples:   job.KernelSamples,
		Debug:     job.Debug,
	}
	return func(uv core.Vec2) (core.Vec3, bool) {
		result := kernel.Evaluate(projection.Ray(uv, job.Projection), params, source)
		return result.Color, result.Degenerate
	}
}

// accumulate renders the next frame of the active job
func (s *Scheduler) accumulate(a *activeJob) error {
	if a == nil {
		return nil
	}

	// frame and stats are only written here, but Cancel reads them under mu
	s.mu.Lock()
	frame := a.frame
	s.mu.Unlock()

	stats, err := s.buffer.Frame(frame, a.shade)
	if err != nil {
		return s.fail(a, err)
	}

	s.mu.Lock()
	a.stats.Add(stats)
	a.frame++
	if s.active == a && a.frame == a.job.SampleCount {
		s.state = Emitting
	}
	s.mu.Unlock()

	if s.hooks.FrameDone != nil {
		s.hooks.FrameDone(a.job, frame, stats)
	}
	return nil
}

// emit reads back the finished image and hands it to the sink
func (s *Scheduler) emit(a *activeJob) error {
	if a == nil {
		return nil
	}
	s.mu.Lock()
	cancelled := s.active != a
	s.mu.Unlock()
	if cancelled {
		return nil
	}

	img, err := s.buffer.Result()
	if err != nil {
		return s.fail(a, err)
	}
	job, img := ApplyConvention(s.config.Convention, a.job, img)

	if s.sink != nil {
		if err := s.sink.Emit(job, img); err != nil {
			return s.fail(a, fmt.Errorf("%w: %w", ErrSinkFailed, err))
		}
	}

	s.mu.Lock()
	frameStats := a.stats
	s.mu.Unlock()

	stats := JobStats{
		Job:              job,
		Frames:           frameStats.Frames,
		Texels:           frameStats.Texels,
		DegenerateTexels: frameStats.DegenerateTexels,
		Duration:         time.Since(a.started),
	}
	s.logger.Printf("Job %s completed in %v (%d degenerate texels)\n", job.ID, stats.Duration, stats.DegenerateTexels)
	if s.hooks.JobCompleted != nil {
		s.hooks.JobCompleted(stats)
	}

	s.finish(a)
	return nil
}

// fail records a job failure and advances past it
func (s *Scheduler) fail(a *activeJob, err error) error {
	jobErr := &JobError{Job: a.job, Err: err}
	s.logger.Printf("Job %s failed: %v\n", a.job.ID, err)
	if s.hooks.JobFailed != nil {
		s.hooks.JobFailed(jobErr)
	}
	s.finish(a)
	return jobErr
}

// finish discards a if it is still the active job
func (s *Scheduler) finish(a *activeJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != a {
		return
	}
	s.active = nil
	s.advanceLocked()
}
