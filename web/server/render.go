package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/df07/go-envmap-prefilter/pkg/core"
	"github.com/df07/go-envmap-prefilter/pkg/kernel"
	"github.com/df07/go-envmap-prefilter/pkg/projection"
	"github.com/df07/go-envmap-prefilter/pkg/scheduler"
)

// PrefilterRequest represents a prefilter request from the client
type PrefilterRequest struct {
	Source        string               // Entry in the sources directory
	Mode          string               // "convert", "diffuse", "specular" or "prefilter"
	IDs           []string             // Output identifiers for "convert"
	Size          int                  // Output size (mip 0 for specular chains)
	DiffuseSize   int                  // Diffuse face size
	Samples       int                  // Anti-aliasing frames per image
	KernelSamples int                  // Monte-Carlo samples per texel and frame
	Levels        int                  // Specular mip levels (0 = full chain)
	Convention    scheduler.Convention // Cube face convention of the target
	Debug         bool                 // Render ray directions instead of the source
}

// ImageUpdate is sent via SSE for every finished output image
type ImageUpdate struct {
	ID         string  `json:"id"`
	Projection string  `json:"projection"`
	Size       int     `json:"size"`
	MipLevel   int     `json:"mipLevel"`
	Roughness  float64 `json:"roughness"`
	ImageData  string  `json:"imageData"` // Base64 encoded PNG
}

// JobStatsUpdate reports the statistics of a completed job
type JobStatsUpdate struct {
	ID               string `json:"id"`
	Frames           int    `json:"frames"`
	Texels           int    `json:"texels"`
	DegenerateTexels int    `json:"degenerateTexels"`
	ElapsedMs        int64  `json:"elapsedMs"`
}

// JobFailedUpdate reports a job that produced no image
type JobFailedUpdate struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// CompleteUpdate closes a prefilter session
type CompleteUpdate struct {
	RenderID  string `json:"renderId"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "image", "jobStats", "jobFailed", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// handlePrefilter runs a batch of prefilter jobs and streams the results via SSE
func (s *Server) handlePrefilter(w http.ResponseWriter, r *http.Request) {
	s.setSSEHeaders(w)

	ctx := r.Context()

	// Create unified SSE event channel for thread-safe writing
	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(w, ctx, sseEventChan)
	}()
	defer func() {
		close(sseEventChan)
		<-writerDone
	}()

	req, err := s.parsePrefilterRequest(r)
	if err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	var input scheduler.InputProvider
	if !req.Debug || req.Source != "" {
		p, err := s.provider(req.Source)
		if err != nil {
			s.handleError(ctx, sseEventChan, err.Error())
			return
		}
		input = p
	}

	renderID := uuid.NewString()
	consoleChan := make(chan ConsoleMessage, 50)
	webLogger := NewWebLogger(renderID, consoleChan)

	var consoleWG sync.WaitGroup
	consoleWG.Add(1)
	go func() {
		defer consoleWG.Done()
		s.streamConsoleMessages(ctx, consoleChan, sseEventChan)
	}()

	completed, failed, elapsed := s.runPrefilter(ctx, req, input, webLogger, sseEventChan)

	// The scheduler has stopped logging; drain the console before completing
	close(consoleChan)
	consoleWG.Wait()

	if ctx.Err() != nil {
		return
	}
	s.sendEvent(ctx, sseEventChan, "complete", CompleteUpdate{
		RenderID:  renderID,
		Completed: completed,
		Failed:    failed,
		ElapsedMs: elapsed.Milliseconds(),
	})
}

// runPrefilter builds a scheduler for req, streams its images and stats, and
// returns once the queue has drained or ctx is done
func (s *Server) runPrefilter(ctx context.Context, req *PrefilterRequest, input scheduler.InputProvider,
	logger core.Logger, sseEventChan chan SSEEvent) (completed, failed int, elapsed time.Duration) {

	config := scheduler.DefaultConfig()
	config.KernelSamples = req.KernelSamples
	config.DiffuseSize = req.DiffuseSize
	config.Convention = req.Convention

	sink := scheduler.SinkFunc(func(job scheduler.Job, img *image.RGBA) error {
		imageData, err := s.imageToBase64PNG(img)
		if err != nil {
			return fmt.Errorf("failed to encode image: %w", err)
		}
		s.sendEvent(ctx, sseEventChan, "image", ImageUpdate{
			ID:         job.ID,
			Projection: job.Projection.String(),
			Size:       job.Size,
			MipLevel:   job.MipLevel,
			Roughness:  job.Roughness,
			ImageData:  imageData,
		})
		return nil
	})

	sched := scheduler.New(config, input, sink, logger)
	defer sched.Close()

	sched.SetHooks(scheduler.Hooks{
		JobCompleted: func(stats scheduler.JobStats) {
			completed++
			s.sendEvent(ctx, sseEventChan, "jobStats", JobStatsUpdate{
				ID:               stats.Job.ID,
				Frames:           stats.Frames,
				Texels:           stats.Texels,
				DegenerateTexels: stats.DegenerateTexels,
				ElapsedMs:        stats.Duration.Milliseconds(),
			})
		},
		JobFailed: func(err *scheduler.JobError) {
			failed++
			s.sendEvent(ctx, sseEventChan, "jobFailed", JobFailedUpdate{
				ID:    err.Job.ID,
				Error: err.Err.Error(),
			})
		},
	})

	if err := submitJobs(sched, req); err != nil {
		s.handleError(ctx, sseEventChan, err.Error())
		return 0, 0, 0
	}
	logger.Printf("Queued %d jobs from %q\n", sched.QueueLen(), req.Source)

	startTime := time.Now()
	// Job failures are reported through the hooks
	_ = sched.Run(ctx)
	return completed, failed, time.Since(startTime)
}

// submitJobs enqueues the jobs described by req
func submitJobs(sched *scheduler.Scheduler, req *PrefilterRequest) error {
	switch req.Mode {
	case "convert":
		for _, id := range req.IDs {
			mode, err := projection.ParseIdentifier(id)
			if err != nil {
				return err
			}
			err = sched.Enqueue(scheduler.Job{
				ID:          id,
				Size:        req.Size,
				SampleCount: req.Samples,
				Convolution: kernel.Reproject,
				Projection:  mode,
				Debug:       req.Debug,
			})
			if err != nil {
				return err
			}
		}
		return nil
	case "diffuse":
		return sched.SubmitDiffuseSet(req.Samples)
	case "specular":
		return sched.SubmitMipChainLevels(req.Size, req.Levels, req.Samples)
	case "prefilter":
		if err := sched.SubmitDiffuseSet(req.Samples); err != nil {
			return err
		}
		return sched.SubmitMipChainLevels(req.Size, req.Levels, req.Samples)
	default:
		return fmt.Errorf("unknown mode: %s", req.Mode)
	}
}

// parsePrefilterRequest parses request parameters
func (s *Server) parsePrefilterRequest(r *http.Request) (*PrefilterRequest, error) {
	query := r.URL.Query()
	req := &PrefilterRequest{
		Source: query.Get("source"),
		Mode:   query.Get("mode"),
	}
	if req.Mode == "" {
		req.Mode = "prefilter"
	}

	var err error
	if req.Size, err = parseIntParam(query, "size", 128, scheduler.MinSize, 2048); err != nil {
		return nil, err
	}
	if req.DiffuseSize, err = parseIntParam(query, "diffuseSize", scheduler.DefaultConfig().DiffuseSize, scheduler.MinSize, 512); err != nil {
		return nil, err
	}
	if req.Samples, err = parseIntParam(query, "samples", 1, 1, 64); err != nil {
		return nil, err
	}
	if req.KernelSamples, err = parseIntParam(query, "kernelSamples", 256, 1, 4096); err != nil {
		return nil, err
	}
	if req.Levels, err = parseIntParam(query, "levels", 0, 0, 16); err != nil {
		return nil, err
	}
	if req.Levels == 0 {
		req.Levels = scheduler.MipCount(req.Size)
	}
	if req.Convention, err = scheduler.ParseConvention(query.Get("convention")); err != nil {
		return nil, err
	}
	if req.Debug, err = parseBoolParam(query, "debug"); err != nil {
		return nil, err
	}

	if ids := query.Get("ids"); ids != "" {
		req.IDs = strings.Split(ids, ",")
	} else {
		for _, face := range projection.Faces() {
			req.IDs = append(req.IDs, projection.Mode{Family: projection.Cube, Face: face}.String())
		}
	}

	if req.Debug && req.Mode != "convert" {
		return nil, fmt.Errorf("debug is only supported in convert mode")
	}

	// Performance warning
	if req.Size >= 1024 && req.KernelSamples > 1024 && req.Mode != "convert" {
		logger.Warningf("Prefilter warning: large maps with high kernel samples may render slowly")
	}

	return req, nil
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents writes all SSE events in a single goroutine until the
// channel is closed or the client disconnects
func (s *Server) writeSSEEvents(w http.ResponseWriter, ctx context.Context, sseEventChan chan SSEEvent) {
	for {
		select {
		case event, ok := <-sseEventChan:
			if !ok {
				return
			}

			// Check if client is still connected before writing
			if ctx.Err() != nil {
				continue
			}

			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
				continue
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-ctx.Done():
			// Client disconnected; keep draining so senders never block
			for range sseEventChan {
			}
			return
		}
	}
}

// streamConsoleMessages forwards console messages to the SSE channel until
// consoleChan is closed
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan chan ConsoleMessage, sseEventChan chan SSEEvent) {
	for consoleMsg := range consoleChan {
		data, err := json.Marshal(consoleMsg)
		if err != nil {
			logger.Warningf("Error marshaling console message: %v", err)
			continue
		}

		select {
		case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
		case <-ctx.Done():
		}
	}
}

// sendEvent marshals v and queues it as an SSE event
func (s *Server) sendEvent(ctx context.Context, sseEventChan chan SSEEvent, eventType string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warningf("Error marshaling %s event: %v", eventType, err)
		return
	}

	select {
	case sseEventChan <- SSEEvent{Type: eventType, Data: string(data)}:
	case <-ctx.Done():
	}
}

// handleError sends an error event to the SSE channel
func (s *Server) handleError(ctx context.Context, sseEventChan chan SSEEvent, message string) {
	select {
	case sseEventChan <- SSEEvent{Type: "error", Data: message}:
	case <-ctx.Done():
		// Client disconnected, don't block
	}
}
