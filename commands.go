package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/df07/go-envmap-prefilter/pkg/envmap"
	"github.com/df07/go-envmap-prefilter/pkg/kernel"
	"github.com/df07/go-envmap-prefilter/pkg/loaders"
	"github.com/df07/go-envmap-prefilter/pkg/log"
	"github.com/df07/go-envmap-prefilter/pkg/projection"
	"github.com/df07/go-envmap-prefilter/pkg/renderer"
	"github.com/df07/go-envmap-prefilter/pkg/scheduler"
)

var logger = log.New("envmap-prefilter")

var errNoSource = errors.New("no source: pass --source, --cube or --gradient")

// setupLogging sets the log level from the global verbosity flags
func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	} else if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}
}

// gradientWidth is the panorama width procedural skies are baked at
const gradientWidth = 512

// newInputProvider returns the provider selected by the source flags, or nil
// when none was given
func newInputProvider(ctx *cli.Context) (*loaders.FileProvider, error) {
	source, cube, gradient := ctx.String("source"), ctx.String("cube"), ctx.String("gradient")

	selected := 0
	for _, s := range []string{source, cube, gradient} {
		if s != "" {
			selected++
		}
	}
	if selected > 1 {
		return nil, errors.New("--source, --cube and --gradient are mutually exclusive")
	}

	switch {
	case source != "":
		return loaders.NewEquirectProvider(source, log.NewPrintfLogger("loaders")), nil
	case cube != "":
		return loaders.NewCubeDirProvider(cube), nil
	case gradient != "":
		g, err := envmap.ParseGradient(gradient)
		if err != nil {
			return nil, err
		}
		return loaders.NewGradientProvider(g, gradientWidth), nil
	}
	return nil, nil
}

// newOutputSink returns a zip or directory sink for --out and a function
// that finalizes it
func newOutputSink(ctx *cli.Context) (scheduler.OutputSink, func() error, error) {
	out := ctx.String("out")
	if strings.EqualFold(filepath.Ext(out), ".zip") {
		zs, err := loaders.CreateZipSink(out)
		if err != nil {
			return nil, nil, err
		}
		return zs, zs.Close, nil
	}

	ds, err := loaders.NewDirectorySink(out, log.NewPrintfLogger("loaders"))
	if err != nil {
		return nil, nil, err
	}
	return ds, func() error { return nil }, nil
}

func schedulerConfig(ctx *cli.Context) (scheduler.Config, error) {
	convention, err := scheduler.ParseConvention(ctx.String("convention"))
	if err != nil {
		return scheduler.Config{}, err
	}

	config := scheduler.DefaultConfig()
	config.KernelSamples = ctx.Int("kernel-samples")
	config.Workers = ctx.Int("workers")
	config.TileSize = ctx.Int("tile-size")
	config.Convention = convention
	if ctx.IsSet("diffuse-size") {
		config.DiffuseSize = ctx.Int("diffuse-size")
	} else if ctx.Command.Name == "diffuse" {
		config.DiffuseSize = ctx.Int("size")
	}
	return config, nil
}

// runJobs builds a scheduler from the command flags, lets submit enqueue its
// jobs and runs the queue to completion
func runJobs(ctx *cli.Context, requireSource bool, submit func(s *scheduler.Scheduler) error) error {
	setupLogging(ctx)

	input, err := newInputProvider(ctx)
	if err != nil {
		return err
	}
	if input == nil && requireSource {
		return errNoSource
	}

	config, err := schedulerConfig(ctx)
	if err != nil {
		return err
	}

	sink, closeSink, err := newOutputSink(ctx)
	if err != nil {
		return err
	}

	var in scheduler.InputProvider
	if input != nil {
		in = input
	}
	s := scheduler.New(config, in, sink, log.NewPrintfLogger("scheduler"))
	defer s.Close()

	var completed []scheduler.JobStats
	s.SetHooks(scheduler.Hooks{
		JobStarted: func(job scheduler.Job) {
			logger.Infof("rendering %s (%dx%d, %d frames)", job.ID, job.Size, job.Size, job.SampleCount)
		},
		FrameDone: func(job scheduler.Job, frame int, stats renderer.FrameStats) {
			logger.Debugf("%s: frame %d/%d in %v", job.ID, frame+1, job.SampleCount, stats.Duration)
		},
		JobCompleted: func(stats scheduler.JobStats) {
			completed = append(completed, stats)
		},
		JobFailed: func(err *scheduler.JobError) {
			logger.Errorf("%v", err)
		},
	})

	if err := submit(s); err != nil {
		closeSink()
		return err
	}
	logger.Noticef("rendering %d images (workers: %d)", s.QueueLen(), config.Workers)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	runErr := s.Run(runCtx)
	closeErr := closeSink()

	if len(completed) > 0 {
		displayJobStats(completed)
	}
	logger.Noticef("wrote %d images to %s in %v", len(completed), ctx.String("out"), time.Since(start))

	return errors.Join(runErr, closeErr)
}

// convert renders reprojections of the source
func convert(ctx *cli.Context) error {
	ids := []string(ctx.Args())
	if len(ids) == 0 {
		family, err := projection.ParseFamily(ctx.String("family"))
		if err != nil {
			return err
		}
		for _, face := range projection.Faces() {
			ids = append(ids, projection.Mode{Family: family, Face: face}.String())
		}
	}

	debug := ctx.Bool("debug")
	size, samples := ctx.Int("size"), ctx.Int("samples")
	return runJobs(ctx, !debug, func(s *scheduler.Scheduler) error {
		for _, id := range ids {
			if !debug {
				if err := s.SubmitConversion(id, size, samples); err != nil {
					return err
				}
				continue
			}

			mode, err := projection.ParseIdentifier(id)
			if err != nil {
				return err
			}
			err = s.Enqueue(scheduler.Job{
				ID:          id,
				Size:        size,
				SampleCount: samples,
				Convolution: kernel.Reproject,
				Projection:  mode,
				Debug:       true,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// specular renders the specular mip chain
func specular(ctx *cli.Context) error {
	size, levels, samples := ctx.Int("size"), ctx.Int("levels"), ctx.Int("samples")
	if levels == 0 {
		levels = scheduler.MipCount(scheduler.ClampSize(size))
	}
	return runJobs(ctx, true, func(s *scheduler.Scheduler) error {
		return s.SubmitMipChainLevels(size, levels, samples)
	})
}

// diffuse renders the diffuse irradiance cubemap
func diffuse(ctx *cli.Context) error {
	samples := ctx.Int("samples")
	return runJobs(ctx, true, func(s *scheduler.Scheduler) error {
		return s.SubmitDiffuseSet(samples)
	})
}

// prefilter renders the diffuse set followed by the full specular chain
func prefilter(ctx *cli.Context) error {
	size, samples := ctx.Int("size"), ctx.Int("samples")
	return runJobs(ctx, true, func(s *scheduler.Scheduler) error {
		if err := s.SubmitDiffuseSet(samples); err != nil {
			return err
		}
		return s.SubmitMipChain(size, samples)
	})
}

// inspect prints source information or the lookup behind one texel
func inspect(ctx *cli.Context) error {
	setupLogging(ctx)

	input, err := newInputProvider(ctx)
	if err != nil {
		return err
	}
	if input == nil {
		return errNoSource
	}
	img, err := input.Load(context.Background())
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if id := ctx.String("id"); id != "" {
		mode, err := projection.ParseIdentifier(id)
		if err != nil {
			return err
		}
		info, err := img.Inspect(mode, ctx.Int("size"), ctx.Int("x"), ctx.Int("y"))
		if err != nil {
			return err
		}
		writeTexelInfo(&buf, img, info)
	} else {
		writeSourceInfo(&buf, img)
	}

	fmt.Fprint(ctx.App.Writer, buf.String())
	return nil
}

func newTable(buf *bytes.Buffer) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	return table
}

func writeSourceInfo(buf *bytes.Buffer, img *envmap.Image) {
	table := newTable(buf)
	table.SetHeader([]string{"Property", "Value"})
	table.Append([]string{"Layout", img.Layout().String()})
	table.Append([]string{"Size", fmt.Sprintf("%dx%d", img.Width(), img.Height())})
	table.Append([]string{"Faces", fmt.Sprintf("%d", img.NumFaces())})
	table.Append([]string{"Max specular mips", fmt.Sprintf("%d", scheduler.MipCount(img.Height()))})
	table.Render()
}

func writeTexelInfo(buf *bytes.Buffer, img *envmap.Image, info envmap.TexelInfo) {
	source := fmt.Sprintf("(%.4f, %.4f)", info.SourceU, info.SourceV)
	if img.Layout() == envmap.Cubemap {
		source = fmt.Sprintf("%v %s", info.SourceFace, source)
	}

	table := newTable(buf)
	table.SetHeader([]string{"Property", "Value"})
	table.Append([]string{"Projection", info.Mode.String()})
	table.Append([]string{"Texel", fmt.Sprintf("(%d, %d)", info.X, info.Y)})
	table.Append([]string{"UV", fmt.Sprintf("(%.4f, %.4f)", info.UV.X, info.UV.Y)})
	table.Append([]string{"Direction", fmt.Sprintf("(%.4f, %.4f, %.4f)", info.Direction.X, info.Direction.Y, info.Direction.Z)})
	table.Append([]string{"Source", source})
	table.Append([]string{"Color", fmt.Sprintf("#%02x%02x%02x", info.Color.R, info.Color.G, info.Color.B)})
	table.Render()
}

// displayJobStats logs a table with per-job statistics
func displayJobStats(stats []scheduler.JobStats) {
	var buf bytes.Buffer
	table := newTable(&buf)
	table.SetHeader([]string{"Job", "Size", "Frames", "Roughness", "Texels", "Degenerate", "Time"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	var total time.Duration
	var texels, degenerate int
	for _, s := range stats {
		total += s.Duration
		texels += s.Texels
		degenerate += s.DegenerateTexels
		table.Append([]string{
			s.Job.ID,
			fmt.Sprintf("%d", s.Job.Size),
			fmt.Sprintf("%d", s.Frames),
			fmt.Sprintf("%.3f", s.Job.Roughness),
			fmt.Sprintf("%d", s.Texels),
			fmt.Sprintf("%d", s.DegenerateTexels),
			s.Duration.Round(time.Millisecond).String(),
		})
	}
	table.SetFooter([]string{
		"TOTAL", "", "", "",
		fmt.Sprintf("%d", texels),
		fmt.Sprintf("%d", degenerate),
		total.Round(time.Millisecond).String(),
	})
	table.Render()

	logger.Noticef("job statistics\n%s", buf.String())
}
