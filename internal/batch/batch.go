// Package batch renders echograms for many pings at once, for offline
// browsing or as animation frames.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chrissnell/echomap/internal/query"
	"github.com/chrissnell/echomap/internal/render"
	"github.com/chrissnell/echomap/internal/selector"
	"go.uber.org/zap"
)

// SummaryFile is written next to the batch output.
const SummaryFile = "dataset_summary.json"

// Options controls a batch run.
type Options struct {
	// Channels to render; nil means every channel. Out-of-range indices are
	// dropped.
	Channels []int
	// Points to render; nil means every Step-th ping. Out-of-range indices
	// are dropped.
	Points []int
	Step   int

	VMin, VMax float64
	Workers    int
	Format     render.Format
	Width      int
	Height     int
}

// Failure records an echogram that could not be produced.
type Failure struct {
	Point, Channel int
	Err            error
}

// Result counts the echograms of a run.
type Result struct {
	Total     int
	Succeeded int
	Failures  []Failure
}

// Runner renders echograms straight from the query service, bypassing the
// server's artifact cache so file names follow the batch layout.
type Runner struct {
	src    query.DatasetSource
	svc    *query.Service
	logger *zap.SugaredLogger
}

// NewRunner creates a runner over src. Payload caching is disabled since
// every job is used once.
func NewRunner(src query.DatasetSource, logger *zap.SugaredLogger) *Runner {
	return &Runner{
		src:    src,
		svc:    query.NewService(src, logger, query.WithCacheEntries(-1)),
		logger: logger,
	}
}

type task struct {
	point, channel int
	path           string
}

func filterIndices(idx []int, n int) []int {
	var out []int
	for _, i := range idx {
		if i >= 0 && i < n {
			out = append(out, i)
		}
	}
	return out
}

func span(n, step int) []int {
	if step < 1 {
		step = 1
	}
	out := make([]int, 0, (n+step-1)/step)
	for i := 0; i < n; i += step {
		out = append(out, i)
	}
	return out
}

func (o Options) renderer() *render.ImageRenderer {
	f := o.Format
	if f == "" {
		f = render.FormatPNG
	}
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 1000
	}
	if h <= 0 {
		h = 700
	}
	return &render.ImageRenderer{Width: w, Height: h, Format: f}
}

// Echograms renders one image per (point, channel) pair into outDir as
// echogram_point%04d_channel%d.<ext> and writes the dataset summary.
func (r *Runner) Echograms(ctx context.Context, outDir string, opts Options) (Result, error) {
	d, err := r.src.Get()
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating output directory: %w", err)
	}
	if err := r.writeSummary(filepath.Join(outDir, SummaryFile)); err != nil {
		return Result{}, err
	}

	channels := span(d.NumChannels(), 1)
	if opts.Channels != nil {
		channels = filterIndices(opts.Channels, d.NumChannels())
	}
	points := span(d.NumPings(), opts.Step)
	if opts.Points != nil {
		points = filterIndices(opts.Points, d.NumPings())
	}

	rd := opts.renderer()
	var tasks []task
	for _, p := range points {
		for _, c := range channels {
			tasks = append(tasks, task{
				point:   p,
				channel: c,
				path:    filepath.Join(outDir, fmt.Sprintf("echogram_point%04d_channel%d.%s", p, c, rd.Format)),
			})
		}
	}
	r.logger.Infow("rendering echograms", "channels", len(channels), "points", len(points), "workers", opts.Workers)
	return r.run(ctx, tasks, rd, opts)
}

// VideoFrames renders every ping of one channel into
// <outDir>/channel<c>_frames/frame_%04d.<ext>. It returns the frames
// directory.
func (r *Runner) VideoFrames(ctx context.Context, outDir string, channel int, opts Options) (string, Result, error) {
	d, err := r.src.Get()
	if err != nil {
		return "", Result{}, err
	}
	if channel < 0 || channel >= d.NumChannels() {
		return "", Result{}, &selector.IndexOutOfRangeError{Dimension: "channel", Index: channel, Length: d.NumChannels()}
	}
	framesDir := filepath.Join(outDir, fmt.Sprintf("channel%d_frames", channel))
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return "", Result{}, fmt.Errorf("creating frames directory: %w", err)
	}

	rd := opts.renderer()
	tasks := make([]task, d.NumPings())
	for p := range tasks {
		tasks[p] = task{
			point:   p,
			channel: channel,
			path:    filepath.Join(framesDir, fmt.Sprintf("frame_%04d.%s", p, rd.Format)),
		}
	}
	r.logger.Infow("rendering video frames", "channel", d.Channels()[channel], "frames", len(tasks))
	res, err := r.run(ctx, tasks, rd, opts)
	return framesDir, res, err
}

// FFmpegCommand is the command line that assembles frames into a video.
func FFmpegCommand(framesDir, outDir string, channel int, f render.Format) string {
	return fmt.Sprintf("ffmpeg -framerate 10 -i %s/frame_%%04d.%s -c:v libx264 -pix_fmt yuv420p -crf 23 %s/channel%d_echogram.mp4",
		framesDir, f, outDir, channel)
}

func (r *Runner) writeSummary(path string) error {
	s, err := r.svc.Summary()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// run executes tasks on a bounded pool of workers. A cancelled context stops
// new tasks from starting; tasks never started count as failures.
func (r *Runner) run(ctx context.Context, tasks []task, rd render.Renderer, opts Options) (Result, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	res := Result{Total: len(tasks)}
	var mu sync.Mutex
	queue := make(chan task)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range queue {
				err := r.renderOne(t, rd, opts)
				mu.Lock()
				if err != nil {
					r.logger.Warnw("echogram failed", "point", t.point, "channel", t.channel, "error", err)
					res.Failures = append(res.Failures, Failure{Point: t.point, Channel: t.channel, Err: err})
				} else {
					res.Succeeded++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for i, t := range tasks {
		select {
		case queue <- t:
		case <-ctx.Done():
			mu.Lock()
			for _, skipped := range tasks[i:] {
				res.Failures = append(res.Failures, Failure{Point: skipped.point, Channel: skipped.channel, Err: ctx.Err()})
			}
			mu.Unlock()
			break feed
		}
	}
	close(queue)
	wg.Wait()

	return res, ctx.Err()
}

func (r *Runner) renderOne(t task, rd render.Renderer, opts Options) error {
	job, err := r.svc.RenderJob(selector.Selection{PointIndex: t.point, ChannelIndex: t.channel}, opts.VMin, opts.VMax)
	if err != nil {
		return err
	}
	fh, err := os.Create(t.path)
	if err != nil {
		return err
	}
	if err := rd.Render(job, fh); err != nil {
		fh.Close()
		os.Remove(t.path)
		return err
	}
	return fh.Close()
}
