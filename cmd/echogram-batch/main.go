package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chrissnell/echomap/internal/batch"
	"github.com/chrissnell/echomap/internal/constants"
	"github.com/chrissnell/echomap/internal/dataset"
	"github.com/chrissnell/echomap/internal/log"
	"github.com/chrissnell/echomap/internal/render"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [flags]

Commands:
  batch      Render PNG echograms for a set of pings and channels
  video      Render every ping of one channel as numbered video frames
  synthetic  Write a synthetic dataset file for demos and testing

Run '%s <command> -h' for the flags of a command.
`, os.Args[0], os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "batch":
		err = runBatch(ctx, os.Args[2:])
	case "video":
		err = runVideo(ctx, os.Args[2:])
	case "synthetic":
		err = runSynthetic(os.Args[2:])
	case "version", "-version", "--version":
		fmt.Printf("echogram-batch %s\n", constants.Version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// intList parses a comma-separated list of integers, e.g. "0,2,5".
type intList []int

func (l *intList) String() string {
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("%q is not an integer", part)
		}
		*l = append(*l, v)
	}
	return nil
}

type common struct {
	data, out  string
	vmin, vmax float64
	width      int
	height     int
	debug      bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.data, "data", "", "NetCDF dataset file (required)")
	fs.StringVar(&c.out, "out", "", "Output directory (required)")
	fs.Float64Var(&c.vmin, "vmin", constants.DefaultVMin, "Lower bound of the Sv colour scale (dB)")
	fs.Float64Var(&c.vmax, "vmax", constants.DefaultVMax, "Upper bound of the Sv colour scale (dB)")
	fs.IntVar(&c.width, "width", 1000, "Image width in pixels")
	fs.IntVar(&c.height, "height", 700, "Image height in pixels")
	fs.BoolVar(&c.debug, "debug", false, "Turn on debugging output")
}

func (c *common) setup(fs *flag.FlagSet) (*batch.Runner, error) {
	if c.data == "" || c.out == "" {
		fs.Usage()
		return nil, fmt.Errorf("-data and -out are required")
	}
	if err := log.Init(c.debug); err != nil {
		return nil, err
	}
	h := dataset.NewHandle(c.data, log.GetSugaredLogger())
	return batch.NewRunner(h, log.GetSugaredLogger()), nil
}

func defaultWorkers() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

func runBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	var c common
	c.register(fs)
	var channels, points intList
	fs.Var(&channels, "channels", "Comma-separated channel indices (default: all)")
	fs.Var(&points, "points", "Comma-separated ping indices (default: every -step-th ping)")
	step := fs.Int("step", 10, "Ping index step when -points is not given")
	workers := fs.Int("workers", defaultWorkers(), "Parallel render workers")
	fs.Parse(args)

	runner, err := c.setup(fs)
	if err != nil {
		return err
	}
	opts := batch.Options{
		Step:    *step,
		VMin:    c.vmin,
		VMax:    c.vmax,
		Workers: *workers,
		Format:  render.FormatPNG,
		Width:   c.width,
		Height:  c.height,
	}
	if len(channels) > 0 {
		opts.Channels = channels
	}
	if len(points) > 0 {
		opts.Points = points
	}

	start := time.Now()
	res, err := runner.Echograms(ctx, c.out, opts)
	fmt.Printf("Done: %d/%d echograms rendered in %v\n", res.Succeeded, res.Total, time.Since(start).Round(time.Millisecond))
	return err
}

func runVideo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("video", flag.ExitOnError)
	var c common
	c.register(fs)
	channel := fs.Int("channel", 0, "Channel index to render")
	format := fs.String("format", "png", "Frame image format: png or jpg")
	workers := fs.Int("workers", defaultWorkers(), "Parallel render workers")
	fs.Parse(args)

	f := render.Format(*format)
	if f != render.FormatPNG && f != render.FormatJPEG {
		return fmt.Errorf("-format must be png or jpg, got %q", *format)
	}
	runner, err := c.setup(fs)
	if err != nil {
		return err
	}

	framesDir, res, err := runner.VideoFrames(ctx, c.out, *channel, batch.Options{
		VMin:    c.vmin,
		VMax:    c.vmax,
		Workers: *workers,
		Format:  f,
		Width:   c.width,
		Height:  c.height,
	})
	if err != nil && res.Total == 0 {
		return err
	}
	fmt.Printf("Done: %d/%d frames rendered\n", res.Succeeded, res.Total)
	fmt.Println("\nTo assemble a video, run:")
	fmt.Println(batch.FFmpegCommand(framesDir, c.out, *channel, f))
	return err
}

func runSynthetic(args []string) error {
	fs := flag.NewFlagSet("synthetic", flag.ExitOnError)
	out := fs.String("out", "synthetic.nc", "Output NetCDF file")
	pings := fs.Int("pings", 500, "Number of pings")
	ranges := fs.Int("ranges", 200, "Number of depth bins")
	step := fs.Float64("range-step", 0.5, "Depth bin spacing (m)")
	interval := fs.Duration("interval", 10*time.Second, "Time between pings")
	channels := fs.String("channels", "GPT  18 kHz,GPT  38 kHz,GPT 120 kHz", "Comma-separated channel labels")
	noPosition := fs.Bool("no-position", false, "Omit latitude and longitude")
	fs.Parse(args)

	d, err := dataset.Synthetic(dataset.SyntheticSurvey{
		Pings:      *pings,
		Channels:   strings.Split(*channels, ","),
		Ranges:     *ranges,
		RangeStep:  *step,
		Interval:   *interval,
		NoPosition: *noPosition,
	})
	if err != nil {
		return err
	}
	if err := dataset.Write(*out, d); err != nil {
		return err
	}
	fmt.Printf("Wrote %s: %d pings, %d channels, %d depth bins\n", *out, d.NumPings(), d.NumChannels(), d.NumRanges())
	return nil
}
