package render

import (
	"bytes"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/chrissnell/echomap/internal/constants"
)

// DefaultMaxCells bounds the number of points placed in an HTML echogram.
const DefaultMaxCells = 200000

// HTMLRenderer draws an interactive echogram as a coloured scatter of
// (time, depth, Sv) cells. Depth is plotted downward as negative metres.
type HTMLRenderer struct {
	Width, Height string
	// AssetsHost overrides where the page loads echarts from.
	AssetsHost string
	// MaxCells thins long windows by skipping pings. Zero means DefaultMaxCells.
	MaxCells int
}

func (r *HTMLRenderer) ContentType() string { return "text/html; charset=utf-8" }

func (r *HTMLRenderer) Render(job *Job, w io.Writer) error {
	if err := job.validate(); err != nil {
		return err
	}

	maxCells := r.MaxCells
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}
	stride := 1
	if cells := len(job.Times) * len(job.Depths); cells > maxCells {
		stride = int(math.Ceil(float64(cells) / float64(maxCells)))
	}

	data := make([]opts.ScatterData, 0, len(job.Times)*len(job.Depths)/stride+1)
	for p := 0; p < len(job.Times); p += stride {
		ms := job.Times[p].UnixMilli()
		for d, depth := range job.Depths {
			sv := job.Values[p][d]
			if math.IsNaN(sv) || math.IsInf(sv, 0) {
				continue
			}
			data = append(data, opts.ScatterData{Value: []interface{}{ms, -depth, sv}})
		}
	}

	maxDepth := 0.0
	for _, d := range job.Depths {
		maxDepth = math.Max(maxDepth, d)
	}

	initOpts := opts.Initialization{PageTitle: job.Title, Width: r.Width, Height: r.Height}
	if r.AssetsHost != "" {
		initOpts.AssetsHost = r.AssetsHost
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: job.Title, Subtitle: job.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time", Name: "Ping time (UTC)", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Min: -maxDepth, Max: 0, Name: "Depth (m)", NameLocation: "middle", NameGap: 40}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(job.VMin),
			Max:        float32(job.VMax),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: constants.EchogramColors},
		}),
	)
	scatter.AddSeries(job.Channel, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
