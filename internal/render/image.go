package render

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ImageRenderer draws a static echogram heat map with gonum/plot.
type ImageRenderer struct {
	// Width and Height are in pixels at the default 96 dpi.
	Width, Height int
	// Format is FormatPNG or FormatJPEG.
	Format Format
}

func (r *ImageRenderer) ContentType() string {
	if r.Format == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// svGrid adapts a job to plotter.GridXYZ: columns are pings, rows are depth bins.
type svGrid struct {
	job *Job
}

func (g svGrid) Dims() (c, r int) { return len(g.job.Times), len(g.job.Depths) }

func (g svGrid) Z(c, r int) float64 { return g.job.Values[c][r] }

func (g svGrid) X(c int) float64 {
	return float64(g.job.Times[c].UnixNano()) / 1e9
}

func (g svGrid) Y(r int) float64 { return g.job.Depths[r] }

func (r *ImageRenderer) Render(job *Job, w io.Writer) error {
	if err := job.validate(); err != nil {
		return err
	}
	format := r.Format
	if format == "" {
		format = FormatPNG
	}
	if format != FormatPNG && format != FormatJPEG {
		return fmt.Errorf("render: unsupported image format %q", format)
	}

	p := plot.New()
	p.Title.Text = job.Title
	p.X.Label.Text = "Ping time (UTC)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}
	p.Y.Label.Text = "Depth (m)"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}

	pal := echogramPalette()
	hm := plotter.NewHeatMap(svGrid{job: job}, pal)
	hm.Min = job.VMin
	hm.Max = job.VMax
	hm.Underflow = pal[0]
	hm.Overflow = pal[len(pal)-1]
	hm.NaN = nil
	p.Add(hm)

	width := vg.Length(r.Width) * vg.Inch / 96
	height := vg.Length(r.Height) * vg.Inch / 96
	wt, err := p.WriterTo(width, height, string(format))
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
