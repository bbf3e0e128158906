// Package render draws echograms from resolved query jobs and stores them as
// files named by their cache key.
package render

import (
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/echomap/internal/constants"
)

// Job is everything needed to draw one echogram. Values is [ping][depth] and
// lines up with Times and Depths. NaN cells are left blank.
type Job struct {
	// Key names the artifact. It holds only characters safe in a file name.
	Key      string
	Title    string
	Subtitle string
	Channel  string

	Times  []time.Time
	Depths []float64
	Values [][]float64

	VMin, VMax float64
}

// Format is an output artifact type.
type Format string

const (
	FormatHTML Format = "html"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpg"
)

// Renderer draws a job into w.
type Renderer interface {
	Render(job *Job, w io.Writer) error
	// ContentType is the MIME type of the output.
	ContentType() string
}

func (j *Job) validate() error {
	if len(j.Values) != len(j.Times) {
		return fmt.Errorf("render: job %s has %d value rows for %d pings", j.Key, len(j.Values), len(j.Times))
	}
	if len(j.Values) == 0 {
		return fmt.Errorf("render: job %s has no pings", j.Key)
	}
	for i, row := range j.Values {
		if len(row) != len(j.Depths) {
			return fmt.Errorf("render: job %s row %d has %d values for %d depths", j.Key, i, len(row), len(j.Depths))
		}
	}
	if !(j.VMin < j.VMax) {
		return fmt.Errorf("render: job %s has an empty colour scale [%v, %v]", j.Key, j.VMin, j.VMax)
	}
	return nil
}

// parseHex reads a "#RRGGBB" colour.
func parseHex(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("render: colour %q is not #RRGGBB", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("render: colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// svPalette implements palette.Palette over the echogram colour map.
type svPalette []color.Color

func (p svPalette) Colors() []color.Color { return p }

func echogramPalette() svPalette {
	p := make(svPalette, 0, len(constants.EchogramColors))
	for _, s := range constants.EchogramColors {
		c, err := parseHex(s)
		if err != nil {
			panic(err) // the colour table is a constant
		}
		p = append(p, c)
	}
	return p
}
