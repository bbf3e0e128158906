package query

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/echomap/internal/dataset"
	"github.com/chrissnell/echomap/internal/safejson"
)

// Summary describes the extent of the dataset. Ranges are [min, max] over
// finite values, or null when a variable has none.
type Summary struct {
	Path           string         `json:"path"`
	Format         string         `json:"format"`
	TimeRange      safejson.Value `json:"time_range"`
	LatitudeRange  safejson.Value `json:"latitude_range"`
	LongitudeRange safejson.Value `json:"longitude_range"`
	DepthRange     safejson.Value `json:"depth_range"`
	SvRange        safejson.Value `json:"sv_range"`
	// SvMean is averaged in the linear domain and reported in dB.
	SvMean    safejson.Value `json:"sv_mean"`
	Channels  safejson.Value `json:"channels"`
	Pings     int            `json:"pings"`
	DepthBins int            `json:"depth_bins"`
}

// Summary computes dataset-wide statistics. It walks every Sv cell once; the
// result is cached.
func (s *Service) Summary() (*Summary, error) {
	d, err := s.dataset()
	if err != nil {
		return nil, err
	}
	v, err := s.cached("summary", func() (any, error) {
		return summarize(d), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Summary), nil
}

func summarize(d *dataset.Dataset) *Summary {
	sum := &Summary{
		Path:       d.Path(),
		Format:     d.Format(),
		DepthRange: finiteRange(d.EchoRange()),
		Channels:   safejson.Strings(d.Channels()),
		Pings:      d.NumPings(),
		DepthBins:  d.NumRanges(),
		TimeRange:  safejson.Null{},
	}
	if n := d.NumPings(); n > 0 {
		times := d.PingTimes()
		sum.TimeRange = safejson.Seq{safejson.Time(times[0]), safejson.Time(times[n-1])}
	}
	if d.HasPosition() {
		sum.LatitudeRange = finiteRange(d.Latitude())
		sum.LongitudeRange = finiteRange(d.Longitude())
	} else {
		sum.LatitudeRange = safejson.Null{}
		sum.LongitudeRange = safejson.Null{}
	}

	sv := finite(d.Sv().Elements)
	sum.SvRange = finiteRange(sv)
	sum.SvMean = safejson.Null{}
	if len(sv) > 0 {
		linear := make([]float64, len(sv))
		for i, x := range sv {
			linear[i] = math.Pow(10, x/10)
		}
		sum.SvMean = safejson.Float(10 * math.Log10(stat.Mean(linear, nil)))
	}
	return sum
}

func finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

func finiteRange(xs []float64) safejson.Value {
	vals := finite(xs)
	if len(vals) == 0 {
		return safejson.Null{}
	}
	return safejson.Seq{safejson.Float(floats.Min(vals)), safejson.Float(floats.Max(vals))}
}
