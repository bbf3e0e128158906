package dataset

import (
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
)

// SyntheticSurvey describes a generated survey used for fixtures and demos.
type SyntheticSurvey struct {
	Pings    int
	Channels []string
	Ranges   int
	// RangeStep is the depth bin spacing in metres.
	RangeStep float64
	Start     time.Time
	Interval  time.Duration
	// NoPosition omits latitude and longitude entirely.
	NoPosition bool
}

// Synthetic builds a dataset with a straight survey track and a scattering
// layer that deepens along the track. Sv below the seabed bin is NaN.
func Synthetic(survey SyntheticSurvey) (*Dataset, error) {
	if survey.Pings <= 0 || survey.Ranges <= 0 || len(survey.Channels) == 0 {
		return nil, fmt.Errorf("dataset: synthetic dataset needs pings, ranges and channels")
	}
	if survey.RangeStep == 0 {
		survey.RangeStep = 1
	}
	if survey.Interval == 0 {
		survey.Interval = time.Second
	}
	if survey.Start.IsZero() {
		survey.Start = time.Date(2019, 7, 2, 0, 0, 0, 0, time.UTC)
	}

	g := Grid{
		PingTime:  make([]time.Time, survey.Pings),
		Channels:  append([]string(nil), survey.Channels...),
		EchoRange: make([]float64, survey.Ranges),
		Sv:        sparse.ZerosDense(len(survey.Channels), survey.Pings, survey.Ranges),
	}
	for i := range g.PingTime {
		g.PingTime[i] = survey.Start.Add(time.Duration(i) * survey.Interval)
	}
	for r := range g.EchoRange {
		g.EchoRange[r] = float64(r) * survey.RangeStep
	}
	if !survey.NoPosition {
		g.Latitude = make([]float64, survey.Pings)
		g.Longitude = make([]float64, survey.Pings)
		for i := 0; i < survey.Pings; i++ {
			g.Latitude[i] = 36.5 + 0.001*float64(i)
			g.Longitude[i] = -122.0 - 0.0015*float64(i)
		}
	}

	seabed := survey.Ranges - survey.Ranges/10
	for c := range survey.Channels {
		for p := 0; p < survey.Pings; p++ {
			layer := float64(survey.Ranges) * (0.3 + 0.2*float64(p)/float64(survey.Pings))
			for r := 0; r < survey.Ranges; r++ {
				if r >= seabed && seabed > 0 {
					g.Sv.Set(math.NaN(), c, p, r)
					continue
				}
				d := (float64(r) - layer) / (0.05*float64(survey.Ranges) + 1)
				sv := -90 + 45*math.Exp(-d*d) - 3*float64(c)
				g.Sv.Set(sv, c, p, r)
			}
		}
	}
	return New(g)
}
