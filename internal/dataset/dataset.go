// Package dataset loads a static gridded echosounder dataset (Sv over channel,
// ping_time and echo_range, plus per-ping positions) from a NetCDF file and
// holds it in memory for the lifetime of the process.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
)

// Names of the coordinates and variables a dataset file must provide.
const (
	VarPingTime  = "ping_time"
	VarChannel   = "channel"
	VarEchoRange = "echo_range"
	VarLatitude  = "latitude"
	VarLongitude = "longitude"
	VarSv        = "Sv"
)

// ErrLoad is matched by every error returned from Open.
var ErrLoad = errors.New("dataset load failed")

// LoadError describes why a dataset file could not be loaded.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("loading dataset %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("loading dataset %s: %s", e.Path, e.Reason)
}

// Unwrap lets errors.Is match both ErrLoad and the underlying cause.
func (e *LoadError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrLoad, e.Err}
	}
	return []error{ErrLoad}
}

func loadErr(path, reason string, err error) error {
	return &LoadError{Path: path, Reason: reason, Err: err}
}

// Dataset is an immutable in-memory copy of an echosounder dataset. None of the
// slices returned by its accessors may be modified by callers.
type Dataset struct {
	path        string
	format      string
	pingTime    []time.Time
	channels    []string
	echoRange   []float64
	latitude    []float64
	longitude   []float64
	hasPosition bool
	sv          *sparse.DenseArray
}

// Grid holds the raw coordinate and measurement arrays used to build a Dataset.
// Latitude and Longitude may both be nil when the source has no positions.
type Grid struct {
	PingTime  []time.Time
	Channels  []string
	EchoRange []float64
	Latitude  []float64
	Longitude []float64
	// Sv is laid out as [channel][ping][range].
	Sv *sparse.DenseArray
}

// New validates g and wraps it in a Dataset.
func New(g Grid) (*Dataset, error) {
	if len(g.Channels) == 0 {
		return nil, fmt.Errorf("%s dimension is empty", VarChannel)
	}
	if len(g.EchoRange) == 0 {
		return nil, fmt.Errorf("%s dimension is empty", VarEchoRange)
	}
	for i := 1; i < len(g.PingTime); i++ {
		if !g.PingTime[i].After(g.PingTime[i-1]) {
			return nil, fmt.Errorf("%s is not strictly increasing at index %d", VarPingTime, i)
		}
	}

	hasPosition := g.Latitude != nil || g.Longitude != nil
	if hasPosition {
		if len(g.Latitude) != len(g.PingTime) {
			return nil, fmt.Errorf("%s has %d values for %d pings", VarLatitude, len(g.Latitude), len(g.PingTime))
		}
		if len(g.Longitude) != len(g.PingTime) {
			return nil, fmt.Errorf("%s has %d values for %d pings", VarLongitude, len(g.Longitude), len(g.PingTime))
		}
	}

	if g.Sv == nil {
		return nil, fmt.Errorf("%s is missing", VarSv)
	}
	want := []int{len(g.Channels), len(g.PingTime), len(g.EchoRange)}
	if len(g.Sv.Shape) != 3 || g.Sv.Shape[0] != want[0] || g.Sv.Shape[1] != want[1] || g.Sv.Shape[2] != want[2] {
		return nil, fmt.Errorf("%s has shape %v, expected %v (channel, ping_time, echo_range)", VarSv, g.Sv.Shape, want)
	}

	return &Dataset{
		pingTime:    g.PingTime,
		channels:    g.Channels,
		echoRange:   g.EchoRange,
		latitude:    g.Latitude,
		longitude:   g.Longitude,
		hasPosition: hasPosition,
		sv:          g.Sv,
	}, nil
}

// Path returns the file the dataset was read from, or "" for in-memory datasets.
func (d *Dataset) Path() string { return d.path }

// Format returns the on-disk format name ("netcdf3" or "netcdf4").
func (d *Dataset) Format() string { return d.format }

// NumPings returns the length of the ping_time axis.
func (d *Dataset) NumPings() int { return len(d.pingTime) }

// NumChannels returns the number of acoustic channels.
func (d *Dataset) NumChannels() int { return len(d.channels) }

// NumRanges returns the number of depth bins.
func (d *Dataset) NumRanges() int { return len(d.echoRange) }

// PingTimes returns the strictly increasing ping timestamps.
// Callers must not modify the slice.
func (d *Dataset) PingTimes() []time.Time { return d.pingTime }

// Channels returns the channel labels in file order.
func (d *Dataset) Channels() []string { return d.channels }

// EchoRange returns the depth of each range bin in metres.
func (d *Dataset) EchoRange() []float64 { return d.echoRange }

// HasPosition reports whether the source file carried latitude and longitude
// variables at all. Individual positions may still be NaN.
func (d *Dataset) HasPosition() bool { return d.hasPosition }

// Latitude returns one latitude per ping, NaN where missing. It is nil
// when HasPosition is false.
func (d *Dataset) Latitude() []float64 { return d.latitude }

// Longitude returns one longitude per ping, NaN where missing. It is nil
// when HasPosition is false.
func (d *Dataset) Longitude() []float64 { return d.longitude }

// Sv returns the backscatter grid, shaped [channel][ping][range].
func (d *Dataset) Sv() *sparse.DenseArray { return d.sv }

// Profile returns the Sv depth profile of one ping on one channel.
func (d *Dataset) Profile(channel, ping int) []float64 {
	nr := len(d.echoRange)
	start := d.sv.Index1d(channel, ping, 0)
	return d.sv.Elements[start : start+nr : start+nr]
}

// Slab returns the profiles of pings [lo, hi) on one channel.
func (d *Dataset) Slab(channel, lo, hi int) [][]float64 {
	out := make([][]float64, 0, hi-lo)
	for p := lo; p < hi; p++ {
		out = append(out, d.Profile(channel, p))
	}
	return out
}

// fillToNaN replaces every value equal to fill with NaN. A NaN fill is
// already in the form callers expect.
func fillToNaN(vals []float64, fill float64) {
	if math.IsNaN(fill) {
		return
	}
	for i, v := range vals {
		if v == fill {
			vals[i] = math.NaN()
		}
	}
}
