package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// referenceLayouts are the reference-time spellings seen in CF "units"
// attributes, most specific first.
var referenceLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var unitDurations = map[string]time.Duration{
	"nanoseconds":  time.Nanosecond,
	"nanosecond":   time.Nanosecond,
	"ns":           time.Nanosecond,
	"microseconds": time.Microsecond,
	"microsecond":  time.Microsecond,
	"us":           time.Microsecond,
	"milliseconds": time.Millisecond,
	"millisecond":  time.Millisecond,
	"ms":           time.Millisecond,
	"seconds":      time.Second,
	"second":       time.Second,
	"secs":         time.Second,
	"s":            time.Second,
	"minutes":      time.Minute,
	"minute":       time.Minute,
	"mins":         time.Minute,
	"hours":        time.Hour,
	"hour":         time.Hour,
	"h":            time.Hour,
	"days":         24 * time.Hour,
	"day":          24 * time.Hour,
	"d":            24 * time.Hour,
}

// timeUnits is a parsed CF time "units" attribute such as
// "seconds since 1970-01-01T00:00:00".
type timeUnits struct {
	step time.Duration
	ref  time.Time
}

func parseTimeUnits(units string) (timeUnits, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return timeUnits{}, fmt.Errorf("time units %q are not of the form \"<unit> since <reference>\"", units)
	}
	step, ok := unitDurations[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return timeUnits{}, fmt.Errorf("unknown time unit %q", parts[0])
	}
	refStr := strings.TrimSpace(parts[1])
	refStr = strings.TrimSuffix(refStr, " UTC")
	for _, layout := range referenceLayouts {
		if ref, err := time.Parse(layout, refStr); err == nil {
			return timeUnits{step: step, ref: ref.UTC()}, nil
		}
	}
	return timeUnits{}, fmt.Errorf("cannot parse reference time %q", refStr)
}

// decodeInts converts integer offsets to timestamps.
func (u timeUnits) decodeInts(offsets []int64) []time.Time {
	out := make([]time.Time, len(offsets))
	for i, v := range offsets {
		out[i] = u.ref.Add(time.Duration(v) * u.step)
	}
	return out
}

// decodeFloats converts fractional offsets to timestamps. Float offsets can
// only carry about microsecond precision at present-day epochs, so the result
// is rounded to the microsecond.
func (u timeUnits) decodeFloats(offsets []float64) ([]time.Time, error) {
	out := make([]time.Time, len(offsets))
	for i, v := range offsets {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s value %d is not finite", VarPingTime, i)
		}
		out[i] = u.ref.Add(time.Duration(math.Round(v * float64(u.step)))).Round(time.Microsecond)
	}
	return out, nil
}

// encodeSeconds is the inverse of decodeFloats for "seconds since" units.
func encodeSeconds(ts []time.Time, ref time.Time) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = t.Sub(ref).Seconds()
	}
	return out
}
