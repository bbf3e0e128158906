// Package selector turns a per-request Selection into concrete offsets into the
// dataset grid, validating every index and time bound along the way.
package selector

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrIndexOutOfRange is matched by every *IndexOutOfRangeError.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrInvalidTimeRange is matched by every *InvalidTimeRangeError.
	ErrInvalidTimeRange = errors.New("invalid time range")
)

// IndexOutOfRangeError reports an index outside [0, Length) of a dimension.
type IndexOutOfRangeError struct {
	Dimension string
	Index     int
	Length    int
}

func (e *IndexOutOfRangeError) Error() string {
	if e.Length == 0 {
		return fmt.Sprintf("%s index %d out of range: dimension is empty", e.Dimension, e.Index)
	}
	return fmt.Sprintf("%s index %d out of range [0, %d)", e.Dimension, e.Index, e.Length)
}

func (e *IndexOutOfRangeError) Unwrap() error { return ErrIndexOutOfRange }

// InvalidTimeRangeError reports an unparseable bound or a start after the end.
type InvalidTimeRangeError struct {
	Start, End string
	Reason     string
}

func (e *InvalidTimeRangeError) Error() string {
	return fmt.Sprintf("invalid time range %q to %q: %s", e.Start, e.End, e.Reason)
}

func (e *InvalidTimeRangeError) Unwrap() error { return ErrInvalidTimeRange }

// Selection describes one query: a single ping on a channel, or a time window
// on a channel when both Start and End are set.
type Selection struct {
	PointIndex   int
	ChannelIndex int
	Start        *string
	End          *string
}

// HasTimeRange reports whether both time bounds are present.
func (s Selection) HasTimeRange() bool {
	return s.Start != nil && s.End != nil
}

// Grid is the part of a dataset the selector reads.
type Grid interface {
	NumPings() int
	NumChannels() int
	Channels() []string
	PingTimes() []time.Time
}

// Point is a resolved single-ping selection.
type Point struct {
	ChannelIndex int
	ChannelLabel string
	PingIndex    int
	Timestamp    time.Time
}

// TimeWindow is the inclusive range [Start, End] resolved to the half-open ping
// index range [Lo, Hi).
type TimeWindow struct {
	Start, End time.Time
	Lo, Hi     int
}

// Len returns the number of pings inside the window.
func (w TimeWindow) Len() int { return w.Hi - w.Lo }

// Empty reports whether no ping falls inside the window.
func (w TimeWindow) Empty() bool { return w.Hi <= w.Lo }

// Resolved is a validated Selection. Exactly one of Point and Window is set.
type Resolved struct {
	ChannelIndex int
	ChannelLabel string
	Point        *Point
	Window       *TimeWindow
}

// Selector resolves selections against one grid.
type Selector struct {
	grid Grid
}

func New(g Grid) *Selector {
	return &Selector{grid: g}
}

func (s *Selector) channel(idx int) (string, error) {
	n := s.grid.NumChannels()
	if idx < 0 || idx >= n {
		return "", &IndexOutOfRangeError{Dimension: "channel", Index: idx, Length: n}
	}
	return s.grid.Channels()[idx], nil
}

// ResolvePoint validates both indices and returns the ping's channel label and timestamp.
func (s *Selector) ResolvePoint(point, channel int) (Point, error) {
	n := s.grid.NumPings()
	if point < 0 || point >= n {
		return Point{}, &IndexOutOfRangeError{Dimension: "ping_time", Index: point, Length: n}
	}
	label, err := s.channel(channel)
	if err != nil {
		return Point{}, err
	}
	return Point{
		ChannelIndex: channel,
		ChannelLabel: label,
		PingIndex:    point,
		Timestamp:    s.grid.PingTimes()[point],
	}, nil
}

// ResolveTimeRange parses both bounds and finds every ping with start <= t <= end.
// A window that matches no ping is returned without error.
func (s *Selector) ResolveTimeRange(start, end string) (TimeWindow, error) {
	from, err := ParseTimestamp(start)
	if err != nil {
		return TimeWindow{}, &InvalidTimeRangeError{Start: start, End: end, Reason: "start: " + err.Error()}
	}
	to, err := ParseTimestamp(end)
	if err != nil {
		return TimeWindow{}, &InvalidTimeRangeError{Start: start, End: end, Reason: "end: " + err.Error()}
	}
	if from.After(to) {
		return TimeWindow{}, &InvalidTimeRangeError{Start: start, End: end, Reason: "start is after end"}
	}

	times := s.grid.PingTimes()
	lo := sort.Search(len(times), func(i int) bool { return !times[i].Before(from) })
	hi := sort.Search(len(times), func(i int) bool { return times[i].After(to) })
	if hi < lo {
		hi = lo
	}
	return TimeWindow{Start: from, End: to, Lo: lo, Hi: hi}, nil
}

// Resolve validates sel. When a time range is present it wins: the channel is
// still checked but the point index is neither validated nor used.
func (s *Selector) Resolve(sel Selection) (Resolved, error) {
	if sel.HasTimeRange() {
		label, err := s.channel(sel.ChannelIndex)
		if err != nil {
			return Resolved{}, err
		}
		w, err := s.ResolveTimeRange(*sel.Start, *sel.End)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{ChannelIndex: sel.ChannelIndex, ChannelLabel: label, Window: &w}, nil
	}

	p, err := s.ResolvePoint(sel.PointIndex, sel.ChannelIndex)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{ChannelIndex: p.ChannelIndex, ChannelLabel: p.ChannelLabel, Point: &p}, nil
}

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp spellings accepted for time-range bounds.
func ParseTimestamp(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", s)
}
