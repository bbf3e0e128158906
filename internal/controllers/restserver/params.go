package restserver

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/chrissnell/echomap/internal/query"
	"github.com/chrissnell/echomap/internal/selector"
)

func invalidParam(format string, args ...any) *query.Error {
	return &query.Error{Kind: query.KindInvalidParameter, Message: fmt.Sprintf(format, args...)}
}

// intParam parses an optional integer query parameter.
func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

// floatParam parses an optional finite float query parameter.
func floatParam(q url.Values, name string) (*float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, invalidParam("%s must be a finite number, got %q", name, raw)
	}
	return &v, nil
}

func optionalString(q url.Values, name string) *string {
	if v := q.Get(name); v != "" {
		return &v
	}
	return nil
}

// selectionParams reads pointIndex, channelIndex, startTime and endTime.
// Missing indices default to 0.
func selectionParams(q url.Values) (selector.Selection, error) {
	var sel selector.Selection
	var err error
	if sel.PointIndex, err = intParam(q, "pointIndex", 0); err != nil {
		return sel, err
	}
	if sel.ChannelIndex, err = intParam(q, "channelIndex", 0); err != nil {
		return sel, err
	}
	sel.Start = optionalString(q, "startTime")
	sel.End = optionalString(q, "endTime")
	return sel, nil
}

// scaleParams reads vmin and vmax, falling back to the configured defaults.
// Ordering is checked by the query service.
func scaleParams(q url.Values, defMin, defMax float64) (vmin, vmax float64, err error) {
	vmin, vmax = defMin, defMax
	if v, err := floatParam(q, "vmin"); err != nil {
		return 0, 0, err
	} else if v != nil {
		vmin = *v
	}
	if v, err := floatParam(q, "vmax"); err != nil {
		return 0, 0, err
	} else if v != nil {
		vmax = *v
	}
	return vmin, vmax, nil
}
