package query

import (
	"errors"
	"fmt"

	"github.com/chrissnell/echomap/internal/dataset"
	"github.com/chrissnell/echomap/internal/safejson"
	"github.com/chrissnell/echomap/internal/selector"
)

// Kind classifies a query failure for the boundary layer.
type Kind string

const (
	KindDatasetUnavailable Kind = "dataset_unavailable"
	KindMissingCoordinate  Kind = "missing_coordinate"
	KindIndexOutOfRange    Kind = "index_out_of_range"
	KindInvalidTimeRange   Kind = "invalid_time_range"
	// KindEmptySelection is a valid outcome: the time window matched no ping.
	KindEmptySelection   Kind = "empty_selection"
	KindInvalidParameter Kind = "invalid_parameter"
	KindInternal         Kind = "internal"
)

// Error is the only error type returned by Service methods.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ClientError reports whether the failure was caused by the request rather
// than by the dataset or the server.
func (e *Error) ClientError() bool {
	switch e.Kind {
	case KindIndexOutOfRange, KindInvalidTimeRange, KindInvalidParameter:
		return true
	}
	return false
}

// KindOf returns the kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// classify translates an error from the dataset, selector or encoder packages.
func classify(err error) *Error {
	if err == nil {
		return nil
	}
	var qe *Error
	if errors.As(err, &qe) {
		return qe
	}

	kind := KindInternal
	msg := "internal error"
	switch {
	case errors.Is(err, dataset.ErrLoad):
		kind, msg = KindDatasetUnavailable, "dataset is unavailable"
	case errors.Is(err, selector.ErrIndexOutOfRange):
		kind, msg = KindIndexOutOfRange, err.Error()
	case errors.Is(err, selector.ErrInvalidTimeRange):
		kind, msg = KindInvalidTimeRange, err.Error()
	case errors.Is(err, safejson.ErrUnsupportedValue):
		msg = "cannot encode response"
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}
