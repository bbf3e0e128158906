// Package safejson converts nested numeric and temporal data into values that
// always serialize to valid JSON. NaN and ±Inf become null wherever they occur,
// integers stay integers, and timestamps keep their full precision.
package safejson

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Value is one of Null, Int, Float, Time, String or Seq. The set is closed:
// code that consumes a Value switches over exactly these types.
type Value interface {
	json.Marshaler
	msgpack.CustomEncoder
	appendJSON(b []byte) []byte
}

type (
	// Null is a missing or invalid value.
	Null struct{}
	// Int is an integer. It is never written with a fractional part.
	Int int64
	// Float is a floating-point number. Non-finite values encode as null.
	Float float64
	// Time is a timestamp written as RFC 3339 in UTC with nanoseconds.
	Time time.Time
	// String is a text value.
	String string
	// Seq is an ordered sequence, possibly of further sequences.
	Seq []Value
)

var (
	_ Value = Null{}
	_ Value = Int(0)
	_ Value = Float(0)
	_ Value = Time{}
	_ Value = String("")
	_ Value = Seq(nil)
)

const timeLayout = time.RFC3339Nano

func (Null) appendJSON(b []byte) []byte { return append(b, "null"...) }

func (v Int) appendJSON(b []byte) []byte { return strconv.AppendInt(b, int64(v), 10) }

func (v Float) appendJSON(b []byte) []byte {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(b, "null"...)
	}
	start := len(b)
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	b = strconv.AppendFloat(b, f, format, -1, 64)
	if format == 'e' {
		// e-07 -> e-7, matching encoding/json.
		if n := len(b); n-start >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
		return b
	}
	if !bytes.ContainsRune(b[start:], '.') {
		b = append(b, ".0"...)
	}
	return b
}

func (v Time) appendJSON(b []byte) []byte {
	b = append(b, '"')
	b = time.Time(v).UTC().AppendFormat(b, timeLayout)
	return append(b, '"')
}

func (v String) appendJSON(b []byte) []byte {
	enc, _ := json.Marshal(string(v)) // strings always marshal
	return append(b, enc...)
}

func (v Seq) appendJSON(b []byte) []byte {
	b = append(b, '[')
	for i, e := range v {
		if i > 0 {
			b = append(b, ',')
		}
		if e == nil {
			b = append(b, "null"...)
			continue
		}
		b = e.appendJSON(b)
	}
	return append(b, ']')
}

func (v Null) MarshalJSON() ([]byte, error)   { return v.appendJSON(nil), nil }
func (v Int) MarshalJSON() ([]byte, error)    { return v.appendJSON(nil), nil }
func (v Float) MarshalJSON() ([]byte, error)  { return v.appendJSON(nil), nil }
func (v Time) MarshalJSON() ([]byte, error)   { return v.appendJSON(nil), nil }
func (v String) MarshalJSON() ([]byte, error) { return v.appendJSON(nil), nil }
func (v Seq) MarshalJSON() ([]byte, error)    { return v.appendJSON(make([]byte, 0, 16*len(v))), nil }

// EncodeMsgpack implementations follow the JSON mapping so both response
// formats carry the same data. Times are sent as their RFC 3339 string.

func (Null) EncodeMsgpack(enc *msgpack.Encoder) error { return enc.EncodeNil() }

func (v Int) EncodeMsgpack(enc *msgpack.Encoder) error { return enc.EncodeInt(int64(v)) }

func (v Float) EncodeMsgpack(enc *msgpack.Encoder) error {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return enc.EncodeNil()
	}
	return enc.EncodeFloat64(f)
}

func (v Time) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(time.Time(v).UTC().Format(timeLayout))
}

func (v String) EncodeMsgpack(enc *msgpack.Encoder) error { return enc.EncodeString(string(v)) }

func (v Seq) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(len(v)); err != nil {
		return err
	}
	for _, e := range v {
		if e == nil {
			if err := enc.EncodeNil(); err != nil {
				return err
			}
			continue
		}
		if err := e.EncodeMsgpack(enc); err != nil {
			return err
		}
	}
	return nil
}

// Title formats t to whole seconds for human-readable labels.
func Title(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05")
}
