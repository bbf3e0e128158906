package safejson

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/ctessum/sparse"
)

// ErrUnsupportedValue is matched by every *UnsupportedValueError.
var ErrUnsupportedValue = errors.New("unsupported value")

// UnsupportedValueError reports a Go value Encode has no mapping for.
type UnsupportedValueError struct {
	Type string
	// Path locates the value inside the input, e.g. "$[2][0]".
	Path string
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("safejson: cannot encode %s at %s", e.Type, e.Path)
}

func (e *UnsupportedValueError) Unwrap() error { return ErrUnsupportedValue }

var timeType = reflect.TypeOf(time.Time{})

// Encode converts v into a Value. Supported inputs are nil, every integer
// kind, float32 and float64, time.Time, string, existing Values, slices and
// arrays of any of these at any depth, and *sparse.DenseArray.
func Encode(v any) (Value, error) {
	return encode(v, "$")
}

// Marshal encodes v and returns its JSON text.
func Marshal(v any) ([]byte, error) {
	val, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(val)
}

// Floats converts a float slice, mapping non-finite values to Null.
func Floats(xs []float64) Seq {
	out := make(Seq, len(xs))
	for i, x := range xs {
		out[i] = floatValue(x)
	}
	return out
}

// Times converts a timestamp slice.
func Times(ts []time.Time) Seq {
	out := make(Seq, len(ts))
	for i, t := range ts {
		out[i] = Time(t)
	}
	return out
}

// Strings converts a string slice.
func Strings(ss []string) Seq {
	out := make(Seq, len(ss))
	for i, s := range ss {
		out[i] = String(s)
	}
	return out
}

func floatValue(x float64) Value {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Null{}
	}
	return Float(x)
}

// float32Value keeps the shortest decimal form of a float32 rather than its
// widened binary value (1.1 rather than 1.100000023841858).
func float32Value(x float32) Value {
	f := float64(x)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null{}
	}
	short, err := strconv.ParseFloat(strconv.FormatFloat(f, 'g', -1, 32), 64)
	if err != nil {
		return Float(f)
	}
	return Float(short)
}

func encode(v any, path string) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case float64:
		return floatValue(x), nil
	case float32:
		return float32Value(x), nil
	case int:
		return Int(x), nil
	case int8:
		return Int(x), nil
	case int16:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case uint:
		return encodeUint(uint64(x), path)
	case uint8:
		return Int(x), nil
	case uint16:
		return Int(x), nil
	case uint32:
		return Int(x), nil
	case uint64:
		return encodeUint(x, path)
	case string:
		return String(x), nil
	case time.Time:
		return Time(x), nil
	case []float64:
		return Floats(x), nil
	case []time.Time:
		return Times(x), nil
	case []string:
		return Strings(x), nil
	case *sparse.DenseArray:
		if x == nil {
			return Null{}, nil
		}
		return encodeDense(x, path)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return Seq{}, nil
		}
		fallthrough
	case reflect.Array:
		out := make(Seq, rv.Len())
		for i := range out {
			e, err := encode(rv.Index(i).Interface(), path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return Null{}, nil
		}
		return encode(rv.Elem().Interface(), path)
	}

	// Named numeric and string types that did not match above.
	switch {
	case rv.CanInt():
		return Int(rv.Int()), nil
	case rv.CanUint():
		return encodeUint(rv.Uint(), path)
	case rv.CanFloat():
		if rv.Kind() == reflect.Float32 {
			return float32Value(float32(rv.Float())), nil
		}
		return floatValue(rv.Float()), nil
	case rv.Kind() == reflect.String:
		return String(rv.String()), nil
	case rv.Type().ConvertibleTo(timeType) && rv.Kind() == reflect.Struct:
		return Time(rv.Convert(timeType).Interface().(time.Time)), nil
	}
	return nil, &UnsupportedValueError{Type: fmt.Sprintf("%T", v), Path: path}
}

func encodeUint(x uint64, path string) (Value, error) {
	if x > math.MaxInt64 {
		return nil, &UnsupportedValueError{Type: "uint64 beyond int64 range", Path: path}
	}
	return Int(int64(x)), nil
}

// encodeDense nests the flat elements of a by its shape.
func encodeDense(a *sparse.DenseArray, path string) (Value, error) {
	if len(a.Shape) == 0 {
		return nil, &UnsupportedValueError{Type: "*sparse.DenseArray without shape", Path: path}
	}
	var build func(dim, offset int) Seq
	build = func(dim, offset int) Seq {
		n := a.Shape[dim]
		if dim == len(a.Shape)-1 {
			return Floats(a.Elements[offset : offset+n])
		}
		stride := 1
		for _, l := range a.Shape[dim+1:] {
			stride *= l
		}
		out := make(Seq, n)
		for i := range out {
			out[i] = build(dim+1, offset+i*stride)
		}
		return out
	}
	return build(0, 0), nil
}
