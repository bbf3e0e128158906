package dataset

import (
	"fmt"
	"reflect"
)

// toFloat64s converts a flat numeric slice to []float64.
func toFloat64s(raw interface{}) ([]float64, error) {
	switch vals := raw.(type) {
	case []float64:
		return append([]float64(nil), vals...), nil
	case []float32:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, nil
	case []int8:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, nil
	case []uint16:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, nil
	case []uint32:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported numeric type %T", raw)
}

// scalarFloat extracts a single number from an attribute or fill value, which
// may be a bare scalar or a one-element slice.
func scalarFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case uint8:
		return float64(x), true
	case nil, string:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Len() == 1 {
		return scalarFloat(rv.Index(0).Interface())
	}
	return 0, false
}

// flatten walks nested slices such as [][][]float32 in row-major order and
// returns the leaves as float64 together with the shape.
func flatten(values interface{}) ([]float64, []int, error) {
	rv := reflect.ValueOf(values)
	var shape []int
	for v := rv; v.Kind() == reflect.Slice; {
		shape = append(shape, v.Len())
		if v.Len() == 0 || v.Type().Elem().Kind() != reflect.Slice {
			break
		}
		v = v.Index(0)
	}
	if len(shape) == 0 {
		return nil, nil, fmt.Errorf("unsupported variable type %T", values)
	}

	n := 1
	for _, l := range shape {
		n *= l
	}
	out := make([]float64, 0, n)
	var walk func(v reflect.Value, depth int) error
	walk = func(v reflect.Value, depth int) error {
		if v.Len() != shape[depth] {
			return fmt.Errorf("ragged array at depth %d: length %d, want %d", depth, v.Len(), shape[depth])
		}
		if v.Len() == 0 {
			return nil
		}
		if depth == len(shape)-1 {
			leaf, err := toFloat64s(v.Interface())
			if err != nil {
				return err
			}
			out = append(out, leaf...)
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := walk(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}
