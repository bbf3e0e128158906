package dataset

import (
	"fmt"
	"strconv"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// openHDF reads a NetCDF-4 (HDF5) file, the format xarray writes by default.
func openHDF(path string) (*Dataset, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, loadErr(path, "reading NetCDF-4 file", err)
	}
	defer nc.Close()

	present := make(map[string]bool)
	for _, v := range nc.ListVariables() {
		present[v] = true
	}
	for _, v := range []string{VarPingTime, VarChannel, VarEchoRange, VarSv} {
		if !present[v] {
			return nil, loadErr(path, "missing required variable "+v, nil)
		}
	}

	vars := make(map[string]*api.Variable)
	for _, name := range []string{VarPingTime, VarChannel, VarEchoRange, VarSv, VarLatitude, VarLongitude} {
		if !present[name] {
			continue
		}
		v, err := nc.GetVariable(name)
		if err != nil {
			return nil, loadErr(path, "reading "+name, err)
		}
		vars[name] = v
	}

	var g Grid
	if g.PingTime, err = hdfPingTimes(vars[VarPingTime]); err != nil {
		return nil, loadErr(path, "decoding "+VarPingTime, err)
	}
	if g.Channels, err = hdfLabels(vars[VarChannel]); err != nil {
		return nil, loadErr(path, "decoding "+VarChannel, err)
	}
	if g.EchoRange, _, err = hdfFloats(vars[VarEchoRange]); err != nil {
		return nil, loadErr(path, "decoding "+VarEchoRange, err)
	}
	if vars[VarLatitude] != nil && vars[VarLongitude] != nil {
		if g.Latitude, _, err = hdfFloats(vars[VarLatitude]); err != nil {
			return nil, loadErr(path, "decoding "+VarLatitude, err)
		}
		if g.Longitude, _, err = hdfFloats(vars[VarLongitude]); err != nil {
			return nil, loadErr(path, "decoding "+VarLongitude, err)
		}
	}
	sv, shape, err := hdfFloats(vars[VarSv])
	if err != nil {
		return nil, loadErr(path, "decoding "+VarSv, err)
	}
	if g.Sv, err = reorder(sv, vars[VarSv].Dimensions, shape); err != nil {
		return nil, loadErr(path, "decoding "+VarSv, err)
	}

	d, err := New(g)
	if err != nil {
		return nil, loadErr(path, "validating", err)
	}
	d.path = path
	d.format = "netcdf4"
	return d, nil
}

func hdfAttr(v *api.Variable, key string) (interface{}, bool) {
	if v.Attributes == nil {
		return nil, false
	}
	return v.Attributes.Get(key)
}

func hdfFloats(v *api.Variable) ([]float64, []int, error) {
	out, shape, err := flatten(v.Values)
	if err != nil {
		return nil, nil, err
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		if attr, ok := hdfAttr(v, key); ok {
			if fill, ok := scalarFloat(attr); ok {
				fillToNaN(out, fill)
			}
		}
	}
	return out, shape, nil
}

func hdfPingTimes(v *api.Variable) ([]time.Time, error) {
	attr, ok := hdfAttr(v, "units")
	unitsAttr, isString := attr.(string)
	if !ok || !isString {
		return nil, fmt.Errorf("%s has no units attribute", VarPingTime)
	}
	units, err := parseTimeUnits(unitsAttr)
	if err != nil {
		return nil, err
	}
	switch vals := v.Values.(type) {
	case []int64:
		return units.decodeInts(vals), nil
	case []int32:
		ints := make([]int64, len(vals))
		for i, x := range vals {
			ints[i] = int64(x)
		}
		return units.decodeInts(ints), nil
	}
	floats, err := toFloat64s(v.Values)
	if err != nil {
		return nil, err
	}
	return units.decodeFloats(floats)
}

func hdfLabels(v *api.Variable) ([]string, error) {
	switch vals := v.Values.(type) {
	case []string:
		out := make([]string, len(vals))
		for i, s := range vals {
			out[i] = trimLabel(s)
		}
		return out, nil
	case string:
		return []string{trimLabel(vals)}, nil
	case [][]byte:
		out := make([]string, len(vals))
		for i, b := range vals {
			out[i] = trimLabel(string(b))
		}
		return out, nil
	}
	nums, err := toFloat64s(v.Values)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(nums))
	for i, n := range nums {
		out[i] = strconv.FormatFloat(n, 'f', -1, 64)
	}
	return out, nil
}
