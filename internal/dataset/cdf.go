package dataset

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// classicFile reads variables out of a NetCDF classic (CDF-1/CDF-2) file.
type classicFile struct {
	path    string
	f       *cdf.File
	numRecs int
	vars    map[string]bool
}

func openClassic(path string, fh *os.File) (*Dataset, error) {
	cf, err := cdf.Open(fh)
	if err != nil {
		return nil, loadErr(path, "reading NetCDF classic header", err)
	}
	info, err := fh.Stat()
	if err != nil {
		return nil, loadErr(path, "stat", err)
	}
	c := &classicFile{
		path:    path,
		f:       cf,
		numRecs: int(cf.Header.NumRecs(info.Size())),
		vars:    make(map[string]bool),
	}
	for _, v := range cf.Header.Variables() {
		c.vars[v] = true
	}
	for _, v := range []string{VarPingTime, VarChannel, VarEchoRange, VarSv} {
		if !c.vars[v] {
			return nil, loadErr(path, "missing required variable "+v, nil)
		}
	}

	var g Grid
	if g.PingTime, err = c.pingTimes(); err != nil {
		return nil, loadErr(path, "decoding "+VarPingTime, err)
	}
	if g.Channels, err = c.labels(VarChannel); err != nil {
		return nil, loadErr(path, "decoding "+VarChannel, err)
	}
	if g.EchoRange, _, err = c.floats(VarEchoRange); err != nil {
		return nil, loadErr(path, "decoding "+VarEchoRange, err)
	}
	if c.vars[VarLatitude] && c.vars[VarLongitude] {
		if g.Latitude, _, err = c.floats(VarLatitude); err != nil {
			return nil, loadErr(path, "decoding "+VarLatitude, err)
		}
		if g.Longitude, _, err = c.floats(VarLongitude); err != nil {
			return nil, loadErr(path, "decoding "+VarLongitude, err)
		}
	}

	sv, shape, err := c.floats(VarSv)
	if err != nil {
		return nil, loadErr(path, "decoding "+VarSv, err)
	}
	if g.Sv, err = reorder(sv, cf.Header.Dimensions(VarSv), shape); err != nil {
		return nil, loadErr(path, "decoding "+VarSv, err)
	}

	d, err := New(g)
	if err != nil {
		return nil, loadErr(path, "validating", err)
	}
	d.path = path
	d.format = "netcdf3"
	return d, nil
}

// shape returns the lengths of v, substituting the record count for the
// unlimited dimension.
func (c *classicFile) shape(v string) []int {
	lengths := append([]int(nil), c.f.Header.Lengths(v)...)
	if c.f.Header.IsRecordVariable(v) {
		lengths[0] = c.numRecs
	}
	return lengths
}

// read returns the raw values of v as the slice type the library uses for its
// NetCDF type ([]uint8 for BYTE and CHAR).
func (c *classicFile) read(v string) (interface{}, []int, error) {
	shape := c.shape(v)
	n := 1
	for _, l := range shape {
		n *= l
	}
	buf := c.f.Header.ZeroValue(v, n)
	if _, isChar := buf.(string); isChar {
		buf = make([]uint8, n)
	}
	if n == 0 {
		return buf, shape, nil
	}
	begin := make([]int, len(shape))
	end := make([]int, len(shape))
	for i, l := range shape {
		end[i] = l - 1
	}
	r := c.f.Reader(v, begin, end)
	if _, err := r.Read(buf); err != nil {
		return nil, nil, err
	}
	return buf, shape, nil
}

// floats reads a numeric variable as float64, mapping fill and missing values to NaN.
func (c *classicFile) floats(v string) ([]float64, []int, error) {
	raw, shape, err := c.read(v)
	if err != nil {
		return nil, nil, err
	}
	out, err := toFloat64s(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("variable %s: %w", v, err)
	}
	if fill, ok := scalarFloat(c.f.Header.FillValue(v)); ok {
		fillToNaN(out, fill)
	}
	if missing, ok := scalarFloat(c.f.Header.GetAttribute(v, "missing_value")); ok {
		fillToNaN(out, missing)
	}
	return out, shape, nil
}

func (c *classicFile) pingTimes() ([]time.Time, error) {
	unitsAttr, ok := c.f.Header.GetAttribute(VarPingTime, "units").(string)
	if !ok {
		return nil, fmt.Errorf("%s has no units attribute", VarPingTime)
	}
	units, err := parseTimeUnits(unitsAttr)
	if err != nil {
		return nil, err
	}
	raw, _, err := c.read(VarPingTime)
	if err != nil {
		return nil, err
	}
	switch vals := raw.(type) {
	case []int16:
		ints := make([]int64, len(vals))
		for i, v := range vals {
			ints[i] = int64(v)
		}
		return units.decodeInts(ints), nil
	case []int32:
		ints := make([]int64, len(vals))
		for i, v := range vals {
			ints[i] = int64(v)
		}
		return units.decodeInts(ints), nil
	}
	floats, err := toFloat64s(raw)
	if err != nil {
		return nil, err
	}
	return units.decodeFloats(floats)
}

// labels reads a channel label variable stored either as CHAR(n, strlen) or
// as numeric values such as nominal frequencies.
func (c *classicFile) labels(v string) ([]string, error) {
	raw, shape, err := c.read(v)
	if err != nil {
		return nil, err
	}
	if _, isChar := c.f.Header.ZeroValue(v, 0).(string); isChar {
		chars := raw.([]uint8)
		if len(shape) != 2 {
			return nil, fmt.Errorf("character variable %s has %d dimensions, want 2", v, len(shape))
		}
		out := make([]string, shape[0])
		for i := range out {
			out[i] = trimLabel(string(chars[i*shape[1] : (i+1)*shape[1]]))
		}
		return out, nil
	}
	nums, err := toFloat64s(raw)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(nums))
	for i, n := range nums {
		out[i] = strconv.FormatFloat(n, 'f', -1, 64)
	}
	return out, nil
}

func trimLabel(s string) string {
	return strings.TrimRight(s, "\x00 ")
}

type namedValues struct {
	name string
	data interface{}
}

// Write stores d as a NetCDF classic file, replacing any existing file at path.
func Write(path string, d *Dataset) error {
	if d.NumPings() == 0 {
		return fmt.Errorf("dataset: cannot write a dataset with no pings")
	}
	strlen := 1
	for _, c := range d.channels {
		if len(c) > strlen {
			strlen = len(c)
		}
	}

	h := cdf.NewHeader(
		[]string{VarChannel, VarPingTime, VarEchoRange, "strlen"},
		[]int{d.NumChannels(), d.NumPings(), d.NumRanges(), strlen})
	h.AddAttribute("", "comment", "echosounder Sv dataset")

	h.AddVariable(VarPingTime, []string{VarPingTime}, []float64{0})
	h.AddAttribute(VarPingTime, "units", "seconds since 1970-01-01T00:00:00Z")
	h.AddVariable(VarChannel, []string{VarChannel, "strlen"}, "")
	h.AddVariable(VarEchoRange, []string{VarEchoRange}, []float64{0})
	h.AddAttribute(VarEchoRange, "units", "m")
	if d.hasPosition {
		h.AddVariable(VarLatitude, []string{VarPingTime}, []float64{0})
		h.AddAttribute(VarLatitude, "units", "degrees_north")
		h.AddAttribute(VarLatitude, "_FillValue", []float64{math.NaN()})
		h.AddVariable(VarLongitude, []string{VarPingTime}, []float64{0})
		h.AddAttribute(VarLongitude, "units", "degrees_east")
		h.AddAttribute(VarLongitude, "_FillValue", []float64{math.NaN()})
	}
	h.AddVariable(VarSv, []string{VarChannel, VarPingTime, VarEchoRange}, []float32{0})
	h.AddAttribute(VarSv, "units", "dB")
	h.AddAttribute(VarSv, "_FillValue", []float32{float32(math.NaN())})
	h.Define()

	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	f, err := cdf.Create(fh, h) // writes the header
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, c := range d.channels {
		b.WriteString(c)
		b.WriteString(strings.Repeat("\x00", strlen-len(c)))
	}

	sv32 := make([]float32, len(d.sv.Elements))
	for i, v := range d.sv.Elements {
		sv32[i] = float32(v)
	}

	values := []namedValues{
		{VarPingTime, encodeSeconds(d.pingTime, time.Unix(0, 0).UTC())},
		{VarChannel, b.String()},
		{VarEchoRange, d.echoRange},
		{VarSv, sv32},
	}
	if d.hasPosition {
		values = append(values, namedValues{VarLatitude, d.latitude}, namedValues{VarLongitude, d.longitude})
	}
	for _, v := range values {
		if _, err := f.Writer(v.name, nil, nil).Write(v.data); err != nil {
			return fmt.Errorf("dataset: writing variable %s: %w", v.name, err)
		}
	}
	return cdf.UpdateNumRecs(fh)
}

// reorder copies a 3-D variable whose dimensions are some permutation of
// (channel, ping_time, echo_range) into a [channel][ping][range] array.
func reorder(vals []float64, dims []string, shape []int) (*sparse.DenseArray, error) {
	if len(dims) != 3 || len(shape) != 3 {
		return nil, fmt.Errorf("%s has dimensions %v, want (%s, %s, %s)", VarSv, dims, VarChannel, VarPingTime, VarEchoRange)
	}
	pos := map[string]int{}
	for i, name := range dims {
		pos[name] = i
	}
	order := [3]int{}
	for i, name := range []string{VarChannel, VarPingTime, VarEchoRange} {
		p, ok := pos[name]
		if !ok {
			return nil, fmt.Errorf("%s has dimensions %v, want (%s, %s, %s)", VarSv, dims, VarChannel, VarPingTime, VarEchoRange)
		}
		order[i] = p
	}
	out := sparse.ZerosDense(shape[order[0]], shape[order[1]], shape[order[2]])
	if order == [3]int{0, 1, 2} {
		copy(out.Elements, vals)
		return out, nil
	}
	idx := make([]int, 3)
	for c := 0; c < out.Shape[0]; c++ {
		idx[order[0]] = c
		for p := 0; p < out.Shape[1]; p++ {
			idx[order[1]] = p
			for r := 0; r < out.Shape[2]; r++ {
				idx[order[2]] = r
				src := (idx[0]*shape[1]+idx[1])*shape[2] + idx[2]
				out.Set(vals[src], c, p, r)
			}
		}
	}
	return out, nil
}
