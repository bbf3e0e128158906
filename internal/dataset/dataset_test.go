package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

func writeSynthetic(t *testing.T, survey SyntheticSurvey) (string, *Dataset) {
	t.Helper()
	d, err := Synthetic(survey)
	if err != nil {
		t.Fatalf("Synthetic: %v", err)
	}
	path := filepath.Join(t.TempDir(), "mvbs.nc")
	if err := Write(path, d); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return path, d
}

func TestOpenRoundTrip(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 500_000_000, time.UTC)
	path, want := writeSynthetic(t, SyntheticSurvey{
		Pings:     12,
		Channels:  []string{"GPT  18 kHz", "GPT  38 kHz", "GPT 120 kHz"},
		Ranges:    20,
		RangeStep: 0.5,
		Start:     start,
		Interval:  1500 * time.Millisecond,
	})

	got, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if got.Format() != "netcdf3" {
		t.Errorf("Format() = %q, want netcdf3", got.Format())
	}
	if got.NumPings() != 12 || got.NumChannels() != 3 || got.NumRanges() != 20 {
		t.Fatalf("dims = (%d, %d, %d), want (12, 3, 20)", got.NumPings(), got.NumChannels(), got.NumRanges())
	}
	for i, c := range want.Channels() {
		if got.Channels()[i] != c {
			t.Errorf("channel %d = %q, want %q", i, got.Channels()[i], c)
		}
	}
	for i, ts := range want.PingTimes() {
		if !got.PingTimes()[i].Equal(ts) {
			t.Errorf("ping_time %d = %v, want %v", i, got.PingTimes()[i], ts)
		}
	}
	if got.EchoRange()[3] != 1.5 {
		t.Errorf("echo_range[3] = %v, want 1.5", got.EchoRange()[3])
	}
	if !got.HasPosition() {
		t.Fatal("HasPosition() = false, want true")
	}
	if math.Abs(got.Latitude()[4]-want.Latitude()[4]) > 1e-12 {
		t.Errorf("latitude[4] = %v, want %v", got.Latitude()[4], want.Latitude()[4])
	}

	profile := got.Profile(1, 5)
	wantProfile := want.Profile(1, 5)
	for r := range profile {
		if math.IsNaN(wantProfile[r]) {
			if !math.IsNaN(profile[r]) {
				t.Errorf("Sv[1,5,%d] = %v, want NaN", r, profile[r])
			}
			continue
		}
		if math.Abs(profile[r]-wantProfile[r]) > 1e-4 {
			t.Errorf("Sv[1,5,%d] = %v, want %v", r, profile[r], wantProfile[r])
		}
	}
}

func TestOpenWithoutPosition(t *testing.T) {
	path, _ := writeSynthetic(t, SyntheticSurvey{Pings: 3, Channels: []string{"38"}, Ranges: 4, NoPosition: true})
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.HasPosition() {
		t.Error("HasPosition() = true for a file without latitude/longitude")
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.nc")
	if err := os.WriteFile(garbage, []byte("this is not netcdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	noSv := filepath.Join(dir, "nosv.nc")
	writeHeaderOnly(t, noSv)

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "absent.nc")},
		{name: "unknown format", path: garbage},
		{name: "missing Sv", path: noSv},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path)
			if err == nil {
				t.Fatal("Open succeeded, want error")
			}
			if !errors.Is(err, ErrLoad) {
				t.Errorf("errors.Is(err, ErrLoad) = false for %v", err)
			}
			var le *LoadError
			if !errors.As(err, &le) || le.Path != tt.path {
				t.Errorf("error %v is not a *LoadError for %s", err, tt.path)
			}
		})
	}

	_, err := Open(filepath.Join(dir, "absent.nc"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error does not wrap os.ErrNotExist: %v", err)
	}
}

// writeHeaderOnly writes a classic file that has coordinates but no Sv.
func writeHeaderOnly(t *testing.T, path string) {
	t.Helper()
	h := cdf.NewHeader([]string{VarChannel, VarPingTime, VarEchoRange}, []int{1, 2, 2})
	h.AddVariable(VarPingTime, []string{VarPingTime}, []float64{0})
	h.AddAttribute(VarPingTime, "units", "seconds since 1970-01-01")
	h.AddVariable(VarChannel, []string{VarChannel}, []float64{0})
	h.AddVariable(VarEchoRange, []string{VarEchoRange}, []float64{0})
	h.Define()
	fh, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	if _, err := cdf.Create(fh, h); err != nil {
		t.Fatal(err)
	}
}

func TestNewValidation(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	good := func() Grid {
		return Grid{
			PingTime:  []time.Time{t0, t0.Add(time.Second)},
			Channels:  []string{"38"},
			EchoRange: []float64{0, 1, 2},
			Latitude:  []float64{1, 2},
			Longitude: []float64{3, 4},
			Sv:        sparse.ZerosDense(1, 2, 3),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Grid)
	}{
		{"non-increasing ping_time", func(g *Grid) { g.PingTime[1] = t0 }},
		{"short latitude", func(g *Grid) { g.Latitude = []float64{1} }},
		{"latitude without longitude", func(g *Grid) { g.Longitude = nil }},
		{"wrong Sv shape", func(g *Grid) { g.Sv = sparse.ZerosDense(1, 3, 2) }},
		{"missing Sv", func(g *Grid) { g.Sv = nil }},
		{"no channels", func(g *Grid) { g.Channels = nil; g.Sv = sparse.ZerosDense(0, 2, 3) }},
	}

	if _, err := New(good()); err != nil {
		t.Fatalf("New(valid grid): %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := good()
			tt.mutate(&g)
			if _, err := New(g); err == nil {
				t.Error("New succeeded, want error")
			}
		})
	}
}

func TestReorder(t *testing.T) {
	// Source laid out as (ping_time, echo_range, channel) with shape (2, 3, 2).
	src := make([]float64, 12)
	for i := range src {
		src[i] = float64(i)
	}
	got, err := reorder(src, []string{VarPingTime, VarEchoRange, VarChannel}, []int{2, 3, 2})
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{2, 2, 3}; got.Shape[0] != want[0] || got.Shape[1] != want[1] || got.Shape[2] != want[2] {
		t.Fatalf("shape = %v, want %v", got.Shape, want)
	}
	// src[p][r][c] = (p*3 + r)*2 + c
	for c := 0; c < 2; c++ {
		for p := 0; p < 2; p++ {
			for r := 0; r < 3; r++ {
				if v, want := got.Get(c, p, r), float64((p*3+r)*2+c); v != want {
					t.Errorf("[%d,%d,%d] = %v, want %v", c, p, r, v, want)
				}
			}
		}
	}

	if _, err := reorder(src, []string{"x", "y", "z"}, []int{2, 3, 2}); err == nil {
		t.Error("reorder accepted unknown dimensions")
	}
}

func TestSlab(t *testing.T) {
	d, err := Synthetic(SyntheticSurvey{Pings: 5, Channels: []string{"a", "b"}, Ranges: 3})
	if err != nil {
		t.Fatal(err)
	}
	slab := d.Slab(1, 1, 4)
	if len(slab) != 3 {
		t.Fatalf("len(slab) = %d, want 3", len(slab))
	}
	for i, row := range slab {
		if len(row) != 3 {
			t.Errorf("row %d has %d values, want 3", i, len(row))
		}
		if row[0] != d.Sv().Get(1, i+1, 0) {
			t.Errorf("row %d does not match ping %d", i, i+1)
		}
	}
	if got := d.Slab(0, 2, 2); len(got) != 0 {
		t.Errorf("empty slab has %d rows", len(got))
	}
}
