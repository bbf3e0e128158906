package cachekey

import (
	"regexp"
	"testing"

	"github.com/chrissnell/echomap/internal/selector"
)

func strp(s string) *string { return &s }

var safeKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestDerive(t *testing.T) {
	tests := []struct {
		name       string
		sel        selector.Selection
		vmin, vmax float64
		want       string
	}{
		{
			name: "point with defaults",
			sel:  selector.Selection{PointIndex: 3, ChannelIndex: 1},
			vmin: -80, vmax: -30,
			want: "echogram_p3_c1_vm80_m30",
		},
		{
			name: "fractional bounds",
			sel:  selector.Selection{PointIndex: 0, ChannelIndex: 0},
			vmin: -30.5, vmax: 0.25,
			want: "echogram_p0_c0_vm30p5_0p25",
		},
		{
			name: "time range",
			sel:  selector.Selection{ChannelIndex: 2, Start: strp("2019-07-02T00:00:00"), End: strp("2019-07-02 01:30:15")},
			vmin: -80, vmax: -30,
			want: "echogram_c2_t20190702T000000Z-20190702T013015Z_vm80_m30",
		},
		{
			name: "time range ignores point",
			sel:  selector.Selection{PointIndex: 9, ChannelIndex: 2, Start: strp("2019-07-02T00:00:00Z"), End: strp("2019-07-02T01:30:15Z")},
			vmin: -80, vmax: -30,
			want: "echogram_c2_t20190702T000000Z-20190702T013015Z_vm80_m30",
		},
		{
			name: "sub-second bound",
			sel:  selector.Selection{ChannelIndex: 0, Start: strp("2019-07-02T00:00:00.25Z"), End: strp("2019-07-02T00:00:01Z")},
			vmin: -80, vmax: -30,
			want: "echogram_c0_t20190702T000000p25Z-20190702T000001Z_vm80_m30",
		},
		{
			name: "zone normalised",
			sel:  selector.Selection{ChannelIndex: 0, Start: strp("2019-07-02T02:00:00+02:00"), End: strp("2019-07-02T03:00:00+02:00")},
			vmin: -1e-3, vmax: 1e3,
			want: "echogram_c0_t20190702T000000Z-20190702T010000Z_vm0p001_1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Derive(tt.sel, tt.vmin, tt.vmax)
			if err != nil {
				t.Fatalf("Derive: %v", err)
			}
			if got != tt.want {
				t.Errorf("Derive = %q, want %q", got, tt.want)
			}
			if !safeKey.MatchString(got) {
				t.Errorf("Derive = %q contains unsafe characters", got)
			}
			again, _ := Derive(tt.sel, tt.vmin, tt.vmax)
			if again != got {
				t.Errorf("Derive is not stable: %q then %q", got, again)
			}
		})
	}
}

func TestDeriveSingleFieldChanges(t *testing.T) {
	type input struct {
		sel        selector.Selection
		vmin, vmax float64
	}
	point := input{selector.Selection{PointIndex: 5, ChannelIndex: 1}, -80, -30}
	window := input{selector.Selection{ChannelIndex: 1, Start: strp("2019-07-02T00:00:00"), End: strp("2019-07-02T00:10:00")}, -80, -30}

	variants := map[string]input{
		"point":      point,
		"window":     window,
		"point+1":    {selector.Selection{PointIndex: 6, ChannelIndex: 1}, -80, -30},
		"channel+1":  {selector.Selection{PointIndex: 5, ChannelIndex: 2}, -80, -30},
		"vmin":       {point.sel, -81, -30},
		"vmax":       {point.sel, -80, -29.5},
		"swapped":    {point.sel, -30, -80},
		"start":      {selector.Selection{ChannelIndex: 1, Start: strp("2019-07-02T00:01:00"), End: strp("2019-07-02T00:10:00")}, -80, -30},
		"end":        {selector.Selection{ChannelIndex: 1, Start: strp("2019-07-02T00:00:00"), End: strp("2019-07-02T00:11:00")}, -80, -30},
		"end second": {selector.Selection{ChannelIndex: 1, Start: strp("2019-07-02T00:00:00"), End: strp("2019-07-02T00:10:01")}, -80, -30},
		"w channel":  {selector.Selection{ChannelIndex: 0, Start: strp("2019-07-02T00:00:00"), End: strp("2019-07-02T00:10:00")}, -80, -30},
		"w vmin":     {window.sel, -70, -30},
		"p12 c3":     {selector.Selection{PointIndex: 12, ChannelIndex: 3}, -80, -30},
		"p1 c23":     {selector.Selection{PointIndex: 1, ChannelIndex: 23}, -80, -30},
	}

	seen := map[string]string{}
	for name, in := range variants {
		key, err := Derive(in.sel, in.vmin, in.vmax)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if other, dup := seen[key]; dup {
			t.Errorf("%s and %s share key %q", name, other, key)
		}
		seen[key] = name
	}
}

func TestDeriveErrors(t *testing.T) {
	nan := 0.0
	nan = nan / nan
	tests := []struct {
		name       string
		sel        selector.Selection
		vmin, vmax float64
	}{
		{"NaN vmin", selector.Selection{}, nan, -30},
		{"bad start", selector.Selection{Start: strp("soon"), End: strp("2019-07-02")}, -80, -30},
		{"bad end", selector.Selection{Start: strp("2019-07-02"), End: strp("later")}, -80, -30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Derive(tt.sel, tt.vmin, tt.vmax); err == nil {
				t.Error("Derive succeeded, want error")
			}
		})
	}
}

func TestDigest(t *testing.T) {
	type payload struct {
		Channel int
		Values  []float64
	}
	nan := 0.0
	nan = nan / nan

	a := Digest(payload{1, []float64{1, 2}})
	if a != Digest(payload{1, []float64{1, 2}}) {
		t.Error("Digest is not stable")
	}
	if a == Digest(payload{2, []float64{1, 2}}) {
		t.Error("Digest ignores a changed field")
	}
	if len(a) != 32 {
		t.Errorf("Digest length = %d, want 32 hex characters", len(a))
	}
	withNaN := Digest(payload{1, []float64{nan}})
	if withNaN != Digest(payload{1, []float64{nan}}) {
		t.Error("Digest of a NaN payload is not stable")
	}
}
