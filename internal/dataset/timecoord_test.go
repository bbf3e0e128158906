package dataset

import (
	"math"
	"testing"
	"time"
)

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units    string
		wantStep time.Duration
		wantRef  time.Time
		wantErr  bool
	}{
		{"seconds since 1970-01-01T00:00:00Z", time.Second, time.Unix(0, 0).UTC(), false},
		{"nanoseconds since 1970-01-01", time.Nanosecond, time.Unix(0, 0).UTC(), false},
		{"days since 2000-01-01 00:00:00", 24 * time.Hour, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"hours since 2019-07-02 12:30:00 UTC", time.Hour, time.Date(2019, 7, 2, 12, 30, 0, 0, time.UTC), false},
		{"Milliseconds since 2019-07-02T06:00", time.Millisecond, time.Date(2019, 7, 2, 6, 0, 0, 0, time.UTC), false},
		{"fortnights since 1970-01-01", 0, time.Time{}, true},
		{"seconds", 0, time.Time{}, true},
		{"seconds since yesterday", 0, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			got, err := parseTimeUnits(tt.units)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseTimeUnits(%q) succeeded, want error", tt.units)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTimeUnits(%q): %v", tt.units, err)
			}
			if got.step != tt.wantStep {
				t.Errorf("step = %v, want %v", got.step, tt.wantStep)
			}
			if !got.ref.Equal(tt.wantRef) {
				t.Errorf("ref = %v, want %v", got.ref, tt.wantRef)
			}
		})
	}
}

func TestDecodeTimes(t *testing.T) {
	u := timeUnits{step: time.Second, ref: time.Date(2019, 7, 2, 0, 0, 0, 0, time.UTC)}

	ints := u.decodeInts([]int64{0, 60, 3600})
	if want := time.Date(2019, 7, 2, 1, 0, 0, 0, time.UTC); !ints[2].Equal(want) {
		t.Errorf("decodeInts[2] = %v, want %v", ints[2], want)
	}

	floats, err := u.decodeFloats([]float64{0.25, 1.5})
	if err != nil {
		t.Fatal(err)
	}
	if want := u.ref.Add(1500 * time.Millisecond); !floats[1].Equal(want) {
		t.Errorf("decodeFloats[1] = %v, want %v", floats[1], want)
	}

	if _, err := u.decodeFloats([]float64{1, math.NaN()}); err == nil {
		t.Error("decodeFloats accepted NaN")
	}
}

func TestEncodeSecondsInverts(t *testing.T) {
	ref := time.Unix(0, 0).UTC()
	ts := []time.Time{
		time.Date(2019, 7, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2019, 7, 2, 0, 0, 1, 250_000_000, time.UTC),
	}
	got, err := timeUnits{step: time.Second, ref: ref}.decodeFloats(encodeSeconds(ts, ref))
	if err != nil {
		t.Fatal(err)
	}
	for i := range ts {
		if !got[i].Equal(ts[i]) {
			t.Errorf("round trip %d = %v, want %v", i, got[i], ts[i])
		}
	}
}
