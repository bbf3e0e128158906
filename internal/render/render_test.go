package render

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testJob(pings int) *Job {
	t0 := time.Date(2019, 7, 2, 0, 0, 0, 0, time.UTC)
	j := &Job{
		Key:      "echogram_p0_c0_vm80_m30",
		Title:    "Echogram at 2019-07-02T00:00:00 - Channel: 38 kHz",
		Subtitle: "Sv range: -80 to -30 dB",
		Channel:  "38 kHz",
		Depths:   []float64{0, 1, 2, 3, 4},
		VMin:     -80,
		VMax:     -30,
	}
	for p := 0; p < pings; p++ {
		j.Times = append(j.Times, t0.Add(time.Duration(p)*time.Second))
		j.Values = append(j.Values, []float64{-90, -70, math.NaN(), -40, -20})
	}
	return j
}

func TestHTMLRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := &HTMLRenderer{Width: "800px", Height: "600px"}
	if err := r.Render(testJob(3), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"<html", "Echogram at 2019-07-02T00:00:00 - Channel: 38 kHz", "#783C28", "38 kHz"} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML output does not contain %q", want)
		}
	}
}

func TestImageRenderer(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		magic  []byte
		pings  int
	}{
		{"png window", FormatPNG, []byte("\x89PNG"), 4},
		{"png single ping", FormatPNG, []byte("\x89PNG"), 1},
		{"jpeg", FormatJPEG, []byte{0xFF, 0xD8}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := &ImageRenderer{Width: 320, Height: 240, Format: tt.format}
			if err := r.Render(testJob(tt.pings), &buf); err != nil {
				t.Fatalf("Render: %v", err)
			}
			if !bytes.HasPrefix(buf.Bytes(), tt.magic) {
				t.Errorf("output starts with %x, want %x", buf.Bytes()[:4], tt.magic)
			}
		})
	}
}

func TestJobValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Job)
	}{
		{"no pings", func(j *Job) { j.Times, j.Values = nil, nil }},
		{"ragged row", func(j *Job) { j.Values[0] = j.Values[0][:2] }},
		{"row count", func(j *Job) { j.Values = j.Values[:1] }},
		{"empty scale", func(j *Job) { j.VMin = j.VMax }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := testJob(2)
			tt.mutate(j)
			if err := (&HTMLRenderer{}).Render(j, io.Discard); err == nil {
				t.Error("Render accepted an invalid job")
			}
		})
	}
}

// countingRenderer writes a fixed body and counts calls.
type countingRenderer struct {
	calls atomic.Int32
	delay time.Duration
	fail  atomic.Bool
}

func (c *countingRenderer) ContentType() string { return "text/plain" }

func (c *countingRenderer) Render(job *Job, w io.Writer) error {
	c.calls.Add(1)
	time.Sleep(c.delay)
	if c.fail.Load() {
		return errors.New("renderer broke")
	}
	_, err := io.WriteString(w, job.Key)
	return err
}

func newTestManager(t *testing.T, r Renderer) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), 2, 16, zap.NewNop().Sugar(), WithRenderer(FormatHTML, r))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestManagerDeduplicates(t *testing.T) {
	r := &countingRenderer{delay: 30 * time.Millisecond}
	m := newTestManager(t, r)
	job := testJob(1)

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := m.Artifact(context.Background(), job, FormatHTML)
			if err != nil {
				t.Errorf("Artifact: %v", err)
				return
			}
			paths[i] = a.Path
		}(i)
	}
	wg.Wait()

	if n := r.calls.Load(); n != 1 {
		t.Errorf("renderer called %d times, want 1", n)
	}
	want := filepath.Join(m.Dir(), "echogram_p0_c0_vm80_m30.html")
	for i, p := range paths {
		if p != want {
			t.Errorf("path %d = %q, want %q", i, p, want)
		}
	}
	body, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != job.Key {
		t.Errorf("artifact body = %q", body)
	}
}

func TestManagerReusesFileOnDisk(t *testing.T) {
	r := &countingRenderer{}
	dir := t.TempDir()
	job := testJob(1)
	if err := os.WriteFile(filepath.Join(dir, FileName(job.Key, FormatHTML)), []byte("earlier run"), 0o644); err != nil {
		t.Fatal(err)
	}

	var reused []bool
	m, err := NewManager(dir, 1, 4, zap.NewNop().Sugar(), WithRenderer(FormatHTML, r),
		WithObserver(func(_ Format, _ time.Duration, wasReused bool, _ error) { reused = append(reused, wasReused) }))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Artifact(context.Background(), job, FormatHTML); err != nil {
		t.Fatal(err)
	}
	if n := r.calls.Load(); n != 0 {
		t.Errorf("renderer called %d times for an existing artifact", n)
	}
	if len(reused) != 1 || !reused[0] {
		t.Errorf("observer saw %v, want [true]", reused)
	}
}

func TestManagerRetriesAfterFailure(t *testing.T) {
	r := &countingRenderer{}
	r.fail.Store(true)
	m := newTestManager(t, r)
	job := testJob(1)

	if _, err := m.Artifact(context.Background(), job, FormatHTML); err == nil {
		t.Fatal("Artifact succeeded with a failing renderer")
	}
	entries, _ := os.ReadDir(m.Dir())
	if len(entries) != 0 {
		t.Errorf("failed render left %d files behind", len(entries))
	}

	r.fail.Store(false)
	a, err := m.Artifact(context.Background(), job, FormatHTML)
	if err != nil {
		t.Fatalf("Artifact after recovery: %v", err)
	}
	if _, err := os.Stat(a.Path); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
	if n := r.calls.Load(); n != 2 {
		t.Errorf("renderer called %d times, want 2", n)
	}
}

func TestManagerRendersAgainWhenFileRemoved(t *testing.T) {
	r := &countingRenderer{}
	m := newTestManager(t, r)
	job := testJob(1)

	first, err := m.Artifact(context.Background(), job, FormatHTML)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(first.Path); err != nil {
		t.Fatal(err)
	}

	second, err := m.Artifact(context.Background(), job, FormatHTML)
	if err != nil {
		t.Fatalf("Artifact after the file was removed: %v", err)
	}
	if second.Path != first.Path {
		t.Errorf("path = %q, want %q", second.Path, first.Path)
	}
	if _, err := os.Stat(second.Path); err != nil {
		t.Errorf("artifact not redrawn: %v", err)
	}
	if n := r.calls.Load(); n != 2 {
		t.Errorf("renderer called %d times, want 2", n)
	}

	// Memoised again under the new generation.
	if _, err := m.Artifact(context.Background(), job, FormatHTML); err != nil {
		t.Fatal(err)
	}
	if n := r.calls.Load(); n != 2 {
		t.Errorf("renderer called %d times after a memoised hit, want 2", n)
	}
}

func TestManagerRejects(t *testing.T) {
	m := newTestManager(t, &countingRenderer{})

	if _, err := m.Artifact(context.Background(), testJob(1), Format("svg")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("unknown format error = %v", err)
	}
	bad := testJob(1)
	bad.Key = "../escape"
	if _, err := m.Artifact(context.Background(), bad, FormatHTML); err == nil {
		t.Error("Artifact accepted a key with a path separator")
	}
}
