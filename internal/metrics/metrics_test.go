package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/echomap/internal/render"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRender(t *testing.T) {
	m := New()
	m.ObserveRender(render.FormatPNG, 20*time.Millisecond, false, nil)
	m.ObserveRender(render.FormatPNG, time.Millisecond, true, nil)
	m.ObserveRender(render.FormatHTML, time.Millisecond, false, errors.New("boom"))

	tests := []struct {
		format, result string
		want           float64
	}{
		{"png", "rendered", 1},
		{"png", "reused", 1},
		{"html", "error", 1},
		{"html", "rendered", 0},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.renders.WithLabelValues(tt.format, tt.result)); got != tt.want {
			t.Errorf("renders{%s,%s} = %v, want %v", tt.format, tt.result, got, tt.want)
		}
	}
	if n := testutil.CollectAndCount(m.renderDuration); n != 1 {
		t.Errorf("render duration series = %d, want 1", n)
	}
}

func TestObserveLoad(t *testing.T) {
	m := New()
	m.ObserveLoad(time.Second, errors.New("missing"))
	if got := testutil.ToFloat64(m.loaded); got != 0 {
		t.Errorf("loaded after failure = %v", got)
	}
	m.ObserveLoad(time.Second, nil)
	if got := testutil.ToFloat64(m.loaded); got != 1 {
		t.Errorf("loaded after success = %v", got)
	}
	if got := testutil.ToFloat64(m.loads.WithLabelValues("error")); got != 1 {
		t.Errorf("failed loads = %v", got)
	}
	m.DatasetReleased()
	if got := testutil.ToFloat64(m.loaded); got != 0 {
		t.Errorf("loaded after release = %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveQuery("trajectory", "ok")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `echomap_queries_total{endpoint="trajectory",kind="ok"} 1`) {
		t.Errorf("exposition is missing the query counter:\n%s", body)
	}
}
