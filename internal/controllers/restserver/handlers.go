package restserver

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/chrissnell/echomap/internal/metrics"
	"github.com/chrissnell/echomap/internal/query"
	"github.com/chrissnell/echomap/internal/render"
	"github.com/chrissnell/echomap/pkg/responseformat"
	"go.uber.org/zap"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	query       *query.Service
	renders     ArtifactStore
	dataset     DatasetStatus
	metrics     *metrics.Metrics
	defaultVMin float64
	defaultVMax float64
	formatter   *responseformat.Formatter
	logger      *zap.SugaredLogger
}

// NewHandlers creates a new handlers instance
func NewHandlers(deps Dependencies, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{
		query:       deps.Query,
		renders:     deps.Renders,
		dataset:     deps.Dataset,
		metrics:     deps.Metrics,
		defaultVMin: deps.DefaultVMin,
		defaultVMax: deps.DefaultVMax,
		formatter:   responseformat.NewFormatter(),
		logger:      logger,
	}
}

// EmptyResult is returned with 200 when a time window matched no ping.
type EmptyResult struct {
	Empty   bool   `json:"empty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusFor maps a query error kind to an HTTP status.
func statusFor(kind query.Kind) int {
	switch kind {
	case query.KindIndexOutOfRange, query.KindInvalidTimeRange, query.KindInvalidParameter:
		return http.StatusBadRequest
	case query.KindEmptySelection:
		return http.StatusOK
	case query.KindDatasetUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handlers) observe(endpoint, kind string) {
	if h.metrics != nil {
		h.metrics.ObserveQuery(endpoint, kind)
	}
}

// respond writes data, or the error in the standard envelope.
func (h *Handlers) respond(w http.ResponseWriter, req *http.Request, endpoint string, data any, err error) {
	if err != nil {
		h.writeError(w, req, endpoint, err)
		return
	}
	h.observe(endpoint, "ok")
	if err := h.formatter.WriteResponse(w, req, http.StatusOK, data); err != nil {
		h.logger.Errorw("error writing response", "endpoint", endpoint, "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, endpoint string, err error) {
	var qe *query.Error
	if !errors.As(err, &qe) {
		qe = &query.Error{Kind: query.KindInternal, Message: "internal error", Err: err}
	}
	h.observe(endpoint, string(qe.Kind))

	status := statusFor(qe.Kind)
	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Errorw("query failed", "endpoint", endpoint, "kind", qe.Kind, "error", err)
	default:
		h.logger.Debugw("query rejected", "endpoint", endpoint, "kind", qe.Kind, "error", err)
	}

	var werr error
	if qe.Kind == query.KindEmptySelection {
		werr = h.formatter.WriteResponse(w, req, status, EmptyResult{Empty: true, Kind: string(qe.Kind), Message: qe.Message})
	} else {
		werr = h.formatter.WriteError(w, req, status, string(qe.Kind), qe.Message)
	}
	if werr != nil {
		h.logger.Errorw("error writing error response", "endpoint", endpoint, "error", werr)
	}
}

// GetAcousticData handles /api/acoustic-data
func (h *Handlers) GetAcousticData(w http.ResponseWriter, req *http.Request) {
	data, err := h.query.AcousticData()
	h.respond(w, req, "acoustic-data", data, err)
}

// GetTrajectory handles /api/trajectory
func (h *Handlers) GetTrajectory(w http.ResponseWriter, req *http.Request) {
	data, err := h.query.Trajectory()
	h.respond(w, req, "trajectory", data, err)
}

// GetEchogramData handles /api/echogram-data
func (h *Handlers) GetEchogramData(w http.ResponseWriter, req *http.Request) {
	sel, err := selectionParams(req.URL.Query())
	if err != nil {
		h.writeError(w, req, "echogram-data", err)
		return
	}
	data, err := h.query.EchogramPayload(sel)
	h.respond(w, req, "echogram-data", data, err)
}

// GetSummary handles /api/summary
func (h *Handlers) GetSummary(w http.ResponseWriter, req *http.Request) {
	data, err := h.query.Summary()
	h.respond(w, req, "summary", data, err)
}

// GetEchogram returns the handler serving echograms rendered in format f.
func (h *Handlers) GetEchogram(f render.Format) http.HandlerFunc {
	endpoint := "echogram." + string(f)
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		sel, err := selectionParams(q)
		if err != nil {
			h.writeError(w, req, endpoint, err)
			return
		}
		vmin, vmax, err := scaleParams(q, h.defaultVMin, h.defaultVMax)
		if err != nil {
			h.writeError(w, req, endpoint, err)
			return
		}
		job, err := h.query.RenderJob(sel, vmin, vmax)
		if err != nil {
			h.writeError(w, req, endpoint, err)
			return
		}

		art, err := h.renders.Artifact(req.Context(), job, f)
		if err != nil {
			h.writeError(w, req, endpoint, &query.Error{Kind: query.KindInternal, Message: "rendering failed", Err: err})
			return
		}
		fh, err := os.Open(art.Path)
		if err != nil {
			h.writeError(w, req, endpoint, &query.Error{Kind: query.KindInternal, Message: "rendered echogram is missing", Err: err})
			return
		}
		defer fh.Close()

		h.observe(endpoint, "ok")
		var modTime time.Time
		if info, err := fh.Stat(); err == nil {
			modTime = info.ModTime()
		}
		w.Header().Set("Content-Type", art.ContentType)
		w.Header().Set("X-Echogram-Key", job.Key)
		http.ServeContent(w, req, render.FileName(job.Key, f), modTime, fh)
	}
}

// GetTransect handles /api/transect.csv
func (h *Handlers) GetTransect(w http.ResponseWriter, req *http.Request) {
	const endpoint = "transect"
	q := req.URL.Query()
	channel, err := intParam(q, "channelIndex", 0)
	if err != nil {
		h.writeError(w, req, endpoint, err)
		return
	}
	minDepth, err := floatParam(q, "minDepth")
	if err != nil {
		h.writeError(w, req, endpoint, err)
		return
	}
	maxDepth, err := floatParam(q, "maxDepth")
	if err != nil {
		h.writeError(w, req, endpoint, err)
		return
	}

	// Buffer so that a failure can still become a JSON error response.
	var buf bytes.Buffer
	if err := h.query.Transect(channel, minDepth, maxDepth, &buf); err != nil {
		h.writeError(w, req, endpoint, err)
		return
	}
	h.observe(endpoint, "ok")
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transect.csv"`)
	w.Write(buf.Bytes())
}

// HealthStatus is the /healthz body.
type HealthStatus struct {
	Status  string `json:"status"`
	Dataset string `json:"dataset"`
	Loaded  bool   `json:"loaded"`
}

// Healthz reports whether the dataset is in memory. Not loaded yet is still
// healthy: the first query loads it.
func (h *Handlers) Healthz(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, http.StatusOK, HealthStatus{
		Status:  "ok",
		Dataset: h.dataset.Path(),
		Loaded:  h.dataset.Loaded(),
	})
}
