// Package query answers trajectory, echogram and summary queries over the
// loaded dataset. Every failure is reported as a *Error with a Kind.
package query

import (
	"math"
	"strconv"
	"sync"

	"github.com/golang/groupcache/lru"
	"go.uber.org/zap"

	"github.com/chrissnell/echomap/internal/cachekey"
	"github.com/chrissnell/echomap/internal/dataset"
	"github.com/chrissnell/echomap/internal/render"
	"github.com/chrissnell/echomap/internal/safejson"
	"github.com/chrissnell/echomap/internal/selector"
)

// DatasetSource hands out the shared dataset. *dataset.Handle implements it.
type DatasetSource interface {
	Get() (*dataset.Dataset, error)
}

// DefaultCacheEntries is the payload cache size used when none is configured.
const DefaultCacheEntries = 256

// Service runs queries. It is safe for concurrent use.
type Service struct {
	src    DatasetSource
	logger *zap.SugaredLogger

	mu    sync.Mutex
	cache *lru.Cache // nil when caching is disabled
}

// Option customises a Service.
type Option func(*Service)

// WithCacheEntries sets the number of encoded payloads and Sv slabs kept in memory.
// Zero or less disables the cache.
func WithCacheEntries(n int) Option {
	return func(s *Service) {
		if n <= 0 {
			s.cache = nil
			return
		}
		s.cache = lru.New(n)
	}
}

func NewService(src DatasetSource, logger *zap.SugaredLogger, opts ...Option) *Service {
	s := &Service{
		src:    src,
		logger: logger,
		cache:  lru.New(DefaultCacheEntries),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trajectory is the ship track: one entry per ping, null where a position is missing.
type Trajectory struct {
	Latitude  safejson.Value `json:"latitude"`
	Longitude safejson.Value `json:"longitude"`
	Time      safejson.Value `json:"time"`
}

// AcousticData is the trajectory plus the channel and depth axes.
type AcousticData struct {
	Latitude  safejson.Value `json:"latitude"`
	Longitude safejson.Value `json:"longitude"`
	Time      safejson.Value `json:"time"`
	Channels  safejson.Value `json:"channels"`
	EchoRange safejson.Value `json:"echo_range"`
}

// EchogramPayload carries the Sv values behind an echogram. SvValues is always
// two-dimensional, [ping][depth]; a point selection has exactly one row.
type EchogramPayload struct {
	SvValues safejson.Value `json:"svValues"`
	Depths   safejson.Value `json:"depths"`
	Title    string         `json:"title"`
	Time     safejson.Value `json:"time"`
	Channel  string         `json:"channel"`
}

func (s *Service) dataset() (*dataset.Dataset, error) {
	d, err := s.src.Get()
	if err != nil {
		s.logger.Warnw("dataset unavailable", "error", err)
		return nil, classify(err)
	}
	return d, nil
}

func (s *Service) cached(key string, build func() (any, error)) (any, error) {
	if s.cache != nil {
		s.mu.Lock()
		v, ok := s.cache.Get(key)
		s.mu.Unlock()
		if ok {
			return v, nil
		}
	}
	v, err := build()
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.mu.Lock()
		s.cache.Add(key, v)
		s.mu.Unlock()
	}
	return v, nil
}

func position(d *dataset.Dataset) (lat, lon safejson.Seq, err error) {
	if !d.HasPosition() {
		return nil, nil, newError(KindMissingCoordinate, "dataset has no %s/%s variables", dataset.VarLatitude, dataset.VarLongitude)
	}
	return safejson.Floats(d.Latitude()), safejson.Floats(d.Longitude()), nil
}

// Trajectory returns latitude, longitude and time for every ping.
func (s *Service) Trajectory() (*Trajectory, error) {
	d, err := s.dataset()
	if err != nil {
		return nil, err
	}
	v, err := s.cached("trajectory", func() (any, error) {
		lat, lon, err := position(d)
		if err != nil {
			return nil, err
		}
		return &Trajectory{Latitude: lat, Longitude: lon, Time: safejson.Times(d.PingTimes())}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Trajectory), nil
}

// AcousticData returns the trajectory along with channel labels and depth bins.
func (s *Service) AcousticData() (*AcousticData, error) {
	d, err := s.dataset()
	if err != nil {
		return nil, err
	}
	v, err := s.cached("acoustic-data", func() (any, error) {
		lat, lon, err := position(d)
		if err != nil {
			return nil, err
		}
		return &AcousticData{
			Latitude:  lat,
			Longitude: lon,
			Time:      safejson.Times(d.PingTimes()),
			Channels:  safejson.Strings(d.Channels()),
			EchoRange: safejson.Floats(d.EchoRange()),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*AcousticData), nil
}

func (s *Service) resolve(d *dataset.Dataset, sel selector.Selection) (selector.Resolved, error) {
	r, err := selector.New(d).Resolve(sel)
	if err != nil {
		return selector.Resolved{}, classify(err)
	}
	if r.Window != nil && r.Window.Empty() {
		return selector.Resolved{}, newError(KindEmptySelection, "no pings between %s and %s",
			safejson.Title(r.Window.Start), safejson.Title(r.Window.End))
	}
	return r, nil
}

// slabKey identifies the Sv rows of a resolved selection. Only the rows are
// cached: title and time depend on how the selection was spelled.
type slabKey struct {
	Channel int
	Lo, Hi  int
}

func pings(r selector.Resolved) (lo, hi int) {
	if r.Point != nil {
		return r.Point.PingIndex, r.Point.PingIndex + 1
	}
	return r.Window.Lo, r.Window.Hi
}

func payloadTitle(r selector.Resolved) string {
	if r.Point != nil {
		return r.ChannelLabel + " echogram at " + safejson.Title(r.Point.Timestamp)
	}
	return r.ChannelLabel + " echogram " + safejson.Title(r.Window.Start) + " to " + safejson.Title(r.Window.End)
}

// EchogramPayload extracts the Sv slice for sel. A time range that matches no
// ping fails with KindEmptySelection.
func (s *Service) EchogramPayload(sel selector.Selection) (*EchogramPayload, error) {
	d, err := s.dataset()
	if err != nil {
		return nil, err
	}
	r, err := s.resolve(d, sel)
	if err != nil {
		return nil, err
	}
	lo, hi := pings(r)
	key := "slab:" + cachekey.Digest(slabKey{Channel: r.ChannelIndex, Lo: lo, Hi: hi})

	rows, err := s.cached(key, func() (any, error) {
		rows, err := safejson.Encode(d.Slab(r.ChannelIndex, lo, hi))
		if err != nil {
			return nil, classify(err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	p := &EchogramPayload{
		SvValues: rows.(safejson.Value),
		Depths:   safejson.Floats(d.EchoRange()),
		Title:    payloadTitle(r),
		Channel:  r.ChannelLabel,
	}
	if r.Point != nil {
		p.Time = safejson.Time(r.Point.Timestamp)
	} else {
		p.Time = safejson.Times(d.PingTimes()[lo:hi])
	}
	return p, nil
}

// RenderJob resolves sel into everything the renderer needs, named by the
// artifact cache key.
func (s *Service) RenderJob(sel selector.Selection, vmin, vmax float64) (*render.Job, error) {
	if math.IsNaN(vmin) || math.IsInf(vmin, 0) || math.IsNaN(vmax) || math.IsInf(vmax, 0) {
		return nil, newError(KindInvalidParameter, "vmin and vmax must be finite")
	}
	if vmin >= vmax {
		return nil, newError(KindInvalidParameter, "vmin (%v) must be below vmax (%v)", vmin, vmax)
	}
	d, err := s.dataset()
	if err != nil {
		return nil, err
	}
	r, err := s.resolve(d, sel)
	if err != nil {
		return nil, err
	}
	key, err := cachekey.Derive(sel, vmin, vmax)
	if err != nil {
		return nil, newError(KindInvalidParameter, "%v", err)
	}

	lo, hi := pings(r)
	job := &render.Job{
		Key:      key,
		Channel:  r.ChannelLabel,
		Times:    d.PingTimes()[lo:hi],
		Depths:   d.EchoRange(),
		Values:   d.Slab(r.ChannelIndex, lo, hi),
		VMin:     vmin,
		VMax:     vmax,
		Subtitle: "Sv range: " + formatDB(vmin) + " to " + formatDB(vmax) + " dB",
	}
	if r.Point != nil {
		job.Title = "Echogram at " + safejson.Title(r.Point.Timestamp) + " - Channel: " + r.ChannelLabel
	} else {
		job.Title = "Echogram " + safejson.Title(r.Window.Start) + " to " + safejson.Title(r.Window.End) + " - Channel: " + r.ChannelLabel
	}
	s.logger.Debugw("render job resolved", "key", key, "pings", hi-lo, "channel", r.ChannelLabel)
	return job, nil
}

func formatDB(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
