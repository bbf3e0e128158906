package dataset

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Opener loads a dataset from a path. Open is the default.
type Opener func(path string) (*Dataset, error)

// LoadObserver is told about every load attempt.
type LoadObserver func(elapsed time.Duration, err error)

// Handle owns the process-wide dataset reference. The first successful Get
// loads the file; later calls return the same *Dataset. A failed load leaves
// the handle empty so that the next Get tries again.
type Handle struct {
	path     string
	logger   *zap.SugaredLogger
	opener   Opener
	observer LoadObserver

	// mu serializes loads so concurrent first requests wait on a single open.
	mu sync.Mutex
	ds atomic.Pointer[Dataset]
}

// HandleOption customises a Handle.
type HandleOption func(*Handle)

// WithOpener replaces the function used to read the dataset file.
func WithOpener(o Opener) HandleOption {
	return func(h *Handle) { h.opener = o }
}

// WithLoadObserver registers a callback run after every load attempt.
func WithLoadObserver(o LoadObserver) HandleOption {
	return func(h *Handle) { h.observer = o }
}

// NewHandle creates a handle for the dataset at path. Nothing is read until Get.
func NewHandle(path string, logger *zap.SugaredLogger, opts ...HandleOption) *Handle {
	h := &Handle{
		path:   path,
		logger: logger,
		opener: Open,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Path returns the dataset file path.
func (h *Handle) Path() string { return h.path }

// Get returns the loaded dataset, loading it first if needed.
func (h *Handle) Get() (*Dataset, error) {
	if d := h.ds.Load(); d != nil {
		return d, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Another caller may have finished loading while we waited.
	if d := h.ds.Load(); d != nil {
		return d, nil
	}

	h.logger.Infof("loading dataset %s", h.path)
	start := time.Now()
	d, err := h.opener(h.path)
	elapsed := time.Since(start)
	if h.observer != nil {
		h.observer(elapsed, err)
	}
	if err != nil {
		h.logger.Errorw("dataset load failed", "path", h.path, "elapsed", elapsed, "error", err)
		return nil, err
	}

	h.logger.Infow("dataset loaded",
		"path", h.path,
		"format", d.Format(),
		"pings", d.NumPings(),
		"channels", d.NumChannels(),
		"ranges", d.NumRanges(),
		"elapsed", elapsed)
	h.ds.Store(d)
	return d, nil
}

// Loaded reports whether the dataset is currently held in memory.
func (h *Handle) Loaded() bool {
	return h.ds.Load() != nil
}

// Close releases the dataset reference. It is called once at shutdown.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ds.Swap(nil) != nil {
		h.logger.Infof("released dataset %s", h.path)
	}
}
