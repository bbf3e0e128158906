package render

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ctessum/requestcache"
	"go.uber.org/zap"
)

// ErrUnknownFormat is returned for a format with no registered renderer.
var ErrUnknownFormat = errors.New("render: unknown format")

// Artifact is a rendered file on disk.
type Artifact struct {
	Path        string
	ContentType string
}

// Observer is told about every render request that reached a worker. Reused
// is true when the artifact was already on disk.
type Observer func(format Format, elapsed time.Duration, reused bool, err error)

// Manager renders jobs into files under one directory. Concurrent requests for
// the same artifact share a single render, recent results are kept in memory,
// and files left by earlier runs are reused.
type Manager struct {
	dir       string
	renderers map[Format]Renderer
	cache     *requestcache.Cache
	logger    *zap.SugaredLogger
	observer  Observer

	mu sync.Mutex
	// gen is part of every request key. It is bumped when a render fails or a
	// memoised artifact has left the disk, so neither is served from memory
	// again. Entries of older generations age out of the memory cache.
	gen int
}

type renderRequest struct {
	job    *Job
	format Format
	name   string
}

type renderResult struct {
	artifact Artifact
	err      error
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithRenderer registers r for format f, replacing any default.
func WithRenderer(f Format, r Renderer) ManagerOption {
	return func(m *Manager) { m.renderers[f] = r }
}

// WithObserver registers a callback run after every render attempt.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

// NewManager creates dir if needed and starts workers render goroutines.
// memoryEntries bounds the in-memory result cache.
func NewManager(dir string, workers, memoryEntries int, logger *zap.SugaredLogger, opts ...ManagerOption) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("render: creating output directory: %w", err)
	}
	if workers < 1 {
		workers = 1
	}
	if memoryEntries < 1 {
		memoryEntries = 1
	}
	m := &Manager{
		dir: dir,
		renderers: map[Format]Renderer{
			FormatHTML: &HTMLRenderer{Width: "1000px", Height: "700px"},
			FormatPNG:  &ImageRenderer{Width: 1000, Height: 700, Format: FormatPNG},
			FormatJPEG: &ImageRenderer{Width: 1000, Height: 700, Format: FormatJPEG},
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cache = requestcache.NewCache(m.process, workers,
		requestcache.Deduplicate(), requestcache.Memory(memoryEntries))
	return m, nil
}

// Dir returns the output directory.
func (m *Manager) Dir() string { return m.dir }

// FileName returns the artifact file name for a key and format.
func FileName(key string, f Format) string {
	return key + "." + string(f)
}

// Artifact returns the rendered file for job in format f, drawing it if it
// does not exist yet.
func (m *Manager) Artifact(ctx context.Context, job *Job, f Format) (Artifact, error) {
	if _, ok := m.renderers[f]; !ok {
		return Artifact{}, fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
	if job.Key == "" || filepath.Base(job.Key) != job.Key {
		return Artifact{}, fmt.Errorf("render: job key %q is not a plain file name", job.Key)
	}
	name := FileName(job.Key, f)

	for attempt := 0; ; attempt++ {
		gen := m.generation()
		// Failures travel inside renderResult: requestcache never releases
		// de-duplicated waiters when the processor itself returns an error.
		out, _ := m.cache.NewRequest(ctx, renderRequest{job: job, format: f, name: name}, name+"#"+strconv.Itoa(gen)).Result()
		res := out.(renderResult)
		if res.err != nil {
			m.bump(gen)
			return Artifact{}, res.err
		}
		_, err := os.Stat(res.artifact.Path)
		if err == nil {
			return res.artifact, nil
		}
		if attempt > 0 {
			return Artifact{}, fmt.Errorf("render: artifact %s: %w", name, err)
		}
		m.logger.Warnw("memoised artifact is gone from disk, rendering again", "path", res.artifact.Path)
		m.bump(gen)
	}
}

func (m *Manager) generation() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// bump moves to the next generation unless another request already did.
func (m *Manager) bump(seen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == seen {
		m.gen++
	}
}

func (m *Manager) process(ctx context.Context, payload interface{}) (interface{}, error) {
	req := payload.(renderRequest)
	r := m.renderers[req.format]
	path := filepath.Join(m.dir, req.name)
	artifact := Artifact{Path: path, ContentType: r.ContentType()}

	start := time.Now()
	if _, err := os.Stat(path); err == nil {
		m.observe(req.format, start, true, nil)
		return renderResult{artifact: artifact}, nil
	}
	if err := ctx.Err(); err != nil {
		return renderResult{err: err}, nil
	}

	err := m.write(path, r, req.job)
	m.observe(req.format, start, false, err)
	if err != nil {
		m.logger.Errorw("render failed", "key", req.job.Key, "format", req.format, "error", err)
		return renderResult{err: err}, nil
	}
	m.logger.Infow("rendered echogram", "path", path, "elapsed", time.Since(start))
	return renderResult{artifact: artifact}, nil
}

// write renders into a temporary file and renames it into place, so readers
// never see a partial artifact.
func (m *Manager) write(path string, r Renderer, job *Job) (err error) {
	tmp, err := os.CreateTemp(m.dir, ".render-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = r.Render(job, bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (m *Manager) observe(f Format, start time.Time, reused bool, err error) {
	if m.observer != nil {
		m.observer(f, time.Since(start), reused, err)
	}
}
