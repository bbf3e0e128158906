package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/chrissnell/echomap/internal/controllers/restserver"
	"github.com/chrissnell/echomap/internal/dataset"
	"github.com/chrissnell/echomap/internal/log"
	"github.com/chrissnell/echomap/internal/metrics"
	"github.com/chrissnell/echomap/internal/query"
	"github.com/chrissnell/echomap/internal/render"
	"github.com/chrissnell/echomap/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance. cfg must already carry defaults.
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Components holds everything Run wires together.
type Components struct {
	Metrics *metrics.Metrics
	Dataset *dataset.Handle
	Query   *query.Service
	Renders *render.Manager
}

// Build constructs the components without starting anything.
func (a *App) Build() (*Components, error) {
	m := metrics.New()
	handle := dataset.NewHandle(a.cfg.Dataset.Path, a.logger.With("component", "dataset"),
		dataset.WithLoadObserver(m.ObserveLoad))

	svc := query.NewService(handle, a.logger.With("component", "query"),
		query.WithCacheEntries(a.cfg.Query.CacheEntries))

	rc := a.cfg.Render
	renders, err := render.NewManager(rc.OutputDir, rc.Workers, rc.MemoryEntries, a.logger.With("component", "render"),
		render.WithObserver(m.ObserveRender),
		render.WithRenderer(render.FormatHTML, &render.HTMLRenderer{
			Width:  strconv.Itoa(rc.Width) + "px",
			Height: strconv.Itoa(rc.Height) + "px",
		}),
		render.WithRenderer(render.FormatPNG, &render.ImageRenderer{Width: rc.Width, Height: rc.Height, Format: render.FormatPNG}),
		render.WithRenderer(render.FormatJPEG, &render.ImageRenderer{Width: rc.Width, Height: rc.Height, Format: render.FormatJPEG}),
	)
	if err != nil {
		return nil, err
	}

	return &Components{Metrics: m, Dataset: handle, Query: svc, Renders: renders}, nil
}

// Warm loads the dataset, retrying with exponential backoff up to retries
// times.
func Warm(h *dataset.Handle, retries int, logger *zap.SugaredLogger) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	return backoff.RetryNotify(
		func() error {
			_, err := h.Get()
			return err
		},
		backoff.WithMaxRetries(b, uint64(retries)),
		func(err error, d time.Duration) {
			logger.Warnf("%v: retrying in %v", err, d)
		},
	)
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := a.Build()
	if err != nil {
		return err
	}
	defer func() {
		c.Dataset.Close()
		c.Metrics.DatasetReleased()
	}()

	if a.cfg.Dataset.WarmOnStart {
		if err := Warm(c.Dataset, a.cfg.Dataset.WarmRetries, a.logger); err != nil {
			return fmt.Errorf("loading dataset at startup: %w", err)
		}
	}

	rest, err := restserver.NewController(ctx, &wg, a.cfg.REST, restserver.Dependencies{
		Query:       c.Query,
		Renders:     c.Renders,
		Dataset:     c.Dataset,
		Metrics:     c.Metrics,
		DefaultVMin: a.cfg.Render.DefaultVMin,
		DefaultVMax: a.cfg.Render.DefaultVMax,
	}, a.logger.With("component", "rest"))
	if err != nil {
		return err
	}
	if err := rest.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
