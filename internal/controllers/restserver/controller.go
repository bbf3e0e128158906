package restserver

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/echomap/internal/log"
	"github.com/chrissnell/echomap/internal/metrics"
	"github.com/chrissnell/echomap/internal/query"
	"github.com/chrissnell/echomap/internal/render"
	"github.com/chrissnell/echomap/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ArtifactStore produces rendered echogram files. *render.Manager satisfies it.
type ArtifactStore interface {
	Artifact(ctx context.Context, job *render.Job, f render.Format) (render.Artifact, error)
}

// DatasetStatus reports whether the dataset is in memory. *dataset.Handle
// satisfies it.
type DatasetStatus interface {
	Loaded() bool
	Path() string
}

// Dependencies are the components the REST server exposes.
type Dependencies struct {
	Query   *query.Service
	Renders ArtifactStore
	Dataset DatasetStatus
	// Metrics is optional; /metrics is not routed without it.
	Metrics *metrics.Metrics
	// Colour scale used when a request omits vmin/vmax.
	DefaultVMin float64
	DefaultVMax float64
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	FS         fs.FS
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, deps Dependencies, logger *zap.SugaredLogger) (*Controller, error) {
	if deps.Query == nil || deps.Renders == nil || deps.Dataset == nil {
		return nil, fmt.Errorf("REST server needs a query service, an artifact store and a dataset handle")
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = config.DefaultListenAddr
	}

	// Set default HTTP port if not specified
	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", config.DefaultPort)
		rc.Port = config.DefaultPort
	}

	assets, err := GetAssets(rc.AssetsDir)
	if err != nil {
		return nil, err
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		FS:         assets,
		logger:     logger,
	}
	ctrl.handlers = NewHandlers(deps, logger)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.Router()
	ctrl.Server.ReadTimeout = rc.ReadTimeoutDuration()
	ctrl.Server.WriteTimeout = rc.WriteTimeoutDuration()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server and stops it when the context ends
func (c *Controller) StartController() error {
	c.logger.Infow("starting REST server", "addr", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		var err error
		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Router configures the HTTP router with all endpoints
func (c *Controller) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(c.logger))

	api := router.PathPrefix("/api").Methods(http.MethodGet).Subrouter()
	api.HandleFunc("/acoustic-data", c.handlers.GetAcousticData)
	api.HandleFunc("/trajectory", c.handlers.GetTrajectory)
	api.HandleFunc("/echogram-data", c.handlers.GetEchogramData)
	api.HandleFunc("/echogram", c.handlers.GetEchogram(render.FormatHTML))
	api.HandleFunc("/echogram.png", c.handlers.GetEchogram(render.FormatPNG))
	api.HandleFunc("/echogram.jpg", c.handlers.GetEchogram(render.FormatJPEG))
	api.HandleFunc("/summary", c.handlers.GetSummary)
	api.HandleFunc("/transect.csv", c.handlers.GetTransect)

	router.HandleFunc("/healthz", c.handlers.Healthz).Methods(http.MethodGet)
	if c.handlers.metrics != nil {
		router.Handle("/metrics", c.handlers.metrics.Handler()).Methods(http.MethodGet)
	}

	// Static file serving
	router.PathPrefix("/").Handler(http.FileServer(http.FS(c.FS)))

	return router
}
