package config

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// Defaults applied by ApplyDefaults.
const (
	DefaultListenAddr    = "0.0.0.0"
	DefaultPort          = 8080
	DefaultReadTimeout   = "30s"
	DefaultWriteTimeout  = "120s"
	DefaultOutputDir     = "echograms"
	DefaultWorkers       = 2
	DefaultMemoryEntries = 64
	DefaultVMin          = -80.0
	DefaultVMax          = -30.0
	DefaultWidth         = 1000
	DefaultHeight        = 700
	DefaultCacheEntries  = 256
	DefaultWarmRetries   = 3
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Dataset DatasetData    `json:"dataset"`
	REST    RESTServerData `json:"rest"`
	Render  RenderData     `json:"render"`
	Query   QueryData      `json:"query"`
}

// DatasetData locates the acoustic dataset file
type DatasetData struct {
	Path string `json:"path"`
	// WarmOnStart loads the dataset before the server accepts requests.
	WarmOnStart bool `json:"warm_on_start,omitempty"`
	WarmRetries int  `json:"warm_retries,omitempty"`
}

// RESTServerData configures the HTTP listener
type RESTServerData struct {
	Cert         string `json:"cert,omitempty"`
	Key          string `json:"key,omitempty"`
	Port         int    `json:"port,omitempty"`
	ListenAddr   string `json:"listen_addr,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	// AssetsDir serves the front-end from disk instead of the embedded copy.
	AssetsDir string `json:"assets_dir,omitempty"`
}

// RenderData configures echogram rendering
type RenderData struct {
	OutputDir     string  `json:"output_dir,omitempty"`
	Workers       int     `json:"workers,omitempty"`
	MemoryEntries int     `json:"memory_entries,omitempty"`
	DefaultVMin   float64 `json:"default_vmin,omitempty"`
	DefaultVMax   float64 `json:"default_vmax,omitempty"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`
}

// QueryData configures the query service. A negative CacheEntries disables
// payload caching.
type QueryData struct {
	CacheEntries int `json:"cache_entries,omitempty"`
}

// ApplyDefaults fills every unset field
func (c *ConfigData) ApplyDefaults() {
	if c.Dataset.WarmRetries == 0 {
		c.Dataset.WarmRetries = DefaultWarmRetries
	}

	if c.REST.ListenAddr == "" {
		c.REST.ListenAddr = DefaultListenAddr
	}
	if c.REST.Port == 0 {
		c.REST.Port = DefaultPort
	}
	if c.REST.ReadTimeout == "" {
		c.REST.ReadTimeout = DefaultReadTimeout
	}
	if c.REST.WriteTimeout == "" {
		c.REST.WriteTimeout = DefaultWriteTimeout
	}

	if c.Render.OutputDir == "" {
		c.Render.OutputDir = DefaultOutputDir
	}
	if c.Render.Workers == 0 {
		c.Render.Workers = DefaultWorkers
	}
	if c.Render.MemoryEntries == 0 {
		c.Render.MemoryEntries = DefaultMemoryEntries
	}
	// Both zero means neither was configured; 0 dB alone is a legal bound.
	if c.Render.DefaultVMin == 0 && c.Render.DefaultVMax == 0 {
		c.Render.DefaultVMin = DefaultVMin
		c.Render.DefaultVMax = DefaultVMax
	}
	if c.Render.Width == 0 {
		c.Render.Width = DefaultWidth
	}
	if c.Render.Height == 0 {
		c.Render.Height = DefaultHeight
	}

	if c.Query.CacheEntries == 0 {
		c.Query.CacheEntries = DefaultCacheEntries
	}
}

// Validate reports every invalid setting at once
func (c *ConfigData) Validate() error {
	var errs []error
	if c.Dataset.Path == "" {
		errs = append(errs, errors.New("dataset.path is required"))
	}
	if c.Dataset.WarmRetries < 0 {
		errs = append(errs, fmt.Errorf("dataset.warm_retries must not be negative, got %d", c.Dataset.WarmRetries))
	}
	if c.REST.Port < 0 || c.REST.Port > 65535 {
		errs = append(errs, fmt.Errorf("rest.port %d is out of range", c.REST.Port))
	}
	if (c.REST.Cert == "") != (c.REST.Key == "") {
		errs = append(errs, errors.New("rest.cert and rest.key must be set together"))
	}
	for name, v := range map[string]string{"rest.read_timeout": c.REST.ReadTimeout, "rest.write_timeout": c.REST.WriteTimeout} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s %q is not a positive duration", name, v))
		}
	}
	if c.Render.Workers < 0 {
		errs = append(errs, fmt.Errorf("render.workers must not be negative, got %d", c.Render.Workers))
	}
	if c.Render.MemoryEntries < 0 {
		errs = append(errs, fmt.Errorf("render.memory_entries must not be negative, got %d", c.Render.MemoryEntries))
	}
	vmin, vmax := c.Render.DefaultVMin, c.Render.DefaultVMax
	if math.IsNaN(vmin) || math.IsInf(vmin, 0) || math.IsNaN(vmax) || math.IsInf(vmax, 0) || vmin >= vmax {
		errs = append(errs, fmt.Errorf("render.default_vmin (%v) must be below render.default_vmax (%v)", vmin, vmax))
	}
	if c.Render.Width < 0 || c.Render.Height < 0 {
		errs = append(errs, fmt.Errorf("render size %dx%d is invalid", c.Render.Width, c.Render.Height))
	}
	return errors.Join(errs...)
}

// ReadTimeoutDuration parses rest.read_timeout. Call after Validate.
func (r RESTServerData) ReadTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(r.ReadTimeout)
	return d
}

// WriteTimeoutDuration parses rest.write_timeout. Call after Validate.
func (r RESTServerData) WriteTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(r.WriteTimeout)
	return d
}

// Load reads, defaults and validates the configuration from provider.
func Load(provider ConfigProvider) (*ConfigData, error) {
	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
