package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}
	return ParseYAML(cfgFile)
}

// ParseYAML decodes a YAML document. Unknown keys are rejected so typos
// surface at startup.
func ParseYAML(doc []byte) (*ConfigData, error) {
	var yc ConfigYAML
	if err := yaml.UnmarshalStrict(doc, &yc); err != nil {
		return nil, fmt.Errorf("error parsing YAML configuration: %w", err)
	}

	return &ConfigData{
		Dataset: DatasetData{
			Path:        yc.Dataset.Path,
			WarmOnStart: yc.Dataset.WarmOnStart,
			WarmRetries: yc.Dataset.WarmRetries,
		},
		REST: RESTServerData{
			Cert:         yc.REST.Cert,
			Key:          yc.REST.Key,
			Port:         yc.REST.Port,
			ListenAddr:   yc.REST.ListenAddr,
			ReadTimeout:  yc.REST.ReadTimeout,
			WriteTimeout: yc.REST.WriteTimeout,
			AssetsDir:    yc.REST.AssetsDir,
		},
		Render: RenderData{
			OutputDir:     yc.Render.OutputDir,
			Workers:       yc.Render.Workers,
			MemoryEntries: yc.Render.MemoryEntries,
			DefaultVMin:   yc.Render.DefaultVMin,
			DefaultVMax:   yc.Render.DefaultVMax,
			Width:         yc.Render.Width,
			Height:        yc.Render.Height,
		},
		Query: QueryData{
			CacheEntries: yc.Query.CacheEntries,
		},
	}, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with the kebab-case keys used in config files
type ConfigYAML struct {
	Dataset DatasetYAML    `yaml:"dataset"`
	REST    RESTServerYAML `yaml:"rest,omitempty"`
	Render  RenderYAML     `yaml:"render,omitempty"`
	Query   QueryYAML      `yaml:"query,omitempty"`
}

type DatasetYAML struct {
	Path        string `yaml:"path"`
	WarmOnStart bool   `yaml:"warm-on-start,omitempty"`
	WarmRetries int    `yaml:"warm-retries,omitempty"`
}

type RESTServerYAML struct {
	Cert         string `yaml:"cert,omitempty"`
	Key          string `yaml:"key,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	ListenAddr   string `yaml:"listen-addr,omitempty"`
	ReadTimeout  string `yaml:"read-timeout,omitempty"`
	WriteTimeout string `yaml:"write-timeout,omitempty"`
	AssetsDir    string `yaml:"assets-dir,omitempty"`
}

type RenderYAML struct {
	OutputDir     string  `yaml:"output-dir,omitempty"`
	Workers       int     `yaml:"workers,omitempty"`
	MemoryEntries int     `yaml:"memory-entries,omitempty"`
	DefaultVMin   float64 `yaml:"default-vmin,omitempty"`
	DefaultVMax   float64 `yaml:"default-vmax,omitempty"`
	Width         int     `yaml:"width,omitempty"`
	Height        int     `yaml:"height,omitempty"`
}

type QueryYAML struct {
	CacheEntries int `yaml:"cache-entries,omitempty"`
}
