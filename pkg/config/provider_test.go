package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleYAML = `
dataset:
  path: /data/mvbs.nc
  warm-on-start: true
  warm-retries: 5
rest:
  listen-addr: 127.0.0.1
  port: 9090
  read-timeout: 10s
render:
  output-dir: /var/cache/echomap
  workers: 4
  default-vmin: -90
  default-vmax: -20
query:
  cache-entries: -1
`

func TestParseYAML(t *testing.T) {
	cfg, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	want := &ConfigData{
		Dataset: DatasetData{Path: "/data/mvbs.nc", WarmOnStart: true, WarmRetries: 5},
		REST:    RESTServerData{ListenAddr: "127.0.0.1", Port: 9090, ReadTimeout: "10s"},
		Render:  RenderData{OutputDir: "/var/cache/echomap", Workers: 4, DefaultVMin: -90, DefaultVMax: -20},
		Query:   QueryData{CacheEntries: -1},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("ParseYAML mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseYAML([]byte("dataset:\n  pth: x\n")); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &ConfigData{Dataset: DatasetData{Path: "x.nc"}}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.REST.Port != DefaultPort || cfg.Render.DefaultVMin != -80 || cfg.Render.DefaultVMax != -30 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.REST.ReadTimeoutDuration().Seconds() != 30 {
		t.Errorf("read timeout = %v", cfg.REST.ReadTimeoutDuration())
	}

	// A lone 0 dB bound is kept.
	kept := &ConfigData{Render: RenderData{DefaultVMin: -60}}
	kept.ApplyDefaults()
	if kept.Render.DefaultVMin != -60 || kept.Render.DefaultVMax != 0 {
		t.Errorf("explicit bounds overwritten: %+v", kept.Render)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConfigData)
		wantErr string
	}{
		{"missing path", func(c *ConfigData) { c.Dataset.Path = "" }, "dataset.path"},
		{"bad port", func(c *ConfigData) { c.REST.Port = 70000 }, "rest.port"},
		{"cert without key", func(c *ConfigData) { c.REST.Cert = "c.pem" }, "rest.cert"},
		{"bad timeout", func(c *ConfigData) { c.REST.WriteTimeout = "soon" }, "rest.write_timeout"},
		{"inverted scale", func(c *ConfigData) { c.Render.DefaultVMin = -10 }, "default_vmin"},
		{"negative workers", func(c *ConfigData) { c.Render.Workers = -1 }, "render.workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ConfigData{Dataset: DatasetData{Path: "x.nc"}}
			cfg.ApplyDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "config.db")
	p, err := NewSQLiteProvider(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if _, err := p.LoadConfig(); !errors.Is(err, ErrNoConfig) {
		t.Fatalf("empty database: err = %v, want ErrNoConfig", err)
	}

	want, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SaveConfig(want); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	// Saving twice replaces rather than duplicates.
	if err := p.SaveConfig(want); err != nil {
		t.Fatalf("second SaveConfig: %v", err)
	}

	got, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// Reopening an up-to-date database runs no migrations and keeps the data.
	p.Close()
	p2, err := NewSQLiteProvider(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer p2.Close()
	if _, err := p2.LoadConfig(); err != nil {
		t.Errorf("reopened LoadConfig: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echomap.yaml")
	if err := os.WriteFile(path, []byte("dataset:\n  path: survey.nc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(NewYAMLProvider(path))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dataset.Path != "survey.nc" || cfg.Query.CacheEntries != DefaultCacheEntries {
		t.Errorf("Load = %+v", cfg)
	}

	if err := os.WriteFile(path, []byte("rest:\n  port: 80\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(NewYAMLProvider(path)); err == nil {
		t.Error("Load accepted a config without dataset.path")
	}
}
