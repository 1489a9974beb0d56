package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	CacheSize           int      `json:"cache_size"            yaml:"cache_size"`
	FetchTimeoutMs      int      `json:"fetch_timeout_ms"      yaml:"fetch_timeout_ms"`
	FetchWorkers        int      `json:"fetch_workers"         yaml:"fetch_workers"`
	CommandTimeoutMs    int      `json:"command_timeout_ms"    yaml:"command_timeout_ms"`
	PluginTimeoutMs     int      `json:"plugin_timeout_ms"     yaml:"plugin_timeout_ms"`
	SweepIntervalS      int      `json:"sweep_interval_s"      yaml:"sweep_interval_s"`
	DiagnosticsOnChange bool     `json:"diagnostics_on_change" yaml:"diagnostics_on_change"`
	FileExtensions      []string `json:"file_extensions"       yaml:"file_extensions"`
}

var defaultConfig = Config{
	CacheSize:           256,
	FetchTimeoutMs:      2000,
	FetchWorkers:        4,
	CommandTimeoutMs:    5000,
	PluginTimeoutMs:     10000,
	SweepIntervalS:      60,
	DiagnosticsOnChange: true,
	FileExtensions:      []string{".cql"},
}

func Default() Config {
	cfg := defaultConfig
	cfg.FileExtensions = slices.Clone(defaultConfig.FileExtensions)
	return cfg
}

// Load overlays v, typically the client's initialization options, on base.
func Load(base Config, v any) (Config, error) {
	cfg := base
	cfg.FileExtensions = slices.Clone(base.FileExtensions)
	if v == nil {
		return cfg, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal source: %w", err)
	}

	// only fields present in src will overwrite.
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal into Config: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadFromJSON reads a JSON config document from r. Unknown keys are
// rejected and an empty document yields the defaults.
func LoadFromJSON(r io.Reader) (Config, error) {
	cfg := Default()

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("failed to decode json config: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadFromYAML reads YAML from r into a Config. An empty document yields the
// defaults.
func LoadFromYAML(r io.Reader) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("failed to decode yaml config: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadFile reads a config file, JSON when the name ends in .json and YAML
// otherwise. An empty path yields the defaults.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadFromJSON(f)
	}
	return LoadFromYAML(f)
}

func (c Config) Validate() error {
	switch {
	case c.CacheSize < 1:
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	case c.FetchWorkers < 1:
		return fmt.Errorf("fetch_workers must be positive, got %d", c.FetchWorkers)
	case c.FetchTimeoutMs < 1:
		return fmt.Errorf("fetch_timeout_ms must be positive, got %d", c.FetchTimeoutMs)
	case c.CommandTimeoutMs < 1:
		return fmt.Errorf("command_timeout_ms must be positive, got %d", c.CommandTimeoutMs)
	case c.PluginTimeoutMs < 0:
		return fmt.Errorf("plugin_timeout_ms must not be negative, got %d", c.PluginTimeoutMs)
	case c.SweepIntervalS < 0:
		return fmt.Errorf("sweep_interval_s must not be negative, got %d", c.SweepIntervalS)
	}
	return nil
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

func (c Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMs) * time.Millisecond
}

// PluginTimeout bounds plugin loading. Zero waits for every plugin.
func (c Config) PluginTimeout() time.Duration {
	return time.Duration(c.PluginTimeoutMs) * time.Millisecond
}

// SweepInterval is zero when periodic sweeping is disabled.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalS) * time.Second
}

// Accepts reports whether a document path has one of the configured
// extensions.
func (c Config) Accepts(path string) bool {
	if len(c.FileExtensions) == 0 {
		return true
	}
	for _, ext := range c.FileExtensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}
