package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tyreaid/roadaid/core/dispatch"
	"github.com/tyreaid/roadaid/core/metrics"
	"github.com/tyreaid/roadaid/core/scheduler"
	"github.com/tyreaid/roadaid/infra/alert"
	"github.com/tyreaid/roadaid/jobs/expiry"
)

// Config is the root configuration of the dispatch service.
type Config struct {
	HTTP     HTTPConfig       `json:"http"`
	Store    StoreConfig      `json:"store"`
	Geo      GeoConfig        `json:"geo"`
	Dispatch dispatch.Config  `json:"dispatch"`
	Sync     scheduler.Config `json:"sync"`
	Expiry   expiry.Config    `json:"expiry"`
	Metrics  metrics.Config   `json:"metrics"`
	Alerts   alert.Config     `json:"alerts"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// BearerToken protects every endpoint when non-empty.
	BearerToken string `json:"bearer_token"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// StoreConfig selects the request store backend.
type StoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `json:"backend"`
	DSN     string `json:"dsn"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("store: postgres backend requires a dsn")
		}
		return nil
	default:
		return fmt.Errorf("store: unknown backend %s", c.Backend)
	}
}

// GeoConfig tunes the provider index.
type GeoConfig struct {
	// CellSizeDeg is the grid cell size in degrees; zero keeps the built-in
	// default.
	CellSizeDeg float64 `json:"cell_size_deg"`
}

// Load reads the configuration file, applies K_ environment overrides and
// validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.HTTP.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Sync.SetDefaults()
	cfg.Expiry.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Alerts.SetDefaults()
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Sync.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Expiry.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Alerts.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
