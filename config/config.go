package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/cheaphours/api"
	"github.com/kilianp07/cheaphours/core/metrics"
	"github.com/kilianp07/cheaphours/core/orchestrator"
	"github.com/kilianp07/cheaphours/infra/logger"
	"github.com/kilianp07/cheaphours/infra/monitoring"
	"github.com/kilianp07/cheaphours/infra/mqtt"
	"github.com/kilianp07/cheaphours/infra/store"
	"github.com/kilianp07/cheaphours/pvpc"
)

// EnvPrefix marks environment overrides; CH_STORE__DSN sets store.dsn.
const EnvPrefix = "CH_"

type Config struct {
	Store     store.Config        `json:"store"`
	Prices    pvpc.Config         `json:"prices"`
	Scheduler orchestrator.Config `json:"scheduler"`
	API       api.Config          `json:"api"`
	Metrics   metrics.Config      `json:"metrics"`
	MQTT      mqtt.Config         `json:"mqtt"`
	Sentry    monitoring.Config   `json:"sentry"`
	Logging   logger.Config       `json:"logging"`
}

// Load reads path, applies CH_ environment overrides, then defaults and
// validates every section. An empty path loads the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
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
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) SetDefaults() {
	c.Store.SetDefaults()
	c.Prices.SetDefaults()
	c.Scheduler.SetDefaults()
	c.API.SetDefaults()
	c.MQTT.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate returns every section error joined.
func (c Config) Validate() error {
	sections := []struct {
		name string
		err  error
	}{
		{"store", c.Store.Validate()},
		{"prices", c.Prices.Validate()},
		{"scheduler", c.Scheduler.Validate()},
		{"mqtt", c.MQTT.Validate()},
		{"logging", c.Logging.Validate()},
	}
	var errs []error
	for _, s := range sections {
		if s.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, s.err))
		}
	}
	return errors.Join(errs...)
}
