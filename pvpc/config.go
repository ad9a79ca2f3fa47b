package pvpc

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/cheaphours/infra/pricecache"
)

const (
	ModeESIOS = "esios"
	ModeMock  = "mock"

	DefaultAPIURL = "https://api.esios.ree.es/indicators/1001"
	// GeoPeninsula is the ESIOS geo id of the Spanish peninsula.
	GeoPeninsula = 8741
)

// BreakerConfig tunes the circuit breaker around the price feed.
type BreakerConfig struct {
	MaxFailures int `json:"max_failures"`
	OpenSeconds int `json:"open_seconds"`
}

// MockConfig configures the local ESIOS-shaped price server.
type MockConfig struct {
	Address string `json:"address"`
	// PublishTime is the local HH:MM before which tomorrow's prices are
	// reported as unpublished.
	PublishTime string `json:"publish_time"`
}

// Config holds the price feed settings.
type Config struct {
	Mode           string            `json:"mode"`
	APIURL         string            `json:"api_url"`
	Token          string            `json:"token"`
	GeoID          int               `json:"geo_id"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	RatePerSecond  float64           `json:"rate_per_second"`
	Burst          int               `json:"burst"`
	Breaker        BreakerConfig     `json:"breaker"`
	Mock           MockConfig        `json:"mock"`
	Cache          pricecache.Config `json:"cache"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Mode == "" {
		c.Mode = ModeESIOS
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.GeoID == 0 {
		c.GeoID = GeoPeninsula
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 2
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.Breaker.MaxFailures <= 0 {
		c.Breaker.MaxFailures = 3
	}
	if c.Breaker.OpenSeconds <= 0 {
		c.Breaker.OpenSeconds = 60
	}
	if c.Mock.Address == "" {
		c.Mock.Address = "127.0.0.1:8090"
	}
	if c.Mock.PublishTime == "" {
		c.Mock.PublishTime = "20:15"
	}
	c.Cache.SetDefaults()
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeESIOS:
		if c.Token == "" {
			return errors.New("pvpc: token is required in esios mode")
		}
	case ModeMock:
		if _, err := time.Parse("15:04", c.Mock.PublishTime); err != nil {
			return fmt.Errorf("pvpc: invalid mock publish_time %q", c.Mock.PublishTime)
		}
	default:
		return fmt.Errorf("pvpc: unknown mode %s", c.Mode)
	}
	if c.APIURL == "" {
		return errors.New("pvpc: api_url is required")
	}
	return c.Cache.Validate()
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
