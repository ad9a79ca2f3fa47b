package orchestrator

import (
	"fmt"
	"time"
)

// Config controls the background generation and sweep loops.
type Config struct {
	// Timezone is the IANA zone in which dates and the generation time are
	// interpreted.
	Timezone string `json:"timezone"`
	// GenerationTime is the local HH:MM at which tomorrow is generated.
	GenerationTime       string `json:"generation_time"`
	RetryIntervalMinutes int    `json:"retry_interval_minutes"`
	TickSeconds          int    `json:"tick_seconds"`
	StepTimeoutSeconds   int    `json:"step_timeout_seconds"`
	SkipBackfill         bool   `json:"skip_backfill"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Europe/Madrid"
	}
	if c.GenerationTime == "" {
		c.GenerationTime = "20:30"
	}
	if c.RetryIntervalMinutes <= 0 {
		c.RetryIntervalMinutes = 30
	}
	if c.TickSeconds <= 0 {
		c.TickSeconds = 60
	}
	if c.StepTimeoutSeconds <= 0 {
		c.StepTimeoutSeconds = 120
	}
}

// Validate checks the timezone and generation time.
func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if _, _, err := c.GenerationClock(); err != nil {
		return err
	}
	return nil
}

// Location returns the configured zone, UTC when it cannot be loaded.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GenerationClock parses GenerationTime.
func (c Config) GenerationClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.GenerationTime)
	if err != nil {
		return 0, 0, fmt.Errorf("generation_time %q: expected HH:MM", c.GenerationTime)
	}
	return t.Hour(), t.Minute(), nil
}

func (c Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMinutes) * time.Minute
}

func (c Config) Tick() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

func (c Config) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutSeconds) * time.Second
}
