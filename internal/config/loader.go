package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "MURAL_"
	envFileVar = "MURAL_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if MURAL_CONFIG is set
//  3. env (prefix MURAL_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// MURAL_QUEUE_SIZE -> queue_size. Keys stay flat so underscores survive.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(envPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	if _, err := time.LoadLocation(c.CalendarTimezone); err != nil {
		return invalid("calendar_timezone %q: %v", c.CalendarTimezone, err)
	}
	for kind, xp := range c.XPTable {
		if xp <= 0 {
			return invalid("xp_table.%s must be positive, got %d", kind, xp)
		}
	}
	if c.TileWidth <= 0 || c.TileHeight <= 0 {
		return invalid("tile pitch must be positive, got %gx%g", c.TileWidth, c.TileHeight)
	}
	if c.SpiralMarginRings < 0 {
		return invalid("spiral_margin_rings must not be negative")
	}
	if c.QueueSize <= 0 || c.WorkerCount <= 0 {
		return invalid("queue_size and worker_count must be positive")
	}
	if c.MissionRefreshInterval <= 0 {
		return invalid("mission_refresh_interval must be positive")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return invalid("rate limits must not be negative")
	}
	if c.MaxLeaderboardLimit <= 0 {
		return invalid("max_leaderboard_limit must be positive")
	}
	return nil
}
