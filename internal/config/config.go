// Package config defines service configuration structures and loading hooks.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DataDir is the Badger directory. Empty keeps the store in memory.
	DataDir string `koanf:"data_dir"`

	// RedisURL points at the session store. Empty keeps sessions in memory.
	RedisURL string `koanf:"redis_url"`

	// SessionNamespace prefixes every remembered session key.
	SessionNamespace string `koanf:"session_namespace"`

	// QueueSize bounds the outbox of pending writes.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of outbox workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the number of remembered publish submissions.
	DedupeSize int `koanf:"dedupe_size"`

	// XPTable maps action kinds to experience points.
	XPTable map[string]int `koanf:"xp_table"`

	// AllowSelfSupport lets authors mark support on their own items.
	AllowSelfSupport bool `koanf:"allow_self_support"`

	// CalendarTimezone is the IANA zone used to turn timestamps into calendar days.
	CalendarTimezone string `koanf:"calendar_timezone"`

	// TileWidth and TileHeight are the board's hex pitch in plane units.
	TileWidth  float64 `koanf:"tile_width"`
	TileHeight float64 `koanf:"tile_height"`

	// SpiralMarginRings is how many rings the board walk precomputes past the current need.
	SpiralMarginRings int `koanf:"spiral_margin_rings"`

	// MissionRefreshInterval controls how often the daily mission text is refetched.
	MissionRefreshInterval time.Duration `koanf:"mission_refresh_interval"`

	// MissionFallback is shown when the mission source fails or returns nothing.
	MissionFallback string `koanf:"mission_fallback"`

	// RateLimitRPS and RateLimitBurst configure the per-member token bucket.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		SessionNamespace: "vibeteen_user_session",
		QueueSize:        10_000,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       100_000,
		XPTable: map[string]int{
			"prayed":  10,
			"helped":  15,
			"shared":  25,
			"invited": 50,
		},
		AllowSelfSupport:       true,
		CalendarTimezone:       "UTC",
		TileWidth:              94,
		TileHeight:             70,
		SpiralMarginRings:      2,
		MissionRefreshInterval: 30 * time.Minute,
		MissionFallback:        "Ame o seu próximo",
		RateLimitRPS:           10,
		RateLimitBurst:         20,
		MaxLeaderboardLimit:    100,
	}
}

// Location resolves CalendarTimezone. Validate has already rejected unknown zones.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.CalendarTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
