package mission

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vibeteen/mural/pkg/logger"
	"github.com/vibeteen/mural/pkg/metrics"
)

// Cache is the process-wide holder for the mission text. It is created by
// the composition root and passed to whoever renders the mission.
type Cache struct {
	source   Source
	fallback string
	interval time.Duration
	timeout  time.Duration
	logger   logger.Logger

	mu      sync.RWMutex
	current string
	fetched time.Time

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithFallback sets the text used when the source fails or returns nothing.
func WithFallback(text string) Option {
	return func(c *Cache) {
		if strings.TrimSpace(text) != "" {
			c.fallback = text
		}
	}
}

// WithRefreshInterval sets how often Run refetches.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithFetchTimeout bounds a single fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCache creates a Cache over src. Call Init or Run before reading.
func NewCache(src Source, opts ...Option) *Cache {
	c := &Cache{
		source:   src,
		fallback: DefaultFallback,
		interval: 30 * time.Minute,
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("mission")
	}
	return c
}

// Init performs the first fetch. It never fails: errors leave the fallback in place.
func (c *Cache) Init(ctx context.Context) {
	c.Refresh(ctx)
}

// Refresh fetches the text now and returns what is current afterwards.
// Concurrent callers share one fetch.
func (c *Cache) Refresh(ctx context.Context) string {
	v, _, _ := c.group.Do("refresh", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		text, err := c.source.Fetch(fetchCtx)
		text = strings.TrimSpace(text)
		switch {
		case err != nil:
			metrics.RecordMissionRefresh("error")
			c.logger.Warn(ctx, "mission fetch failed, using fallback", logger.Error(err))
			text = c.fallback
		case text == "":
			metrics.RecordMissionRefresh("empty")
			text = c.fallback
		default:
			metrics.RecordMissionRefresh("ok")
		}

		c.mu.Lock()
		c.current = text
		c.fetched = time.Now()
		c.mu.Unlock()
		return text, nil
	})
	s, _ := v.(string)
	return s
}

// Current returns the cached text, or the fallback before the first fetch.
func (c *Cache) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == "" {
		return c.fallback
	}
	return c.current
}

// FetchedAt returns when the cache was last refreshed.
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetched
}

// Clear drops the cached text so Current reports the fallback.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.current = ""
	c.fetched = time.Time{}
	c.mu.Unlock()
}

// Run refreshes on the configured interval until ctx ends. The first fetch
// happens one interval after the call, so callers Init beforehand.
func (c *Cache) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}
