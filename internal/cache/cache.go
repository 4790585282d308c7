// Package cache maps request fingerprints to the last outcome seen for them.
//
// Expiry is checked lazily on read; there is no background sweep. Concurrent
// writers to the same fingerprint resolve as last write wins.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	DefaultTTL = 15 * time.Minute
	// NeverLabel is reported by GetTime for fingerprints with no live entry.
	NeverLabel = "Never"
)

type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*Cache)

func WithNow(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(store Store, ttl time.Duration, opts ...Option) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &Cache{store: store, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the live entry for key. An expired entry is removed and reported absent.
func (c *Cache) Get(ctx context.Context, key string) (Entry, bool, error) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return Entry{}, false, fmt.Errorf("get cache entry: %w", err)
	}
	if !ok {
		return Entry{}, false, nil
	}

	if c.now().Sub(entry.Timestamp) >= c.ttl {
		if err := c.store.Delete(ctx, key); err != nil {
			return Entry{}, false, fmt.Errorf("expire cache entry: %w", err)
		}
		return Entry{}, false, nil
	}

	return entry, true, nil
}

// Add stamps entry with the current time, overwrites key, and returns what was stored.
func (c *Cache) Add(ctx context.Context, key string, entry Entry) (Entry, error) {
	entry.Timestamp = c.now()
	if entry.IsError {
		entry.Data = nil
	} else {
		entry.ErrorMessage = ""
	}

	if err := c.store.Set(ctx, key, entry, c.ttl); err != nil {
		return Entry{}, fmt.Errorf("set cache entry: %w", err)
	}
	return entry, nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Age reports how long ago the live entry for key was stored.
func (c *Cache) Age(ctx context.Context, key string) (time.Duration, bool, error) {
	entry, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	return c.now().Sub(entry.Timestamp), true, nil
}

// GetTime renders the entry age for display, e.g. "3 minutes ago", or NeverLabel.
func (c *Cache) GetTime(ctx context.Context, key string) string {
	entry, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return NeverLabel
	}
	return humanize.RelTime(entry.Timestamp, c.now(), "ago", "from now")
}
