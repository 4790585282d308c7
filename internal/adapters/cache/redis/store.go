// Package redis keeps result-cache entries in Redis so they outlive one CLI invocation.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoWebProd/obsidian-jira-master/internal/cache"
	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "jm:cache:"
	scanBatch     = 200
)

// Store implements cache.Store. Keys carry a server-side expiry equal to the cache TTL.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  300 * time.Millisecond,
		WriteTimeout: 300 * time.Millisecond,
		MaxRetries:   2,
	})
}

func New(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("read %s: %w", key, err)
	}

	var entry cache.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return cache.Entry{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return entry, true, nil
}

func (s *Store) Set(ctx context.Context, key string, entry cache.Entry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Clear removes every key under the store prefix.
func (s *Store) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("clear cache keys: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("clear cache keys: %w", err)
		}
	}
	return nil
}
