// Package session keeps the last-known student record of each logged-in session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"studentportal/internal/student"
)

var (
	ErrNoSession = errors.New("session: no cached student")
	ErrCorrupt   = errors.New("session: cached student is unreadable")
)

// IsSessionError reports whether err means the session must be discarded.
func IsSessionError(err error) bool {
	return errors.Is(err, ErrNoSession) || errors.Is(err, ErrCorrupt)
}

// Cache is the narrow get/set/clear contract over the session store.
type Cache interface {
	Get(ctx context.Context, sessionID string) (student.Record, error)
	Set(ctx context.Context, sessionID string, rec student.Record) error
	Clear(ctx context.Context, sessionID string) error
}

func encode(rec student.Record) ([]byte, error) {
	data, err := json.Marshal(student.ToCached(rec))
	if err != nil {
		return nil, fmt.Errorf("session: marshal: %w", err)
	}
	return data, nil
}

func decode(data string) (student.Record, error) {
	var c student.Cached
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return student.Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	rec := student.FromCached(c)
	if !rec.Loadable() {
		return student.Record{}, fmt.Errorf("%w: invalid national id", ErrCorrupt)
	}
	return rec, nil
}

// RedisCache stores records as JSON strings under prefix+sessionID.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a cache; ttl <= 0 keeps entries until cleared.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "portal:session:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(sessionID string) string { return c.prefix + sessionID }

// Get returns the cached record, refreshing its TTL.
func (c *RedisCache) Get(ctx context.Context, sessionID string) (student.Record, error) {
	data, err := c.client.Get(ctx, c.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return student.Record{}, ErrNoSession
		}
		return student.Record{}, fmt.Errorf("session: get: %w", err)
	}
	rec, err := decode(data)
	if err != nil {
		return student.Record{}, err
	}
	if c.ttl > 0 {
		_ = c.client.Expire(ctx, c.key(sessionID), c.ttl).Err()
	}
	return rec, nil
}

// Set stores rec for sessionID.
func (c *RedisCache) Set(ctx context.Context, sessionID string, rec student.Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(sessionID), data, c.ttl).Err()
}

// Clear removes the entry for sessionID.
func (c *RedisCache) Clear(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, c.key(sessionID)).Err()
}

// MemoryCache is a process-local Cache for development and tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, sessionID string) (student.Record, error) {
	c.mu.Lock()
	data, ok := c.entries[sessionID]
	c.mu.Unlock()
	if !ok {
		return student.Record{}, ErrNoSession
	}
	return decode(data)
}

func (c *MemoryCache) Set(_ context.Context, sessionID string, rec student.Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[sessionID] = string(data)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(_ context.Context, sessionID string) error {
	c.mu.Lock()
	delete(c.entries, sessionID)
	c.mu.Unlock()
	return nil
}

// Put stores raw data; used to seed unreadable entries in tests.
func (c *MemoryCache) Put(sessionID, raw string) {
	c.mu.Lock()
	c.entries[sessionID] = raw
	c.mu.Unlock()
}
