package cache

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound is returned when a key is absent or its entry has expired.
var ErrNotFound = errors.New("key not found")

// MemoryProvider is an in-process LRU with per-entry expiry. It backs the
// tracking lookup cache when no Redis connection string is configured.
type MemoryProvider struct {
	entries *lru.Cache[string, entry]
}

type entry struct {
	value     string
	expiresAt time.Time
}

// Bounded so a burst of distinct tracking lookups cannot grow without limit.
const memoryCacheEntries = 10_000

func NewMemoryProvider() (*MemoryProvider, error) {
	c, err := lru.New[string, entry](memoryCacheEntries)
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{entries: c}, nil
}

func (m *MemoryProvider) Get(ctx context.Context, key string) (string, error) {
	_ = ctx
	cached, exists := m.entries.Get(key)
	if !exists {
		return "", ErrNotFound
	}
	if time.Now().After(cached.expiresAt) {
		m.entries.Remove(key)
		return "", ErrNotFound
	}
	return cached.value, nil
}

func (m *MemoryProvider) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	_ = ctx
	m.entries.Add(key, entry{value: value, expiresAt: time.Now().Add(ttl)})
	return nil
}

func (m *MemoryProvider) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.entries.Remove(key)
	return nil
}

func (m *MemoryProvider) Close() error {
	return nil
}
