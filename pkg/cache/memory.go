package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache is a process-local Service used when Redis is disabled.
// Values are stored as JSON so Get behaves identically across backends.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	maxSize int
	done    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates an in-memory cache with a background janitor.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1024,
		CleanupInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		maxSize: cfg.MaxSize,
		done:    make(chan struct{}),
	}

	go c.janitor(cfg.CleanupInterval)
	return c
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, e := range c.entries {
				if e.expired(now) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	default:
		var err error
		data, err = json.Marshal(value)
		if err != nil {
			return err
		}
	}

	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = memoryEntry{data: data, expiresAt: expiresAt}
	return nil
}

// evictOldest drops the entry closest to expiry. Callers hold the lock.
func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || (!e.expiresAt.IsZero() && e.expiresAt.Before(oldest)) {
			oldestKey = k
			oldest = e.expiresAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		return ErrCacheMiss
	}

	if strPtr, ok := dest.(*string); ok {
		*strPtr = string(e.data)
		return nil
	}
	return json.Unmarshal(e.data, dest)
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, k := range keys {
		if e, ok := c.entries[k]; ok && !e.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
