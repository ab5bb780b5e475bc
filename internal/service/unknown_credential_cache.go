package service

import (
	"context"
	"sync"
	"time"
)

// UnknownCredentialCache remembers member ids that recently failed public validation so repeated
// scans of a bad QR code do not reach the database. Entries only expire: member ids are generated
// server side, so a cached id never becomes a real member.
type UnknownCredentialCache interface {
	IsUnknown(ctx context.Context, memberID string) (bool, error)
	MarkUnknown(ctx context.Context, memberID string, ttl time.Duration) error
}

type NoopUnknownCredentialCache struct{}

func NewNoopUnknownCredentialCache() *NoopUnknownCredentialCache {
	return &NoopUnknownCredentialCache{}
}

func (NoopUnknownCredentialCache) IsUnknown(context.Context, string) (bool, error) { return false, nil }

func (NoopUnknownCredentialCache) MarkUnknown(context.Context, string, time.Duration) error {
	return nil
}

type InMemoryUnknownCredentialCache struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	maxSize int
}

func NewInMemoryUnknownCredentialCache(maxSize int) *InMemoryUnknownCredentialCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &InMemoryUnknownCredentialCache{entries: make(map[string]time.Time), maxSize: maxSize}
}

func (c *InMemoryUnknownCredentialCache) IsUnknown(_ context.Context, memberID string) (bool, error) {
	now := time.Now().UTC()
	c.mu.RLock()
	expiresAt, ok := c.entries[memberID]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if now.After(expiresAt) {
		c.mu.Lock()
		if exp, still := c.entries[memberID]; still && now.After(exp) {
			delete(c.entries, memberID)
		}
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (c *InMemoryUnknownCredentialCache) MarkUnknown(_ context.Context, memberID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxSize {
		for k, exp := range c.entries {
			if now.After(exp) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= c.maxSize {
			return nil
		}
	}
	c.entries[memberID] = now.Add(ttl)
	return nil
}
