package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	createdAt time.Time
	expiresAt time.Time
}

// MemoryBackend is a thread-safe in-process backend with lazy expiry.
// Default when Redis is not configured, and what tests construct.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	entry, ok := b.entries[key]
	b.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		// Lazy eviction on access.
		b.mu.Lock()
		if cur, still := b.entries[key]; still && cur.createdAt.Equal(entry.createdAt) {
			delete(b.entries, key)
		}
		b.mu.Unlock()
		return nil, false, nil
	}
	return entry.payload, true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	now := time.Now()
	b.mu.Lock()
	b.entries[key] = memoryEntry{payload: payload, createdAt: now, expiresAt: now.Add(ttl)}
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key := range b.entries {
		if strings.HasPrefix(key, prefix) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (b *MemoryBackend) Sweep(_ context.Context) int {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, entry := range b.entries {
		if now.After(entry.expiresAt) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed
}

func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
