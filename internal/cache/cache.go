// Package cache memoizes expensive fetch+compute payloads keyed by
// (field, index, date range, provider version). One computation per key runs
// at a time; concurrent callers for the same key await the shared result
// instead of issuing duplicate provider fetches.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"satellite-service/internal/models"
)

// Backend stores opaque payload bytes with a TTL. Entries are immutable once
// written; expiry or explicit invalidation removes them, never mutates.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	// Sweep drops expired entries; backends with native expiry may no-op.
	Sweep(ctx context.Context) int
	Len() int
}

// Manager fronts a Backend with single-flight deduplication and hit/miss
// accounting.
type Manager struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

func NewManager(backend Backend, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Manager{backend: backend, ttl: ttl}
}

// Key builds the canonical cache key. The provider version tag is part of
// the key so formula or schema changes upstream invalidate stale entries.
func Key(fieldID uuid.UUID, indexType models.IndexType, from, to time.Time, providerVersion string) string {
	return fmt.Sprintf("health:%s:%s:%s:%s:%s",
		fieldID, indexType,
		from.Format("2006-01-02"), to.Format("2006-01-02"),
		providerVersion)
}

// GetOrCompute returns the cached payload for key, or runs compute once and
// caches its result. Failures are not cached; the next caller retries. The
// computation runs detached from the first caller's cancellation because
// other waiters may still need the result.
func (m *Manager) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if payload, ok, err := m.backend.Get(ctx, key); err == nil && ok {
		m.hits.Add(1)
		return payload, nil
	} else if err != nil {
		slog.Warn("Cache backend read failed, computing directly", "key", key, "error", err)
	}

	m.misses.Add(1)

	result, err, _ := m.group.Do(key, func() (any, error) {
		runCtx := context.WithoutCancel(ctx)

		// Re-check under the flight: a concurrent computation may have
		// landed between our miss and this callback.
		if payload, ok, err := m.backend.Get(runCtx, key); err == nil && ok {
			return payload, nil
		}

		payload, err := compute(runCtx)
		if err != nil {
			return nil, err
		}
		if err := m.backend.Set(runCtx, key, payload, m.ttl); err != nil {
			slog.Warn("Cache backend write failed", "key", key, "error", err)
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// InvalidateField removes every cached payload for a field, across index
// types, ranges and versions.
func (m *Manager) InvalidateField(ctx context.Context, fieldID uuid.UUID) (int, error) {
	return m.backend.DeleteByPrefix(ctx, fmt.Sprintf("health:%s:", fieldID))
}

// Sweep evicts expired entries. Optional; lazy eviction on access already
// keeps correctness, the sweep only bounds memory.
func (m *Manager) Sweep(ctx context.Context) int {
	return m.backend.Sweep(ctx)
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func (m *Manager) Stats() Stats {
	hits, misses := m.hits.Load(), m.misses.Load()
	s := Stats{Entries: m.backend.Len(), Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}
