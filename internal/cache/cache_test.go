package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"satellite-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(ttl time.Duration) *Manager {
	return NewManager(NewMemoryBackend(), ttl)
}

func countingCompute(calls *atomic.Int64, payload []byte) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return payload, nil
	}
}

// ============================================================================
// IDEMPOTENCE AND SINGLE-FLIGHT
// ============================================================================

func TestGetOrCompute_Idempotent(t *testing.T) {
	m := newTestManager(time.Minute)
	var calls atomic.Int64
	compute := countingCompute(&calls, []byte(`{"series":[1,2,3]}`))

	first, err := m.GetOrCompute(context.Background(), "k1", compute)
	require.NoError(t, err)
	second, err := m.GetOrCompute(context.Background(), "k1", compute)
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load(), "second call must hit the cache")
	assert.Equal(t, first, second, "payloads must be byte-identical")
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	m := newTestManager(time.Minute)
	var calls atomic.Int64
	compute := func(context.Context) ([]byte, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return []byte("payload"), nil
	}

	const n = 25
	var wg sync.WaitGroup
	results := make([][]byte, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload, err := m.GetOrCompute(context.Background(), "shared", compute)
			assert.NoError(t, err)
			results[i] = payload
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "concurrent callers must share one computation")
	for i := 0; i < n; i++ {
		assert.Equal(t, []byte("payload"), results[i])
	}
}

func TestGetOrCompute_AbandonedCallerDoesNotCancelFlight(t *testing.T) {
	m := newTestManager(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // caller already gone

	payload, err := m.GetOrCompute(ctx, "k", func(runCtx context.Context) ([]byte, error) {
		// The shared computation must run detached from the caller's
		// cancellation.
		require.NoError(t, runCtx.Err())
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), payload)
}

// ============================================================================
// FAILURE AND EXPIRY
// ============================================================================

func TestGetOrCompute_FailureNotCached(t *testing.T) {
	m := newTestManager(time.Minute)
	var calls atomic.Int64

	_, err := m.GetOrCompute(context.Background(), "k", func(context.Context) ([]byte, error) {
		calls.Add(1)
		return nil, errors.New("provider blew up")
	})
	require.Error(t, err)

	payload, err := m.GetOrCompute(context.Background(), "k", countingCompute(&calls, []byte("recovered")))
	require.NoError(t, err)
	assert.Equal(t, []byte("recovered"), payload)
	assert.Equal(t, int64(2), calls.Load(), "failure must not be cached, next caller retries")
}

func TestGetOrCompute_TTLExpiry(t *testing.T) {
	m := newTestManager(30 * time.Millisecond)
	var calls atomic.Int64
	compute := countingCompute(&calls, []byte("v"))

	_, err := m.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = m.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load(), "expired entry must be lazily evicted and recomputed")
}

func TestSweep_RemovesExpiredEntries(t *testing.T) {
	backend := NewMemoryBackend()
	m := NewManager(backend, 20*time.Millisecond)

	_, err := m.GetOrCompute(context.Background(), "a", func(context.Context) ([]byte, error) {
		return []byte("1"), nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, backend.Len())

	time.Sleep(40 * time.Millisecond)

	removed := m.Sweep(context.Background())
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, backend.Len())
}

// ============================================================================
// INVALIDATION AND KEYS
// ============================================================================

func TestInvalidateField_OnlyDropsThatField(t *testing.T) {
	m := newTestManager(time.Minute)
	fieldA, fieldB := uuid.New(), uuid.New()
	from := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, 5, 31, 0, 0, 0, 0, time.UTC)

	keyA := Key(fieldA, models.IndexNDVI, from, to, "v1")
	keyB := Key(fieldB, models.IndexNDVI, from, to, "v1")

	var callsA, callsB atomic.Int64
	_, _ = m.GetOrCompute(context.Background(), keyA, countingCompute(&callsA, []byte("a")))
	_, _ = m.GetOrCompute(context.Background(), keyB, countingCompute(&callsB, []byte("b")))

	removed, err := m.InvalidateField(context.Background(), fieldA)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, _ = m.GetOrCompute(context.Background(), keyA, countingCompute(&callsA, []byte("a")))
	_, _ = m.GetOrCompute(context.Background(), keyB, countingCompute(&callsB, []byte("b")))

	assert.Equal(t, int64(2), callsA.Load(), "invalidated field recomputes")
	assert.Equal(t, int64(1), callsB.Load(), "other field stays cached")
}

func TestKey_IncorporatesProviderVersion(t *testing.T) {
	fieldID := uuid.New()
	from := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, 5, 31, 0, 0, 0, 0, time.UTC)

	v1 := Key(fieldID, models.IndexNDVI, from, to, "v1")
	v2 := Key(fieldID, models.IndexNDVI, from, to, "v2")

	assert.NotEqual(t, v1, v2, "formula/schema changes must produce distinct keys")
}

func TestStats_TracksHitsAndMisses(t *testing.T) {
	m := newTestManager(time.Minute)
	var calls atomic.Int64
	compute := countingCompute(&calls, []byte("v"))

	_, _ = m.GetOrCompute(context.Background(), "k", compute)
	_, _ = m.GetOrCompute(context.Background(), "k", compute)
	_, _ = m.GetOrCompute(context.Background(), "k", compute)

	s := m.Stats()
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 2.0/3.0, s.HitRate, 1e-9)
	assert.Equal(t, 1, s.Entries)
}
