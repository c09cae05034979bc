// Package gridtest provides an in-memory grid.Cache double for tests and
// scenario benchmarks that need a Cache without standing up a real
// distributed product — the same role the teacher's tests/integration
// suite gives an in-memory stand-in for its RemoteCache when exercising
// cache-manager.Service without a live Redis.
package gridtest

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/otero-labs/ratebucket/clock"
	"github.com/otero-labs/ratebucket/grid"
)

// MemCache is a single-process, mutex-guarded grid.Cache backed by a map.
// Its Invoke is atomic with respect to other Invoke calls on the same
// instance, satisfying the Cache contract (§6) without any real network
// hop.
//
// Optionally, a MemCache can throttle itself to resemble the latency and
// throughput profile of an actual round-trip: Throttle installs a
// golang.org/x/time/rate.Limiter that Invoke waits on before applying its
// processor, reusing the token-bucket rate limiter from the broader
// ecosystem purely as a network simulator — it has nothing to do with
// this module's own multi-bandwidth algorithm, which MemCache exercises
// as a black box via grid.Apply.
type MemCache struct {
	clock clock.Source

	mu      sync.Mutex
	entries map[string]grid.GridBucketState

	limiter *rate.Limiter
}

// NewMemCache returns an empty MemCache driven by src (clock.New() if
// nil).
func NewMemCache(src clock.Source) *MemCache {
	if src == nil {
		src = clock.New()
	}
	return &MemCache{
		clock:   src,
		entries: make(map[string]grid.GridBucketState),
	}
}

// Throttle installs a rate limit on Invoke calls, simulating a grid with
// finite round-trip throughput: r events per second with burst b. Pass a
// nil receiver guard is unnecessary; call before concurrent use begins.
func (m *MemCache) Throttle(r float64, b int) *MemCache {
	m.limiter = rate.NewLimiter(rate.Limit(r), b)
	return m
}

// Invoke implements grid.Cache.
func (m *MemCache) Invoke(ctx context.Context, key string, processor grid.EntryProcessor) (grid.Result, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return grid.Result{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.NowNanos()
	existing, ok := m.entries[key]

	var existingPtr *grid.GridBucketState
	if ok {
		existingPtr = &existing
	}

	result, next, shouldWrite, err := grid.Apply(existingPtr, now, processor)
	if err != nil {
		return grid.Result{}, err
	}
	if shouldWrite {
		m.entries[key] = next
	}
	return result, nil
}

// Peek returns the stored entry for key without applying any processor,
// for test assertions. ok is false if the key is absent.
func (m *MemCache) Peek(key string) (grid.GridBucketState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

// Delete removes key, simulating entry eviction ahead of a RECONSTRUCT or
// THROW test.
func (m *MemCache) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

var _ grid.Cache = (*MemCache)(nil)
