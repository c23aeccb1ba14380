package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/charlesng35/awards/internal/cache"
)

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// memorySweepEvery bounds how often Increment scans for expired windows.
const memorySweepEvery = time.Minute

// memoryRateStore keeps fixed-window counters in process memory. Expired
// windows are swept lazily from Increment, so no background goroutine is needed.
type memoryRateStore struct {
	mu        sync.Mutex
	counters  map[string]memoryWindow
	nextSweep time.Time
	clock     func() time.Time
}

type memoryWindow struct {
	hits    int
	resetAt time.Time
}

// NewMemoryRateStore returns a process-local RateStore for single-instance
// deployments and tests.
func NewMemoryRateStore() RateStore {
	return newMemoryRateStore(time.Now)
}

func newMemoryRateStore(clock func() time.Time) *memoryRateStore {
	if clock == nil {
		clock = time.Now
	}
	return &memoryRateStore{counters: make(map[string]memoryWindow), clock: clock}
}

func (s *memoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !now.Before(s.nextSweep) {
		for k, w := range s.counters {
			if !now.Before(w.resetAt) {
				delete(s.counters, k)
			}
		}
		s.nextSweep = now.Add(memorySweepEvery)
	}

	w, ok := s.counters[key]
	if !ok || !now.Before(w.resetAt) {
		w = memoryWindow{resetAt: now.Add(window)}
	}
	w.hits++
	s.counters[key] = w

	return w.hits, w.resetAt.Sub(now), nil
}

// size reports the number of live windows.
func (s *memoryRateStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// storeRateStore shares counters across instances through a cache.Store
// (Redis or the database cache table).
type storeRateStore struct {
	store cache.Store
}

// NewStoreRateStore wraps a cache store in a RateStore implementation.
func NewStoreRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &storeRateStore{store: store}
}

func (s *storeRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}
