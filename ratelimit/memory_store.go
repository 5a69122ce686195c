package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// MemoryStore implements Store in process memory using a monotonic clock.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]*atomic.Int64

	now  func() time.Time
	base time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithNow sets the time source. It must never go backwards.
func WithNow(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.now = now
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		slots: make(map[string]*atomic.Int64),
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(ms)
	}

	ms.base = ms.now()

	return ms
}

// Acquire implements Store. Timestamps are kept as offsets from the store's
// creation so comparisons use the monotonic reading of the clock.
func (ms *MemoryStore) Acquire(_ context.Context, key string, window time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	slot := ms.slot(key)

	// Offsets are shifted by one so that zero means "never ran".
	now := int64(ms.now().Sub(ms.base)) + 1

	for {
		last := slot.Load()
		if last != 0 && time.Duration(now-last) < window {
			return false, nil
		}

		if slot.CompareAndSwap(last, now) {
			return true, nil
		}
	}
}

// Reset implements Store.
func (ms *MemoryStore) Reset(_ context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.slots, key)

	return nil
}

func (ms *MemoryStore) slot(key string) *atomic.Int64 {
	ms.mu.RLock()
	slot, ok := ms.slots[key]
	ms.mu.RUnlock()

	if ok {
		return slot
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if slot, ok = ms.slots[key]; ok {
		return slot
	}

	slot = atomic.NewInt64(0)
	ms.slots[key] = slot

	return slot
}
