package session

import (
	"context"
	"sync"
	"time"
)

// Backend is the storage layer shared by the session registry and the
// credential store. Implementations must enforce TTL expiry themselves so
// that stale records are never returned as live.
type Backend interface {
	// Set writes value under key with the given TTL, replacing any
	// previous value and TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetKeepTTL replaces the value under key while preserving the
	// remaining TTL. If the key does not exist the write is dropped.
	SetKeepTTL(ctx context.Context, key string, value []byte) error

	// Get returns the value under key, or found=false if the key is
	// missing or expired.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// memoryEntry is a stored value with its absolute expiry.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is an in-process Backend for development and tests.
// A janitor goroutine sweeps expired entries; Get additionally checks
// expiry so a sweep lag can never resurrect a dead record.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	done    chan struct{}
	once    sync.Once
}

// NewMemoryBackend creates a memory backend sweeping at the given interval.
func NewMemoryBackend(sweepInterval time.Duration) *MemoryBackend {
	b := &MemoryBackend{
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
	}
	go b.sweep(sweepInterval)
	return b
}

// Set implements Backend.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// SetKeepTTL implements Backend. The remaining TTL of the existing entry is
// preserved; writes to missing or expired keys are dropped.
func (b *MemoryBackend) SetKeepTTL(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	entry.value = value
	b.entries[key] = entry
	return nil
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Delete implements Backend.
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

// Close stops the janitor goroutine.
func (b *MemoryBackend) Close() error {
	b.once.Do(func() { close(b.done) })
	return nil
}

// sweep periodically removes expired entries. Expired keys are collected
// under a read lock and re-checked under the write lock so a concurrent
// refresh between the two phases is never clobbered.
func (b *MemoryBackend) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var expired []string
			now := time.Now()

			b.mu.RLock()
			for key, entry := range b.entries {
				if now.After(entry.expiresAt) {
					expired = append(expired, key)
				}
			}
			b.mu.RUnlock()

			if len(expired) == 0 {
				continue
			}

			b.mu.Lock()
			for _, key := range expired {
				if entry, ok := b.entries[key]; ok && time.Now().After(entry.expiresAt) {
					delete(b.entries, key)
				}
			}
			b.mu.Unlock()
		case <-b.done:
			return
		}
	}
}
