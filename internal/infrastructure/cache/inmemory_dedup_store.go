package cache

import (
	"context"
	"sync"
	"time"

	"github.com/library/backend/internal/domain/shared"
)

// dedupEntry records when a stored dedup key expires
type dedupEntry struct {
	expiresAt time.Time
}

// InMemoryDedupStore implements DedupStore with an in-memory map.
// Suitable for single-instance deployments and tests; a background
// goroutine evicts expired keys.
type InMemoryDedupStore struct {
	mu        sync.RWMutex
	entries   map[string]dedupEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryDedupStore creates a new in-memory dedup store
func NewInMemoryDedupStore() *InMemoryDedupStore {
	store := &InMemoryDedupStore{
		entries:  make(map[string]dedupEntry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// MarkProcessed marks a dedup key as committed with a TTL.
// Returns true if the key was newly marked, false if it already existed.
func (s *InMemoryDedupStore) MarkProcessed(ctx context.Context, dedupKey string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[dedupKey]; exists && time.Now().Before(e.expiresAt) {
		return false, nil
	}

	s.entries[dedupKey] = dedupEntry{expiresAt: time.Now().Add(ttl)}
	return true, nil
}

// IsProcessed checks whether a dedup key was already committed
func (s *InMemoryDedupStore) IsProcessed(ctx context.Context, dedupKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[dedupKey]
	if !exists || time.Now().After(e.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryDedupStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryDedupStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *InMemoryDedupStore) evictExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Ensure InMemoryDedupStore implements DedupStore
var _ shared.DedupStore = (*InMemoryDedupStore)(nil)
