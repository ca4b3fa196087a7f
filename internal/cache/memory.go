package cache

import (
	"context"
	"sync"
	"time"
)

// entry represents a cached item with expiration
type entry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is a thread-safe in-process Store with TTL and tag sets
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	tags    map[string]map[string]struct{}
	stats   Stats
	stop    chan struct{}
	once    sync.Once
}

// Stats tracks cache performance metrics
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// NewMemoryStore creates a MemoryStore and starts its cleanup loop.
// Call Close to stop the loop.
func NewMemoryStore(cleanupEvery time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]entry),
		tags:    make(map[string]map[string]struct{}),
		stats:   Stats{LastCleanup: time.Now()},
		stop:    make(chan struct{}),
	}
	if cleanupEvery > 0 {
		go s.cleanupLoop(cleanupEvery)
	}
	return s
}

func (s *MemoryStore) Name() string {
	return "memory"
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		s.record(func(st *Stats) { st.Misses++ })
		return nil, false, nil
	}

	if now := time.Now(); now.After(e.expiresAt) {
		s.evictExpired(key, now)
		s.record(func(st *Stats) { st.Misses++ })
		return nil, false, nil
	}

	s.record(func(st *Stats) { st.Hits++ })
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, true, nil
}

// evictExpired deletes key only if it is still expired under the write lock;
// a Set that landed after the read keeps its fresh entry.
func (s *MemoryStore) evictExpired(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !now.After(e.expiresAt) {
		return false
	}
	delete(s.entries, key)
	s.stats.Evictions++
	s.stats.TotalKeys = int64(len(s.entries))
	return true
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	data := make([]byte, len(value))
	copy(data, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{data: data, expiresAt: time.Now().Add(ttl)}
	for _, tag := range tags {
		keys, ok := s.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	s.stats.TotalKeys = int64(len(s.entries))
	return nil
}

func (s *MemoryStore) InvalidateTag(_ context.Context, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.tags[tag]
	for key := range keys {
		if _, ok := s.entries[key]; ok {
			delete(s.entries, key)
			s.stats.Evictions++
		}
	}
	delete(s.tags, tag)
	s.stats.TotalKeys = int64(len(s.entries))
	return nil
}

// GetStats returns a snapshot of current cache statistics
func (s *MemoryStore) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Close stops the cleanup loop
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStore) record(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

func (s *MemoryStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes all expired entries and prunes their tag memberships
func (s *MemoryStore) cleanup() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			s.stats.Evictions++
		}
	}
	for tag, keys := range s.tags {
		for key := range keys {
			if _, ok := s.entries[key]; !ok {
				delete(keys, key)
			}
		}
		if len(keys) == 0 {
			delete(s.tags, tag)
		}
	}
	s.stats.TotalKeys = int64(len(s.entries))
	s.stats.LastCleanup = now
}
