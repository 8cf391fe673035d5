package kv

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-process Store with the same TTL and atomicity
// semantics as RedisStore. Expired entries are collected lazily on access
// and by an optional background sweeper.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry

	now func() time.Time

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewMemoryStore creates an empty store. When sweepInterval > 0 a
// background goroutine removes expired entries on that cadence; call Close
// to stop it.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		items: make(map[string]memoryEntry),
		now:   time.Now,
	}

	if sweepInterval > 0 {
		s.sweepStop = make(chan struct{})
		go s.sweepLoop(sweepInterval)
	}

	return s
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.sweepStop:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.items {
		if entry.expired(now) {
			delete(s.items, key)
		}
	}
}

// Close stops the background sweeper. The store remains usable.
func (s *MemoryStore) Close() {
	if s.sweepStop == nil {
		return
	}
	s.sweepOnce.Do(func() {
		close(s.sweepStop)
	})
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = entry
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(s.now()) {
		delete(s.items, key)
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (s *MemoryStore) GetDel(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.items, key)
	if entry.expired(s.now()) {
		return nil, ErrNotFound
	}
	return entry.value, nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	entry, ok := s.items[key]
	if ok && !entry.expired(s.now()) {
		parsed, err := strconv.ParseInt(string(entry.value), 10, 64)
		if err != nil {
			parsed = 0
		}
		count = parsed
	} else {
		// Counter restarts; drop any stale TTL with it.
		entry = memoryEntry{}
	}

	count++
	entry.value = []byte(strconv.FormatInt(count, 10))
	s.items[key] = entry
	return count, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[key]
	if !ok || entry.expired(s.now()) {
		return nil
	}
	entry.expiresAt = s.now().Add(ttl)
	s.items[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}
