package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	key         string
	ticker      string
	companyName string
	tier        Tier
	data        []byte
	createdAt   time.Time
	expiresAt   time.Time
	accessCount int64
}

// MemoryStore is an in-process Store for tests and ephemeral runs.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]*memoryEntry
	ttls     tierTTLs
	counters counters
	now      func() time.Time // test hook
}

// NewMemory creates an empty MemoryStore.
func NewMemory(opts ...StoreOption) *MemoryStore {
	o := applyStoreOptions(opts)
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttls:    o.ttls,
		now:     time.Now,
	}
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, tier Tier, opts ...SetOption) error {
	o := applySetOptions(s.ttls, tier, opts)
	now := s.now().UTC()

	data := make([]byte, len(value))
	copy(data, value)

	s.mu.Lock()
	s.entries[key] = &memoryEntry{
		key:         key,
		ticker:      o.ticker,
		companyName: o.companyName,
		tier:        tier,
		data:        data,
		createdAt:   now,
		expiresAt:   now.Add(o.ttl),
	}
	s.mu.Unlock()
	s.counters.set()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	now := s.now().UTC()

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || !e.expiresAt.After(now) {
		s.mu.Unlock()
		s.counters.miss()
		return nil, false, nil
	}
	e.accessCount++
	data := e.data
	s.mu.Unlock()

	s.counters.hit()
	return data, true, nil
}

func (s *MemoryStore) GetStale(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return e.data, true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()
	if ok {
		s.counters.delete()
	}
	return ok, nil
}

func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()

	s.mu.Lock()
	n := 0
	for key, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, key)
			n++
		}
	}
	s.mu.Unlock()

	s.counters.evict(n)
	return n, nil
}

func (s *MemoryStore) GetByTicker(ctx context.Context, ticker string) ([]byte, bool, error) {
	now := s.now().UTC()

	s.mu.RLock()
	var best *memoryEntry
	for _, e := range s.entries {
		if e.ticker != ticker || !e.expiresAt.After(now) {
			continue
		}
		if best == nil || e.createdAt.After(best.createdAt) {
			best = e
		}
	}
	s.mu.RUnlock()

	if best == nil {
		s.counters.miss()
		return nil, false, nil
	}
	return s.Get(ctx, best.key)
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	st := s.counters.snapshot(false)
	st.EntriesByTier = map[Tier]int64{}

	s.mu.RLock()
	for _, e := range s.entries {
		st.EntriesByTier[e.tier]++
		st.Entries++
	}
	s.mu.RUnlock()
	return st, nil
}

func (s *MemoryStore) FlushStats(ctx context.Context) error { return nil }

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]*memoryEntry)
	s.mu.Unlock()
	s.counters.snapshot(true)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
