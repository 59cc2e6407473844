// Package memorystore is the in-process Store backend (spec §4.C): a
// sharded hash map with a timing wheel driving TTL expiry, grounded on the
// sharded-distributor and background-sweeper shapes used elsewhere in this
// codebase. State does not survive a restart.
package memorystore

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/oas-sandbox/engine/internal/store"
	"github.com/oas-sandbox/engine/pkg/jsonvalue"
)

const defaultShardCount = 32

// Options configures a Store.
type Options struct {
	// ShardCount is the number of lock-striped shards. Defaults to 32.
	ShardCount int
	// WheelSlots is the timing wheel's bucket count, in seconds. Defaults
	// to 3600 (one hour of granularity before a slot is reused).
	WheelSlots int
	// SweepInterval is how often the sweeper goroutine walks the wheel.
	// Defaults to one second.
	SweepInterval time.Duration
	// MaxEntries bounds the store's total size across all shards. Zero
	// means unbounded. When at capacity, inserting a new key evicts the
	// oldest-inserted key store-wide.
	MaxEntries int
}

type record struct {
	entry   store.Entry
	element *list.Element // node in the global insertion-order list
}

type shard struct {
	mu   sync.RWMutex
	data map[string]*record
}

// Store is the in-memory Store implementation.
type Store struct {
	shards []*shard
	wheel  *timingWheel

	maxEntries int
	orderMu    sync.Mutex
	order      *list.List // oldest-first list of keys, for bounded eviction
	orderIndex map[string]*list.Element

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a Store and starts its background sweeper. Callers must call
// Close to stop the sweeper goroutine.
func New(opts Options) *Store {
	shardCount := opts.ShardCount
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	sweepInterval := opts.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = time.Second
	}

	s := &Store{
		shards:     make([]*shard, shardCount),
		wheel:      newTimingWheel(opts.WheelSlots),
		maxEntries: opts.MaxEntries,
		order:      list.New(),
		orderIndex: make(map[string]*list.Element),
		stopCh:     make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &shard{data: make(map[string]*record)}
	}

	s.wg.Add(1)
	go s.sweepLoop(sweepInterval)

	return s
}

func (s *Store) shardFor(key string) *shard {
	h := xxhash.Sum64String(key)
	return s.shards[h%uint64(len(s.shards))]
}

func (s *Store) Get(_ context.Context, key string) (*store.Entry, bool, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	rec, ok := sh.data[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if rec.entry.Expired(time.Now()) {
		s.delete(key)
		return nil, false, nil
	}
	cp := rec.entry
	return &cp, true, nil
}

func (s *Store) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	now := time.Now()
	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	existing, had := sh.data[key]
	createdAt := now
	var prevExpiry *time.Time
	if had {
		createdAt = existing.entry.CreatedAt
		prevExpiry = existing.entry.ExpiresAt
	}
	rec := &record{entry: store.Entry{
		Value:     jsonvalue.Clone(value),
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}}
	sh.data[key] = rec
	sh.mu.Unlock()

	if had && prevExpiry != nil {
		s.wheel.unschedule(key, *prevExpiry)
	}
	if expiresAt != nil {
		s.wheel.schedule(key, *expiresAt)
	}

	s.touchOrder(key, had)
	return nil
}

func (s *Store) Del(_ context.Context, key string) error {
	s.delete(key)
	return nil
}

func (s *Store) delete(key string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	rec, ok := sh.data[key]
	if ok {
		delete(sh.data, key)
	}
	sh.mu.Unlock()

	if ok && rec.entry.ExpiresAt != nil {
		s.wheel.unschedule(key, *rec.entry.ExpiresAt)
	}
	s.removeOrder(key)
}

func (s *Store) Increment(_ context.Context, key string, by float64) (float64, error) {
	now := time.Now()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	existing, had := sh.data[key]
	var cur float64
	var expiresAt *time.Time
	createdAt := now
	if had && !existing.entry.Expired(now) {
		if n, ok := existing.entry.Value.(float64); ok {
			cur = n
		}
		expiresAt = existing.entry.ExpiresAt
		createdAt = existing.entry.CreatedAt
	}

	next := cur + by
	sh.data[key] = &record{entry: store.Entry{
		Value:     next,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}}

	s.touchOrder(key, had)
	return next, nil
}

func (s *Store) Patch(_ context.Context, key string, value any) error {
	now := time.Now()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	existing, had := sh.data[key]
	var base any
	var expiresAt *time.Time
	createdAt := now
	if had && !existing.entry.Expired(now) {
		base = existing.entry.Value
		expiresAt = existing.entry.ExpiresAt
		createdAt = existing.entry.CreatedAt
	}

	merged := jsonvalue.Merge(base, value)
	sh.data[key] = &record{entry: store.Entry{
		Value:     merged,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}}

	s.touchOrder(key, had)
	return nil
}

// Close stops the sweeper goroutine. The map contents are discarded; this
// backend never persists.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	return nil
}

func (s *Store) sweepLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *Store) sweep(now time.Time) {
	for _, key := range s.wheel.advance(now) {
		sh := s.shardFor(key)
		sh.mu.RLock()
		rec, ok := sh.data[key]
		sh.mu.RUnlock()
		if ok && rec.entry.Expired(now) {
			s.delete(key)
		}
	}
}

// touchOrder records key as most-recently-inserted and, if the store is at
// capacity, evicts the oldest-inserted key. had indicates whether key was
// already present (a Set/Patch/Increment on an existing key doesn't count
// as a new insertion for bounding purposes).
func (s *Store) touchOrder(key string, had bool) {
	if had {
		return
	}

	s.orderMu.Lock()
	elem := s.order.PushBack(key)
	s.orderIndex[key] = elem

	var evictKey string
	evict := false
	if s.maxEntries > 0 && s.order.Len() > s.maxEntries {
		front := s.order.Front()
		if front != nil {
			evictKey = front.Value.(string)
			s.order.Remove(front)
			delete(s.orderIndex, evictKey)
			evict = true
		}
	}
	s.orderMu.Unlock()

	if evict && evictKey != key {
		s.delete(evictKey)
	}
}

func (s *Store) removeOrder(key string) {
	s.orderMu.Lock()
	defer s.orderMu.Unlock()
	if elem, ok := s.orderIndex[key]; ok {
		s.order.Remove(elem)
		delete(s.orderIndex, key)
	}
}

var _ store.Store = (*Store)(nil)
