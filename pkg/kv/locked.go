package kv

import (
	"sync"

	"go.uber.org/zap"
)

// StoreOption configures Locked and Sharded stores.
type StoreOption func(*storeConfig)

type storeConfig struct {
	logger   *zap.Logger
	observer Observer
	ordered  bool
	shards   int
	replicas int
}

// WithLogger sets the logger used for eviction traces.
func WithLogger(l *zap.Logger) StoreOption {
	return func(c *storeConfig) { c.logger = l }
}

// WithObserver sets the metrics sink.
func WithObserver(o Observer) StoreOption {
	return func(c *storeConfig) { c.observer = o }
}

// WithOrderedKeys makes every underlying LRU use the btree index.
func WithOrderedKeys() StoreOption {
	return func(c *storeConfig) { c.ordered = true }
}

// WithShards sets the shard count of a Sharded store. Ignored by Locked.
func WithShards(n int) StoreOption {
	return func(c *storeConfig) { c.shards = n }
}

// WithReplicas sets how many ring points each shard owns.
func WithReplicas(n int) StoreOption {
	return func(c *storeConfig) { c.replicas = n }
}

func newStoreConfig(opts []StoreOption) storeConfig {
	c := storeConfig{shards: 16, replicas: 64}
	for _, o := range opts {
		o(&c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.observer == nil {
		c.observer = NoopObserver{}
	}
	return c
}

// Locked guards a single LRU with one mutex.
type Locked struct {
	mu  sync.Mutex
	lru *LRU
	obs Observer
	log *zap.Logger

	// usage reports the store footprint after each mutation; Sharded replaces
	// it to aggregate across shards.
	usage func()
}

// NewLocked returns a synchronized store holding at most capacityBytes bytes.
func NewLocked(capacityBytes int64, opts ...StoreOption) *Locked {
	return newLocked(capacityBytes, newStoreConfig(opts))
}

func newLocked(capacityBytes int64, c storeConfig) *Locked {
	s := &Locked{obs: c.observer, log: c.logger}
	lopts := []Option{WithEvictHandler(s.evicted)}
	if c.ordered {
		lopts = append(lopts, WithOrderedIndex())
	}
	s.lru = NewLRU(capacityBytes, lopts...)
	s.usage = func() { s.obs.SetUsage(s.lru.Len(), s.lru.Size()) }
	return s
}

// evicted runs with s.mu held.
func (s *Locked) evicted(key string, size int64) {
	s.obs.AddEvicted(1)
	if ce := s.log.Check(zap.DebugLevel, "kv.evict"); ce != nil {
		ce.Write(zap.String("key", key), zap.Int64("bytes", size))
	}
}

func (s *Locked) Put(key string, value []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.lru.Put(key, value)
	if ok {
		s.usage()
	}
	return ok
}

func (s *Locked) PutIfAbsent(key string, value []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.lru.PutIfAbsent(key, value)
	if ok {
		s.usage()
	}
	return ok
}

func (s *Locked) Set(key string, value []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.lru.Set(key, value)
	if ok {
		s.usage()
	}
	return ok
}

func (s *Locked) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.lru.Delete(key)
	if ok {
		s.usage()
	}
	return ok
}

// Get takes the exclusive lock: a hit promotes the entry.
func (s *Locked) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.lru.Get(key)
	if ok {
		s.obs.IncHit()
	} else {
		s.obs.IncMiss()
	}
	return v, ok
}

func (s *Locked) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *Locked) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Size()
}

func (s *Locked) Capacity() int64 { return s.lru.Capacity() }

// MaxPairSize is the largest len(key)+len(value) the store accepts.
func (s *Locked) MaxPairSize() int64 { return s.lru.Capacity() }

// Clear drops every entry.
func (s *Locked) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Clear()
	s.usage()
}
