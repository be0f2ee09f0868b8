package kv

import (
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrcore/pkg/ring"
)

// Sharded splits the byte budget over independent Locked shards so that
// requests for different keys rarely contend. A key always maps to the same
// shard, picked with a consistent-hash ring.
type Sharded struct {
	shards   []*Locked
	ring     *ring.HashRing[int]
	capacity int64
	obs      Observer

	items atomic.Int64
	bytes atomic.Int64
}

// NewSharded returns a store of WithShards(n) shards (16 by default), each
// holding capacityBytes/n bytes.
func NewSharded(capacityBytes int64, opts ...StoreOption) *Sharded {
	c := newStoreConfig(opts)
	if c.shards <= 0 {
		c.shards = 1
	}
	per := capacityBytes / int64(c.shards)

	s := &Sharded{
		shards:   make([]*Locked, c.shards),
		ring:     ring.New[int](c.replicas, ring.XXHash),
		capacity: per * int64(c.shards),
		obs:      c.observer,
	}
	for i := range s.shards {
		sc := c
		sc.logger = c.logger.With(zap.Int("shard", i))
		sh := newLocked(per, sc)
		var lastItems, lastBytes int64
		sh.usage = func() {
			items, bytes := int64(sh.lru.Len()), sh.lru.Size()
			ti := s.items.Add(items - lastItems)
			tb := s.bytes.Add(bytes - lastBytes)
			lastItems, lastBytes = items, bytes
			s.obs.SetUsage(int(ti), tb)
		}
		s.shards[i] = sh
		s.ring.Add("shard-"+strconv.Itoa(i), i)
	}
	return s
}

func (s *Sharded) shard(key string) *Locked {
	i, ok := s.ring.Lookup([]byte(key))
	if !ok {
		return s.shards[0]
	}
	return s.shards[i]
}

func (s *Sharded) Put(key string, value []byte) bool {
	return s.shard(key).Put(key, value)
}

func (s *Sharded) PutIfAbsent(key string, value []byte) bool {
	return s.shard(key).PutIfAbsent(key, value)
}

func (s *Sharded) Set(key string, value []byte) bool {
	return s.shard(key).Set(key, value)
}

func (s *Sharded) Delete(key string) bool {
	return s.shard(key).Delete(key)
}

func (s *Sharded) Get(key string) ([]byte, bool) {
	return s.shard(key).Get(key)
}

func (s *Sharded) Len() int { return int(s.items.Load()) }

func (s *Sharded) Size() int64 { return s.bytes.Load() }

func (s *Sharded) Capacity() int64 { return s.capacity }

// MaxPairSize is the budget of a single shard.
func (s *Sharded) MaxPairSize() int64 { return s.shards[0].Capacity() }

func (s *Sharded) ShardCount() int { return len(s.shards) }

func (s *Sharded) Clear() {
	for _, sh := range s.shards {
		sh.Clear()
	}
}
