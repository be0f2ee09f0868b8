package kv

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardedSplitsBudget(t *testing.T) {
	s := NewSharded(1000, WithShards(4))
	assert.Equal(t, 4, s.ShardCount())
	assert.Equal(t, int64(1000), s.Capacity())
	assert.Equal(t, int64(250), s.MaxPairSize())

	// larger than one shard even though it fits the total budget
	assert.False(t, s.Put("big", make([]byte, 300)))
}

func TestShardedRoutingIsStable(t *testing.T) {
	s := NewSharded(1<<20, WithShards(8))
	for i := range 500 {
		k := fmt.Sprintf("key-%d", i)
		require.True(t, s.Put(k, []byte(k)))
	}
	for i := range 500 {
		k := fmt.Sprintf("key-%d", i)
		v, ok := s.Get(k)
		require.True(t, ok, k)
		assert.Equal(t, k, string(v))
		assert.Same(t, s.shard(k), s.shard(k))
	}
	assert.Equal(t, 500, s.Len())

	used := map[*Locked]bool{}
	for i := range 500 {
		used[s.shard(fmt.Sprintf("key-%d", i))] = true
	}
	assert.Greater(t, len(used), 1, "keys should spread over several shards")
}

func TestShardedCapabilitySemantics(t *testing.T) {
	s := NewSharded(1<<16, WithShards(2), WithOrderedKeys())

	require.True(t, s.PutIfAbsent("a", []byte("1")))
	assert.False(t, s.PutIfAbsent("a", []byte("2")))
	assert.False(t, s.Set("missing", []byte("x")))
	require.True(t, s.Set("a", []byte("22")))

	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "22", string(v))
	assert.Equal(t, int64(3), s.Size())

	require.True(t, s.Delete("a"))
	_, ok = s.Get("a")
	assert.False(t, ok)
	assert.Zero(t, s.Len())
	assert.Zero(t, s.Size())
}

func TestShardedUsageAggregates(t *testing.T) {
	obs := &countingObserver{}
	s := NewSharded(1<<20, WithShards(4), WithObserver(obs))

	var wg sync.WaitGroup
	for g := range 4 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 100 {
				s.Put(fmt.Sprintf("g%d-%d", g, i), []byte("0123456789"))
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 400, s.Len())
	var want int64
	for g := range 4 {
		for i := range 100 {
			want += int64(len(fmt.Sprintf("g%d-%d", g, i)) + 10)
		}
	}
	assert.Equal(t, want, s.Size())

	s.Clear()
	assert.Zero(t, s.Len())
	assert.Zero(t, obs.items.Load())
	assert.Zero(t, obs.bytes.Load())
}
