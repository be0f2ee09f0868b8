package kv

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

type countingObserver struct {
	hits, misses, evicted atomic.Int64
	items                 atomic.Int64
	bytes                 atomic.Int64
}

func (o *countingObserver) IncHit()          { o.hits.Add(1) }
func (o *countingObserver) IncMiss()         { o.misses.Add(1) }
func (o *countingObserver) AddEvicted(n int) { o.evicted.Add(int64(n)) }
func (o *countingObserver) SetUsage(items int, bytes int64) {
	o.items.Store(int64(items))
	o.bytes.Store(bytes)
}

func TestLockedOverwriteKeepsLen(t *testing.T) {
	s := NewLocked(1 << 20)
	s.Put("x", []byte("one"))
	s.Put("x", []byte("two"))
	if got := s.Len(); got != 1 {
		t.Fatalf("Len after overwrite = %d, want 1", got)
	}
	v, ok := s.Get("x")
	if !ok || string(v) != "two" {
		t.Fatalf("Get(x) = %q,%v want two,true", v, ok)
	}
}

func TestLockedEvictionByCapacity(t *testing.T) {
	obs := &countingObserver{}
	s := NewLocked(9, WithObserver(obs))

	s.Put("a", []byte("123")) // 4
	s.Put("b", []byte("5"))   // 6

	// Touch "a" so it's the most-recent.
	if _, ok := s.Get("a"); !ok {
		t.Fatalf("precondition failed: expected to get a before eviction")
	}

	// Insert "c" → should evict least-recent ("b").
	s.Put("c", []byte("789")) // 10 > 9

	if _, ok := s.Get("a"); !ok {
		t.Fatalf("expected a to remain")
	}
	if _, ok := s.Get("c"); !ok {
		t.Fatalf("expected c to be present")
	}
	if _, ok := s.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if obs.evicted.Load() != 1 {
		t.Fatalf("evicted = %d, want 1", obs.evicted.Load())
	}
	if obs.hits.Load() != 3 || obs.misses.Load() != 1 {
		t.Fatalf("hits=%d misses=%d, want 3,1", obs.hits.Load(), obs.misses.Load())
	}
	if obs.items.Load() != 2 || obs.bytes.Load() != 8 {
		t.Fatalf("usage = %d items %d bytes, want 2,8", obs.items.Load(), obs.bytes.Load())
	}
}

func TestLockedOverwriteSize(t *testing.T) {
	s := NewLocked(200)

	orig := bytes.Repeat([]byte("x"), 50)
	big := bytes.Repeat([]byte("y"), 90)   // grows
	small := bytes.Repeat([]byte("z"), 10) // shrinks

	for _, tc := range []struct {
		name string
		v    []byte
	}{{"orig", orig}, {"grow", big}, {"shrink", small}} {
		if !s.Put("k", tc.v) {
			t.Fatalf("%s: Put = false", tc.name)
		}
		if got, ok := s.Get("k"); !ok || !bytes.Equal(got, tc.v) {
			t.Fatalf("%s: wrong value", tc.name)
		}
		if s.Len() != 1 {
			t.Fatalf("%s: Len = %d, want 1", tc.name, s.Len())
		}
		if want := int64(1 + len(tc.v)); s.Size() != want {
			t.Fatalf("%s: Size = %d, want %d", tc.name, s.Size(), want)
		}
	}
}

func TestLockedConcurrentAccess(t *testing.T) {
	s := NewLocked(1 << 20)

	var wg sync.WaitGroup
	const G = 32
	const N = 2000

	errCh := make(chan error, G)
	var stop atomic.Bool

	for gid := range G {
		wg.Add(1)
		go func(gid int) {
			defer wg.Done()
			for i := range N {
				if stop.Load() {
					return
				}
				k := fmt.Sprintf("k-%d-%d", gid, i)
				v := fmt.Appendf(nil, "v-%d", i)

				s.Put(k, v)

				got, ok := s.Get(k)
				if !ok {
					errCh <- fmt.Errorf("missing key=%s right after Put", k)
					stop.Store(true)
					return
				}
				if !bytes.Equal(got, v) {
					errCh <- fmt.Errorf("mismatch for key=%s", k)
					stop.Store(true)
					return
				}

				if i%7 == 0 {
					s.Delete(k)
				}
			}
		}(gid)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("concurrency test failed: %v", err)
	}
	if s.Size() > s.Capacity() {
		t.Fatalf("Size %d over capacity %d", s.Size(), s.Capacity())
	}
}

func TestLockedConcurrentEvictionKeepsInvariants(t *testing.T) {
	s := NewLocked(4 << 10)

	var wg sync.WaitGroup
	for gid := range 8 {
		wg.Add(1)
		go func(gid int) {
			defer wg.Done()
			for i := range 3000 {
				k := fmt.Sprintf("k%d", (gid*7919+i)%500)
				switch i % 4 {
				case 0:
					s.Put(k, bytes.Repeat([]byte{'v'}, i%64))
				case 1:
					s.PutIfAbsent(k, []byte("fresh"))
				case 2:
					s.Get(k)
				case 3:
					s.Set(k, bytes.Repeat([]byte{'s'}, i%32))
				}
			}
		}(gid)
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	checkInvariants(t, s.lru)
}

func TestLockedClear(t *testing.T) {
	obs := &countingObserver{}
	s := NewLocked(100, WithObserver(obs), WithOrderedKeys())
	s.Put("a", []byte("1"))
	s.Put("b", []byte("2"))
	s.Clear()
	if s.Len() != 0 || obs.items.Load() != 0 || obs.bytes.Load() != 0 {
		t.Fatalf("Clear left len=%d observed=%d/%d", s.Len(), obs.items.Load(), obs.bytes.Load())
	}
}
