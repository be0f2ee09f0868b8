// Package ring is a consistent-hash ring with virtual nodes. Members are
// identified by string IDs and carry an arbitrary payload.
package ring

import (
	"encoding/binary"
	"slices"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

type Hasher func([]byte) uint64

// XXHash is the default Hasher.
func XXHash(b []byte) uint64 { return xxhash.Sum64(b) }

type HashRing[T any] struct {
	mu       sync.RWMutex
	replicas int
	hash     Hasher
	points   []uint64          // sorted
	owners   map[uint64]string // point -> member ID
	members  map[string]T
}

func New[T any](replicas int, h Hasher) *HashRing[T] {
	if replicas <= 0 {
		replicas = 128
	}
	if h == nil {
		h = XXHash
	}
	return &HashRing[T]{
		replicas: replicas,
		hash:     h,
		owners:   make(map[uint64]string),
		members:  make(map[string]T),
	}
}

// Add places id on the ring. Adding a known id is a no-op.
func (r *HashRing[T]) Add(id string, member T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; ok {
		return
	}
	r.members[id] = member
	r.placeLocked(id)
	slices.Sort(r.points)
}

func (r *HashRing[T]) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return
	}
	delete(r.members, id)
	r.points = r.points[:0]
	clear(r.owners)
	for m := range r.members {
		r.placeLocked(m)
	}
	slices.Sort(r.points)
}

func (r *HashRing[T]) placeLocked(id string) {
	for i := 0; i < r.replicas; i++ {
		pt := r.hash(pointKey(id, i))
		// first writer keeps a colliding point
		if _, taken := r.owners[pt]; taken {
			continue
		}
		r.owners[pt] = id
		r.points = append(r.points, pt)
	}
}

// Lookup returns the member owning key.
func (r *HashRing[T]) Lookup(key []byte) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero T
	if len(r.points) == 0 {
		return zero, false
	}
	id := r.owners[r.points[r.search(key)]]
	m, ok := r.members[id]
	return m, ok
}

// LookupID returns the ID of the member owning key, or "" on an empty ring.
func (r *HashRing[T]) LookupID(key []byte) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.points) == 0 {
		return ""
	}
	return r.owners[r.points[r.search(key)]]
}

// LookupN returns up to n distinct member IDs walking clockwise from key.
func (r *HashRing[T]) LookupN(key []byte, n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.points) == 0 || n <= 0 {
		return nil
	}
	idx := r.search(key)
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for i := 0; i < len(r.points) && len(out) < n; i++ {
		id := r.owners[r.points[(idx+i)%len(r.points)]]
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// search returns the first point >= hash(key), wrapping to 0.
func (r *HashRing[T]) search(key []byte) int {
	h := r.hash(key)
	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i] >= h })
	if idx == len(r.points) {
		idx = 0
	}
	return idx
}

func (r *HashRing[T]) Member(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	return m, ok
}

// Members returns a copy of the id -> member map.
func (r *HashRing[T]) Members() map[string]T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]T, len(r.members))
	for id, m := range r.members {
		out[id] = m
	}
	return out
}

func (r *HashRing[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func pointKey(id string, i int) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(i))
	return append([]byte(id), buf[:]...)
}
