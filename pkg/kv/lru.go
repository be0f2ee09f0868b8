package kv

const nilSlot int32 = -1

// entry is one arena slot. prev points toward the head (more recently used),
// next toward the tail.
type entry struct {
	key   string
	value []byte
	prev  int32
	next  int32
}

func (e *entry) size() int64 { return int64(len(e.key)) + int64(len(e.value)) }

// EvictHandler is told about every entry dropped to make room.
type EvictHandler func(key string, size int64)

// Option configures an LRU.
type Option func(*LRU)

// WithOrderedIndex keeps the key index in a btree instead of a hash map.
func WithOrderedIndex() Option {
	return func(l *LRU) { l.index = newOrderedIndex() }
}

// WithEvictHandler registers fn to be called for each capacity eviction.
func WithEvictHandler(fn EvictHandler) Option {
	return func(l *LRU) { l.onEvict = fn }
}

// LRU is a byte-bounded key/value store with least-recently-used eviction.
// The size of an entry is len(key)+len(value).
//
// LRU is not safe for concurrent use. Wrap it in Locked or Sharded, or
// serialize calls some other way.
type LRU struct {
	slots []entry
	free  []int32
	head  int32
	tail  int32
	index Index

	size     int64
	capacity int64
	onEvict  EvictHandler
}

// NewLRU returns an empty store holding at most capacityBytes bytes.
func NewLRU(capacityBytes int64, opts ...Option) *LRU {
	if capacityBytes < 0 {
		capacityBytes = 0
	}
	l := &LRU{
		head:     nilSlot,
		tail:     nilSlot,
		capacity: capacityBytes,
	}
	for _, o := range opts {
		o(l)
	}
	if l.index == nil {
		l.index = newHashIndex()
	}
	return l
}

func (l *LRU) Put(key string, value []byte) bool {
	if _, ok := l.index.Lookup(key); ok {
		return l.Set(key, value)
	}
	return l.PutIfAbsent(key, value)
}

func (l *LRU) PutIfAbsent(key string, value []byte) bool {
	if _, ok := l.index.Lookup(key); ok {
		return false
	}
	n := pairSize(key, value)
	if n > l.capacity {
		return false
	}
	l.freeEnoughMemory(n)
	l.pushHead(key, value)
	return true
}

func (l *LRU) Set(key string, value []byte) bool {
	i, ok := l.index.Lookup(key)
	if !ok || pairSize(key, value) > l.capacity {
		return false
	}
	l.moveToHead(i)
	delta := int64(len(value)) - int64(len(l.slots[i].value))
	if delta > 0 {
		// i sits at the head and the new pair fits, so it is never the victim
		l.freeEnoughMemory(delta)
	}
	l.slots[i].value = append(l.slots[i].value[:0:0], value...)
	l.size += delta
	return true
}

func (l *LRU) Delete(key string) bool {
	i, ok := l.index.Lookup(key)
	if !ok {
		return false
	}
	l.remove(i)
	return true
}

func (l *LRU) Get(key string) ([]byte, bool) {
	i, ok := l.index.Lookup(key)
	if !ok {
		return nil, false
	}
	l.moveToHead(i)
	return append([]byte(nil), l.slots[i].value...), true
}

// Len returns the number of stored entries.
func (l *LRU) Len() int { return l.index.Len() }

// Size returns the bytes currently accounted.
func (l *LRU) Size() int64 { return l.size }

// Capacity returns the byte budget fixed at construction.
func (l *LRU) Capacity() int64 { return l.capacity }

// Keys returns the stored keys from most to least recently used.
// It does not change recency.
func (l *LRU) Keys() []string {
	out := make([]string, 0, l.index.Len())
	for i := l.head; i != nilSlot; i = l.slots[i].next {
		out = append(out, l.slots[i].key)
	}
	return out
}

// Ascend calls fn for every entry in index order until fn returns false.
// With WithOrderedIndex the order is lexical. It does not change recency and
// fn must not modify the store.
func (l *LRU) Ascend(fn func(key string, value []byte) bool) {
	l.index.Range(func(key string, slot int32) bool {
		return fn(key, l.slots[slot].value)
	})
}

// Clear drops every entry without reporting evictions.
func (l *LRU) Clear() {
	for i := l.head; i != nilSlot; {
		next := l.slots[i].next
		l.index.Remove(l.slots[i].key)
		i = next
	}
	l.slots = nil
	l.free = nil
	l.head, l.tail = nilSlot, nilSlot
	l.size = 0
}

// freeEnoughMemory evicts from the tail until extra more bytes fit.
func (l *LRU) freeEnoughMemory(extra int64) {
	for l.size+extra > l.capacity && l.tail != nilSlot {
		victim := l.tail
		key, n := l.slots[victim].key, l.slots[victim].size()
		l.remove(victim)
		if l.onEvict != nil {
			l.onEvict(key, n)
		}
	}
}

func (l *LRU) pushHead(key string, value []byte) {
	i := l.alloc()
	l.slots[i] = entry{
		key:   key,
		value: append([]byte(nil), value...),
		prev:  nilSlot,
		next:  l.head,
	}
	l.linkHead(i)
	l.index.Insert(key, i)
	l.size += l.slots[i].size()
}

func (l *LRU) moveToHead(i int32) {
	if i == l.head {
		return
	}
	l.unlink(i)
	l.slots[i].next = l.head
	l.linkHead(i)
}

// linkHead makes i the head; slots[i].next must already hold the old head.
func (l *LRU) linkHead(i int32) {
	l.slots[i].prev = nilSlot
	if l.head != nilSlot {
		l.slots[l.head].prev = i
	} else {
		l.tail = i
	}
	l.head = i
}

// unlink bridges the neighbours of i and fixes head and tail.
func (l *LRU) unlink(i int32) {
	e := &l.slots[i]
	if e.prev != nilSlot {
		l.slots[e.prev].next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nilSlot {
		l.slots[e.next].prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev, e.next = nilSlot, nilSlot
}

func (l *LRU) remove(i int32) {
	l.unlink(i)
	e := &l.slots[i]
	l.index.Remove(e.key)
	l.size -= e.size()
	*e = entry{prev: nilSlot, next: nilSlot}
	l.free = append(l.free, i)
}

func (l *LRU) alloc() int32 {
	if n := len(l.free); n > 0 {
		i := l.free[n-1]
		l.free = l.free[:n-1]
		return i
	}
	l.slots = append(l.slots, entry{})
	return int32(len(l.slots) - 1)
}

func pairSize(key string, value []byte) int64 {
	return int64(len(key)) + int64(len(value))
}
