package kv

import (
	"github.com/tidwall/btree"
)

// Index maps a key to the arena slot holding its entry.
type Index interface {
	Lookup(key string) (int32, bool)
	Insert(key string, slot int32)
	Remove(key string)
	Len() int
	// Range calls fn for every key until fn returns false.
	Range(fn func(key string, slot int32) bool)
}

// hashIndex is the default O(1) index.
type hashIndex map[string]int32

func newHashIndex() hashIndex { return make(hashIndex) }

func (h hashIndex) Lookup(key string) (int32, bool) {
	s, ok := h[key]
	return s, ok
}

func (h hashIndex) Insert(key string, slot int32) { h[key] = slot }
func (h hashIndex) Remove(key string)             { delete(h, key) }
func (h hashIndex) Len() int                      { return len(h) }

func (h hashIndex) Range(fn func(string, int32) bool) {
	for k, s := range h {
		if !fn(k, s) {
			return
		}
	}
}

type indexItem struct {
	key  string
	slot int32
}

// orderedIndex keeps keys sorted, O(log n) per lookup. Range visits keys in
// lexical order.
type orderedIndex struct {
	tr *btree.BTreeG[indexItem]
}

func newOrderedIndex() *orderedIndex {
	less := func(a, b indexItem) bool { return a.key < b.key }
	// callers already serialize engine access
	return &orderedIndex{tr: btree.NewBTreeGOptions(less, btree.Options{NoLocks: true})}
}

func (o *orderedIndex) Lookup(key string) (int32, bool) {
	it, ok := o.tr.Get(indexItem{key: key})
	return it.slot, ok
}

func (o *orderedIndex) Insert(key string, slot int32) {
	o.tr.Set(indexItem{key: key, slot: slot})
}

func (o *orderedIndex) Remove(key string) {
	o.tr.Delete(indexItem{key: key})
}

func (o *orderedIndex) Len() int { return o.tr.Len() }

func (o *orderedIndex) Range(fn func(string, int32) bool) {
	o.tr.Scan(func(it indexItem) bool { return fn(it.key, it.slot) })
}
