package kv

// Storage is the capability set the serving layer calls into. Every failure is
// reported through the boolean result; nothing here panics or returns errors
// for expected conditions.
type Storage interface {
	// Put inserts key or overwrites its value.
	Put(key string, value []byte) bool
	// PutIfAbsent inserts key only when it is not stored yet.
	PutIfAbsent(key string, value []byte) bool
	// Set replaces the value of an existing key.
	Set(key string, value []byte) bool
	// Delete removes key. It reports whether an entry was removed.
	Delete(key string) bool
	// Get returns a copy of the value stored under key.
	Get(key string) ([]byte, bool)
}

// Observer receives cache events from the synchronized stores.
type Observer interface {
	IncHit()
	IncMiss()
	AddEvicted(n int)
	SetUsage(items int, bytes int64)
}

// NoopObserver discards every event.
type NoopObserver struct{}

func (NoopObserver) IncHit()             {}
func (NoopObserver) IncMiss()            {}
func (NoopObserver) AddEvicted(int)      {}
func (NoopObserver) SetUsage(int, int64) {}

var (
	_ Storage = (*LRU)(nil)
	_ Storage = (*Locked)(nil)
	_ Storage = (*Sharded)(nil)
)
