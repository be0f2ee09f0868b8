// Package node serves the cache over HTTP. Every storage call runs as a task
// on the executor, so the pool's queue bound is the node's backpressure.
package node

import (
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrcore/pkg/executor"
	"github.com/ryandielhenn/zephyrcore/pkg/kv"
)

// Store is the storage a Node needs: the capability set plus usage figures.
type Store interface {
	kv.Storage
	Len() int
	Size() int64
	Capacity() int64
	MaxPairSize() int64
}

type Node struct {
	store   Store
	exec    *executor.Executor
	id      string
	addr    string
	timeout time.Duration
	log     *zap.Logger
}

type Option func(*Node)

func WithLogger(l *zap.Logger) Option {
	return func(n *Node) { n.log = l }
}

// WithRequestTimeout bounds how long a handler waits for its task.
func WithRequestTimeout(d time.Duration) Option {
	return func(n *Node) { n.timeout = d }
}

func New(store Store, exec *executor.Executor, id, addr string, opts ...Option) *Node {
	n := &Node{
		store:   store,
		exec:    exec,
		id:      id,
		addr:    addr,
		timeout: 5 * time.Second,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *Node) ID() string { return n.id }

func (n *Node) Addr() string { return n.addr }
