// Package executor runs submitted tasks on a pool of goroutines whose size
// floats between a low and a high watermark. Tasks wait in a bounded FIFO
// queue; a full queue rejects new work instead of blocking the caller.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotRunning is returned by Execute once Stop has been called.
	ErrNotRunning = errors.New("executor: not running")
	// ErrQueueFull is returned by Execute when MaxQueueSize tasks are pending.
	ErrQueueFull = errors.New("executor: queue full")
)

const DefaultIdleTimeout = 5 * time.Second

type State int

const (
	Running State = iota
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config is fixed for the lifetime of an Executor.
type Config struct {
	LowWatermark  int           `yaml:"low_watermark"`  // workers kept alive while idle
	HighWatermark int           `yaml:"high_watermark"` // maximum workers under load
	MaxQueueSize  int           `yaml:"max_queue_size"` // pending tasks before Execute rejects
	IdleTimeout   time.Duration `yaml:"idle_timeout"`   // idle time before a surplus worker exits
}

// normalize clamps out-of-range values instead of failing.
func (c Config) normalize() Config {
	if c.LowWatermark < 0 {
		c.LowWatermark = 0
	}
	if c.HighWatermark < c.LowWatermark {
		c.HighWatermark = c.LowWatermark
	}
	if c.HighWatermark < 1 {
		c.HighWatermark = 1
	}
	if c.MaxQueueSize < 1 {
		c.MaxQueueSize = 1
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	State   State `json:"-"`
	Workers int   `json:"workers"`
	Busy    int   `json:"busy"`
	Queued  int   `json:"queued"`
}

type Option func(*Executor)

func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.log = l }
}

func WithObserver(o Observer) Option {
	return func(e *Executor) { e.obs = o }
}

// Executor is a dynamically sized worker pool. All mutable state lives behind
// mu; workers sleep on wake, quit or their idle timer.
type Executor struct {
	cfg Config
	log *zap.Logger
	obs Observer

	mu      sync.Mutex
	state   State
	queue   *taskQueue
	workers int
	busy    int
	nextID  int

	wake chan struct{} // one token per submitted task, lossy
	quit chan struct{} // closed by Stop
	done chan struct{} // closed when the pool reaches Stopped
}

// New starts cfg.LowWatermark workers and returns a running pool.
func New(cfg Config, opts ...Option) *Executor {
	cfg = cfg.normalize()
	e := &Executor{
		cfg:   cfg,
		log:   zap.NewNop(),
		obs:   NoopObserver{},
		state: Running,
		queue: newTaskQueue(cfg.MaxQueueSize),
		wake:  make(chan struct{}, cfg.HighWatermark),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}

	e.mu.Lock()
	for i := 0; i < cfg.LowWatermark; i++ {
		e.spawnLocked()
	}
	e.mu.Unlock()

	e.log.Info("executor.start",
		zap.Int("low_watermark", cfg.LowWatermark),
		zap.Int("high_watermark", cfg.HighWatermark),
		zap.Int("max_queue_size", cfg.MaxQueueSize),
		zap.Duration("idle_timeout", cfg.IdleTimeout))
	return e
}

// Config returns the normalized configuration.
func (e *Executor) Config() Config { return e.cfg }

// Execute enqueues task. It never blocks: a stopped pool or a full queue is
// reported immediately through ErrNotRunning or ErrQueueFull.
func (e *Executor) Execute(task func()) error {
	if task == nil {
		return errors.New("executor: nil task")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Running {
		e.obs.IncRejected("stopped")
		return ErrNotRunning
	}
	if e.queue.full() {
		e.obs.IncRejected("queue_full")
		return ErrQueueFull
	}
	e.queue.push(task)
	e.obs.SetQueued(e.queue.len())

	// grow only when the queue outnumbers the workers that could take it
	if idle := e.workers - e.busy; e.queue.len() > idle && e.workers < e.cfg.HighWatermark {
		e.spawnLocked()
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// Submit reports whether task was accepted.
func (e *Executor) Submit(task func()) bool {
	return e.Execute(task) == nil
}

// Stop stops accepting tasks and lets the workers drain the queue and exit.
// With await it blocks until every worker has returned. Stop must not be
// called with await from inside a task.
func (e *Executor) Stop(await bool) {
	e.mu.Lock()
	if e.state == Running {
		e.state = Stopping
		close(e.quit)
		e.log.Info("executor.stop", zap.Int("workers", e.workers), zap.Int("queued", e.queue.len()))
		if e.workers == 0 {
			e.finishLocked()
		}
	}
	e.mu.Unlock()

	if await {
		<-e.done
	}
}

// Shutdown stops the pool and waits for it to drain until ctx is done.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.Stop(false)
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor shutdown: %w", ctx.Err())
	}
}

// Done is closed once the pool has stopped.
func (e *Executor) Done() <-chan struct{} { return e.done }

func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		State:   e.state,
		Workers: e.workers,
		Busy:    e.busy,
		Queued:  e.queue.len(),
	}
}

func (e *Executor) spawnLocked() {
	e.workers++
	e.nextID++
	e.obs.SetWorkers(e.workers)
	go e.worker(e.nextID)
}

// exitLocked retires the calling worker. The last worker out of a stopping
// pool completes the shutdown.
func (e *Executor) exitLocked(id int, reason string) {
	e.workers--
	e.obs.SetWorkers(e.workers)
	if ce := e.log.Check(zap.DebugLevel, "executor.worker.exit"); ce != nil {
		ce.Write(zap.Int("worker", id), zap.String("reason", reason), zap.Int("workers", e.workers))
	}
	if e.workers == 0 && e.state != Running {
		e.finishLocked()
	}
}

func (e *Executor) finishLocked() {
	// nothing can run what is left
	e.queue.clear()
	e.obs.SetQueued(0)
	e.state = Stopped
	close(e.done)
	e.log.Info("executor.stopped")
}
