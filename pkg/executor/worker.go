package executor

import (
	"time"

	"go.uber.org/zap"
)

// worker runs tasks until the pool stops or, as a surplus worker, until it has
// been idle for IdleTimeout.
func (e *Executor) worker(id int) {
	timer := time.NewTimer(e.cfg.IdleTimeout)
	defer timer.Stop()
	deadline := time.Now().Add(e.cfg.IdleTimeout)

	e.mu.Lock()
	for {
		if task, ok := e.queue.pop(); ok {
			e.busy++
			e.obs.SetQueued(e.queue.len())
			e.mu.Unlock()

			e.run(id, task)

			e.mu.Lock()
			e.busy--
			deadline = time.Now().Add(e.cfg.IdleTimeout)
			continue
		}

		if e.state != Running {
			e.exitLocked(id, "stop")
			e.mu.Unlock()
			return
		}

		if !time.Now().Before(deadline) {
			if e.workers > e.cfg.LowWatermark {
				e.exitLocked(id, "idle")
				e.mu.Unlock()
				return
			}
			deadline = time.Now().Add(e.cfg.IdleTimeout)
		}
		e.mu.Unlock()

		resetTimer(timer, time.Until(deadline))
		select {
		case <-e.wake:
		case <-e.quit:
		case <-timer.C:
		}

		e.mu.Lock()
	}
}

// run executes task and keeps a panic from taking the worker down.
func (e *Executor) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.obs.IncPanicked()
			e.log.Error("executor.task.panic", zap.Int("worker", id), zap.Any("panic", r), zap.Stack("stack"))
			return
		}
		e.obs.IncCompleted()
	}()
	task()
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
