package executor

// Observer receives pool events. Gauge and rejection updates are made with the
// pool lock held, so implementations must not call back into the Executor.
type Observer interface {
	SetWorkers(n int)
	SetQueued(n int)
	IncRejected(reason string)
	IncCompleted()
	IncPanicked()
}

type NoopObserver struct{}

func (NoopObserver) SetWorkers(int)     {}
func (NoopObserver) SetQueued(int)      {}
func (NoopObserver) IncRejected(string) {}
func (NoopObserver) IncCompleted()      {}
func (NoopObserver) IncPanicked()       {}
