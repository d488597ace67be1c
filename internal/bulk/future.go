package bulk

import (
	"sync"

	"github.com/rat-data/colstore/internal/value"
)

// Result is what a submitted row operation eventually resolves to.
type Result struct {
	Found bool
	Row   value.Row
	Err   error
}

// Future is a single-assignment, wait-once completion handle for one
// row operation submitted to the Coordinator.
type Future struct {
	mu   sync.Mutex
	done chan struct{}
	res  Result
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// complete resolves the future exactly once; later calls are no-ops.
func (f *Future) complete(res Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return
	default:
		f.res = res
		close(f.done)
	}
}

// Wait blocks until the future resolves.
func (f *Future) Wait() Result {
	<-f.done
	return f.res
}

// Done exposes the completion channel for select-based waiting.
func (f *Future) Done() <-chan struct{} {
	return f.done
}
