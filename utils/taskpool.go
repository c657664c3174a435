// Package utils contains the worker-pool machinery shared by the batch
// runners.
package utils

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// DefaultParallelism is the worker count used when a pool is constructed
// without an explicit one.
var DefaultParallelism = runtime.NumCPU()

// ErrPoolStopped is returned from TaskHandle.Wait for tasks that were
// discarded before a worker claimed them.
var ErrPoolStopped = errors.New("task pool stopped before task started")

// TaskHandle is the completion token for a submitted task. Wait blocks until
// the task has run (or was discarded) and returns its error.
type TaskHandle struct {
	done chan struct{}
	fn   func() error
	err  error
}

// Wait blocks until the task completes and returns its error.
func (h *TaskHandle) Wait() error {
	<-h.done
	return h.err
}

// TaskPool runs independent tasks on a fixed number of worker goroutines.
// Tasks are claimed in submission order; completion is observed per task
// through its handle.
type TaskPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*TaskHandle
	stopped bool
	closed  bool
	workers sync.WaitGroup
}

// NewTaskPool creates a pool with the given number of workers, or
// DefaultParallelism when numWorkers is not positive.
func NewTaskPool(numWorkers int) *TaskPool {
	if numWorkers <= 0 {
		numWorkers = DefaultParallelism
	}
	p := &TaskPool{}
	p.cond = sync.NewCond(&p.mu)
	p.workers.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		goutils.PanicCapturingGo(func() {
			defer p.workers.Done()
			p.worker()
		})
	}
	return p
}

func (p *TaskPool) worker() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped && !p.closed {
			p.cond.Wait()
		}
		if p.stopped || len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		t.err = t.fn()
		close(t.done)
	}
}

// Submit enqueues a task and returns its completion handle. Submitting to a
// stopped or closed pool yields a handle that immediately reports
// ErrPoolStopped.
func (p *TaskPool) Submit(fn func() error) *TaskHandle {
	t := &TaskHandle{done: make(chan struct{}), fn: fn}
	p.mu.Lock()
	if p.stopped || p.closed {
		p.mu.Unlock()
		t.err = ErrPoolStopped
		close(t.done)
		return t
	}
	p.queue = append(p.queue, t)
	p.cond.Signal()
	p.mu.Unlock()
	return t
}

// Stop discards all queued-but-unstarted tasks and shuts the workers down.
// Tasks already running execute to completion; this never interrupts one
// mid-execution.
func (p *TaskPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	discarded := p.queue
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, t := range discarded {
		t.err = ErrPoolStopped
		close(t.done)
	}
	p.workers.Wait()
}

// Close waits for every queued and running task to finish, then shuts the
// workers down.
func (p *TaskPool) Close() {
	p.mu.Lock()
	if p.closed || p.stopped {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.workers.Wait()
}
