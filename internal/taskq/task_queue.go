// Package taskq provides the serial task queue that gates every
// request-producing operation in the SDK so that at most one is in flight at
// a time, in submission order.
package taskq

import (
	"sync"
	"time"
)

// Task is a unit of asynchronous work. A task must call done exactly once
// when it has finished, including on every failure path; a task that never
// calls done stalls the queue permanently. Callers that do anything fallible
// should arrange the call with defer.
type Task func(done func())

// Queue runs tasks strictly in submission order, starting each task only
// after the previous task's done signal has been observed. Submit is safe to
// call from any goroutine.
//
// A new Queue holds submitted tasks without running them until SetReady is
// called. The SDK uses this to let the application record events immediately
// while device registration is still resolving.
type Queue struct {
	mu       sync.Mutex
	tasks    []Task
	ready    bool
	running  bool
	draining bool
	closed   bool
	idle     chan struct{}
}

// NewQueue creates a Queue in the not-ready state.
func NewQueue() *Queue {
	return &Queue{}
}

// SetReady marks the queue ready and begins processing anything already
// queued. Calling it more than once has no further effect.
func (q *Queue) SetReady() {
	q.mu.Lock()
	q.ready = true
	q.mu.Unlock()
	q.processNext()
}

// Submit appends a task to the queue. Submitting a synchronous function is
// done by calling its done argument before returning.
func (q *Queue) Submit(task Task) {
	q.mu.Lock()
	if q.closed || q.draining {
		q.mu.Unlock()
		return
	}
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	q.processNext()
}

// Drain stops accepting new tasks and waits until everything already
// submitted has run to completion, up to the timeout. It returns false if a
// task was still in flight when the timeout elapsed. A not-ready queue drains
// immediately only if nothing was queued.
func (q *Queue) Drain(timeout time.Duration) bool {
	q.mu.Lock()
	q.draining = true
	if q.closed || (!q.running && len(q.tasks) == 0) {
		q.mu.Unlock()
		return true
	}
	if q.idle == nil {
		q.idle = make(chan struct{})
	}
	idle := q.idle
	q.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-idle:
		return true
	case <-timer.C:
		return false
	}
}

// Close drops any queued tasks and causes future Submit calls to be ignored.
// A task already running is not interrupted.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.tasks = nil
	q.signalIdleLocked()
}

func (q *Queue) signalIdleLocked() {
	if q.idle != nil {
		close(q.idle)
		q.idle = nil
	}
}

func (q *Queue) processNext() {
	q.mu.Lock()
	if !q.ready || q.running || len(q.tasks) == 0 {
		q.mu.Unlock()
		return
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	q.running = true
	q.mu.Unlock()

	var doneOnce sync.Once
	done := func() {
		doneOnce.Do(func() {
			q.mu.Lock()
			q.running = false
			if len(q.tasks) == 0 {
				q.signalIdleLocked()
			}
			q.mu.Unlock()
			q.processNext()
		})
	}
	go task(done)
}
