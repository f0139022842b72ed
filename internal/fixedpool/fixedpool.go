// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fixedpool runs tasks on an explicitly sized set of workers.
// The connection dispatcher uses it to guarantee each accepted
// connection's work is serialized onto exactly one worker.
package fixedpool

import (
	"fmt"
	"sync"
)

// Task is one unit of work. A task owns whatever resources it captures
// and must release them itself; the pool only schedules.
type Task func()

// Pool is a fixed-size worker pool. Workers live for the whole pool
// lifetime; a panicking task is recovered so the worker survives.
type Pool struct {
	tasks   chan Task
	wg      sync.WaitGroup
	onPanic func(error)

	closeOnce sync.Once
}

// New starts size workers. Backlog bounds how many submitted tasks may
// wait unscheduled; a full backlog makes Submit block, applying
// backpressure to the producer. onPanic, if non-nil, observes panics
// recovered from tasks.
func New(size, backlog int, onPanic func(error)) *Pool {
	if size < 1 {
		size = 1
	}
	if backlog < 0 {
		backlog = 0
	}
	p := &Pool{
		tasks:   make(chan Task, backlog),
		onPanic: onPanic,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

// Submit schedules a task, blocking while the backlog is full.
// Submitting to a closed pool panics, matching the usage contract that
// producers stop before Close.
func (p *Pool) Submit(t Task) {
	p.tasks <- t
}

// Close stops accepting tasks and waits for in-flight and backlogged
// tasks to finish. Close is idempotent.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}

func (p *Pool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		// must be called directly in defer for recover() to work
		r := recover()
		if r == nil {
			return
		}
		if p.onPanic == nil {
			return
		}
		rerr, ok := r.(error)
		if !ok {
			rerr = fmt.Errorf("recovered from panic: %v", r)
		}
		p.onPanic(rerr)
	}()

	task()
}
