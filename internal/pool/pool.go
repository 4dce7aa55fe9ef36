// Package pool runs named tasks on a fixed number of goroutines, in the
// order of their deadlines.
package pool

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Pool executes tasks in order of their deadlines, using a fixed number of goroutines.
// Each run of a task returns the deadline of its next run; a zero deadline
// removes the task, and Idle parks it until it is triggered. If a task is
// added while the pool is waiting for the next task, it will wake up the
// waiting goroutine to process the new task immediately.
type Pool struct {
	mu    sync.Mutex
	queue []*task
	reg   map[string]*task
	wait  chan struct{}
	done  <-chan struct{}
	wg    sync.WaitGroup
}

type task struct {
	name     string
	fn       func(context.Context) time.Time
	deadline time.Time
	rerun    time.Time
}

// Idle returns a deadline that is never reached by itself.
func Idle() time.Time {
	return time.Now().Add(time.Hour * 24 * 365)
}

// New starts the workers. They stop once ctx is cancelled; the running
// tasks see ctx.
func New(ctx context.Context, workers int) *Pool {
	pool := &Pool{reg: make(map[string]*task), done: ctx.Done()}

	for range workers {
		pool.wg.Add(1)
		go pool.work(ctx)
	}

	return pool
}

// Add queues a task to run now.
func (p *Pool) Add(name string, fn func(context.Context) time.Time) {
	p.enqueue(&task{name: name, fn: fn, deadline: time.Now()})
}

// Wait blocks until the workers stopped.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// work is the main loop for each worker goroutine.
func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		t := p.dequeue()
		if t == nil {
			return
		}
		p.enqueue(p.execute(ctx, t))
	}
}

// Trigger runs the named task NOW, see TriggerAt.
func (p *Pool) Trigger(n string) error {
	return p.TriggerAt(n, time.Now())
}

// TriggerAt moves the next run of the named task to at. A queued task is
// rescheduled; a running task is rerun at the given time after the current
// run, overriding the deadline it returns. Subsequent runs use the deadline
// returned by the task's `fn`.
func (p *Pool) TriggerAt(n string, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i := slices.IndexFunc(p.queue, func(t *task) bool { return t.name == n }); i != -1 {
		p.queue[i].deadline = at
		p.sortAndWake()
		return nil
	}
	// if it's not in p.queue, it must be running at the moment
	if t, ok := p.reg[n]; ok {
		t.rerun = at
		return nil
	}

	return fmt.Errorf("no task with name %s", n)
}

// sortAndWake is used in multiple places, but always needs to be run
// within a p.mu lock!
func (p *Pool) sortAndWake() {
	// Maintain the tasks in deadline order.
	slices.SortFunc(p.queue, func(a, b *task) int {
		return a.deadline.Compare(b.deadline)
	})

	// Wake up any waiting goroutine.
	if p.wait != nil {
		close(p.wait)
		p.wait = nil
	}
}

func (p *Pool) enqueue(t *task) {
	if t == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if t.deadline.IsZero() {
		// Task requested removal from the pool.
		delete(p.reg, t.name)
		return
	}

	p.reg[t.name] = t
	p.queue = append(p.queue, t)
	p.sortAndWake()
}

// dequeue returns the next task once its deadline passed, or nil when the
// pool is stopped.
func (p *Pool) dequeue() *task {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		var deadline time.Time
		if len(p.queue) == 0 {
			deadline = Idle()
		} else {
			deadline = p.queue[0].deadline
		}

		if !deadline.After(time.Now()) {
			break
		}

		// Task is not ready yet, wait for it to be due or another (potentially earlier) task to arrive.
		if p.wait == nil {
			p.wait = make(chan struct{})
		}
		wait := p.wait

		p.mu.Unlock()

		timer := time.NewTimer(time.Until(deadline))
		select {
		case <-timer.C:
		case <-wait:
		case <-p.done:
		}
		timer.Stop()

		p.mu.Lock()

		select {
		case <-p.done:
			return nil
		default:
		}
	}

	var t *task
	t, p.queue = p.queue[0], p.queue[1:]
	return t
}

func (p *Pool) execute(ctx context.Context, t *task) *task {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	deadline := t.fn(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	t.deadline = deadline
	if !t.rerun.IsZero() {
		if deadline.IsZero() || t.rerun.Before(deadline) {
			t.deadline = t.rerun
		}
		t.rerun = time.Time{}
	}
	return t
}
