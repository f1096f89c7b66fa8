package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/dicton/internal/shared"
)

// Task is a unit of asynchronous work run on the bridge worker. It must
// honor ctx cancellation; the bridge never force-kills a task.
type Task func(ctx context.Context) (any, error)

// Future is the caller's handle on a submitted task.
type Future struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	result any
	err    error
}

// Wait blocks until the task completes or the timeout elapses. On timeout
// it returns shared.ErrTimeout; the task keeps running and may be told to
// stop with Cancel.
func (f *Future) Wait(timeout time.Duration) (any, error) {
	select {
	case <-f.done:
	case <-time.After(timeout):
		return nil, shared.ErrTimeout
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

// Cancel requests cooperative cancellation of the task's context.
func (f *Future) Cancel() {
	f.cancel()
}

// Done exposes completion for select-based callers.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

type submission struct {
	name   string
	fn     Task
	future *Future
	ctx    context.Context
}

// Bridge owns one long-lived worker goroutine shared by the whole process.
// Synchronous callers submit asynchronous work and block only on bounded
// Future waits. Tasks run one at a time, which also serializes streaming
// exchanges: one audio session on the wire at any moment.
//
// The worker starts lazily on first submit. A single persistent worker
// avoids the startup cost and shutdown races of a per-call goroutine pair
// with its own lifecycle.
type Bridge struct {
	log *slog.Logger

	mu      sync.Mutex
	tasks   chan submission
	started bool
	closed  bool
}

const submitBuffer = 16

func New(log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		log:   log,
		tasks: make(chan submission, submitBuffer),
	}
}

// Submit enqueues fn for execution and returns its future. It never blocks
// on the work itself; a saturated queue is an error rather than a stall.
func (b *Bridge) Submit(name string, fn Task) (*Future, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, shared.ErrBridgeClosed
	}
	if !b.started {
		b.started = true
		go b.run()
	}
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	f := &Future{done: make(chan struct{}), cancel: cancel}

	select {
	case b.tasks <- submission{name: name, fn: fn, future: f, ctx: ctx}:
		return f, nil
	default:
		cancel()
		return nil, shared.ErrBridgeClosed
	}
}

func (b *Bridge) run() {
	b.log.Debug("bridge worker started")
	for sub := range b.tasks {
		b.execute(sub)
	}
	b.log.Debug("bridge worker stopped")
}

func (b *Bridge) execute(sub submission) {
	defer sub.future.cancel()

	start := time.Now()
	result, err := sub.fn(sub.ctx)

	sub.future.mu.Lock()
	sub.future.result = result
	sub.future.err = err
	sub.future.mu.Unlock()
	close(sub.future.done)

	if err != nil {
		b.log.Debug("bridge task failed", "task", sub.name, "elapsed", time.Since(start), "error", err)
	} else {
		b.log.Debug("bridge task done", "task", sub.name, "elapsed", time.Since(start))
	}
}

// Close stops accepting work. The worker drains what was already queued.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.tasks)
}
