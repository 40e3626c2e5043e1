// Package tasks runs fire-and-forget work such as cache warming. Submitters
// never observe a task's result; failures are only logged and counted.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/FACorreiaa/rocketstart-api/pkg/observability"
)

// Func is a unit of background work.
type Func func(ctx context.Context) error

// Submitter accepts fire-and-forget work.
type Submitter interface {
	Submit(name string, fn Func)
}

type job struct {
	name string
	fn   Func
}

// Runner is a bounded worker pool.
type Runner struct {
	logger  *slog.Logger
	queue   chan job
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ Submitter = (*Runner)(nil)

// NewRunner starts workers goroutines reading from a queue of queueSize.
// Each task gets its own timeout derived from the runner context.
func NewRunner(logger *slog.Logger, workers, queueSize int, timeout time.Duration) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		logger:  logger.With(slog.String("component", "tasks")),
		queue:   make(chan job, queueSize),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	return r
}

// Submit enqueues fn. A full queue or a stopped runner drops it with a warning.
func (r *Runner) Submit(name string, fn Func) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("task dropped, runner stopped", slog.String("task", name))
		observability.Task(name, "dropped")
		return
	}
	select {
	case r.queue <- job{name: name, fn: fn}:
	default:
		r.logger.Warn("task dropped, queue full", slog.String("task", name))
		observability.Task(name, "dropped")
	}
}

func (r *Runner) work() {
	defer r.wg.Done()
	for j := range r.queue {
		r.run(j)
	}
}

func (r *Runner) run(j job) {
	l := r.logger.With(slog.String("task", j.name))

	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			l.Error("task panicked", slog.Any("panic", rec))
			observability.Task(j.name, "panic")
		}
	}()

	if err := j.fn(ctx); err != nil {
		l.Warn("task failed", slog.Any("error", err))
		observability.Task(j.name, "failed")
		return
	}
	observability.Task(j.name, "ok")
}

// Shutdown stops intake and waits for queued tasks. When ctx expires first the
// in-flight tasks are cancelled.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		return fmt.Errorf("tasks shutdown: %w", ctx.Err())
	}
}
