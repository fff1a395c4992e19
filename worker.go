package threadpool

import (
	"context"
	"fmt"
	"runtime"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	lg "github.com/Andrej220/go-utils/zlog"
)

// worker owns one execution context and a single-slot inbox.
//
// The pool only sends to the inbox after taking the worker from the free
// channel, and the worker puts itself back only after posting the result,
// so the inbox never holds more than one task and tasks assigned to a
// worker run in the order they were assigned.
type worker[R any] struct {
	id      int
	primary bool
	pool    *Pool[R]
	inbox   chan *Task[R]
}

func newWorker[R any](p *Pool[R], id int, primary bool) *worker[R] {
	return &worker[R]{
		id:      id,
		primary: primary,
		pool:    p,
		inbox:   make(chan *Task[R], 1),
	}
}

func (w *worker[R]) run() {
	p := w.pool
	defer p.wg.Done()

	if p.opts.PinWorkers {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := PinToCPU(w.id - 1); err != nil {
			p.reportInternalError(fmt.Errorf("pin worker %d: %w", w.id, err))
		}
	}

	for t := range w.inbox {
		p.busy.Add(1)
		p.execute(t, w.id)
		p.busy.Add(-1)

		p.results.push(t)
		p.inflight.Done()
		p.free <- w
	}
}

// execute runs t on the given context and fills its result slot.
// Failures never escape: they are captured in the slot and reported.
func (p *Pool[R]) execute(t *Task[R], worker int) {
	if p.obs != nil {
		p.obs.taskStarted(t.id, worker)
	}
	start := time.Now()
	value, err := p.invoke(t, worker)
	elapsed := time.Since(start)
	if p.obs != nil {
		p.obs.taskStopped(t.id, worker)
	}

	p.opts.Metrics.ObserveRun(worker, elapsed)
	if err != nil {
		p.opts.Metrics.IncFailed()
		p.reportTaskError(err)
		t.finish(worker, value, err)
		return
	}
	p.opts.Metrics.IncExecuted()
	t.finish(worker, value, nil)
}

// invoke calls the task body, retrying failed attempts with backoff as
// configured by the pool's RetryPolicy. A panic is never retried.
func (p *Pool[R]) invoke(t *Task[R], worker int) (R, *TaskFailure) {
	var zero R
	pol := p.opts.Retry
	logger := lg.FromContext(t.ctx).With(
		lg.String("pool", p.id),
		lg.Any("task", t.id),
		lg.Int("worker", worker),
	)

	var nextDelay func() time.Duration
	if pol.Attempts > 1 {
		bo := boff.New(pol.Initial, pol.Max, time.Now().UnixNano())
		nextDelay = bo.Next
	}

	for attempt := 1; ; attempt++ {
		value, recovered, err := call(t.ctx, t.fn)
		if recovered != nil {
			logger.Error("task panicked", lg.Any("panic", recovered))
			return zero, &TaskFailure{
				TaskID: t.id,
				Worker: worker,
				Err:    fmt.Errorf("panic: %v", recovered),
				Panic:  recovered,
			}
		}
		if err == nil {
			return value, nil
		}

		failure := &TaskFailure{TaskID: t.id, Worker: worker, Err: err}
		if attempt >= pol.Attempts {
			logger.Error("task failed", lg.Int("attempt", attempt), lg.Any("error", err))
			return zero, failure
		}

		delay := nextDelay()
		logger.Warn("task attempt failed; backing off",
			lg.Int("attempt", attempt),
			lg.String("sleep", delay.String()),
			lg.Any("error", err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-t.ctx.Done():
			timer.Stop()
			logger.Info("task retry canceled", lg.Any("reason", t.ctx.Err()))
			return zero, failure
		}
	}
}

// call runs fn and converts a panic into a recovered value.
func call[R any](ctx context.Context, fn TaskFunc[R]) (value R, recovered any, err error) {
	defer func() {
		if r := recover(); r != nil {
			recovered = r
		}
	}()
	value, err = fn(ctx)
	return value, nil, err
}
