package threadpool

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/google/uuid"
)

// Submitter is the producer side of a pool.
type Submitter[R any] interface {
	Submit(ctx context.Context, fn TaskFunc[R]) (*Task[R], error)
	Close()
	IsActive() bool
}

// Collector is the consumer side of a pool.
type Collector[R any] interface {
	Retrieve(ctx context.Context) (*Task[R], error)
	Results(ctx context.Context) iter.Seq[*Task[R]]
}

var (
	_ Submitter[int] = (*Pool[int])(nil)
	_ Collector[int] = (*Pool[int])(nil)
)

// taskObserver is notified on the worker right before a task body runs
// and right after it returned. LoggingPool is the only implementation.
type taskObserver interface {
	taskStarted(id uint64, worker int)
	taskStopped(id uint64, worker int)
}

// PoolStats is a point-in-time snapshot of a pool.
type PoolStats struct {
	ID        string
	Workers   int
	Busy      int
	Active    int64
	Submitted uint64
	Pending   int
	Closed    bool
}

// Pool runs submitted tasks on a fixed set of workers, one task per worker
// at a time, and hands completed tasks back in completion order.
type Pool[R any] struct {
	id      string
	opts    Options
	obs     taskObserver
	workers []*worker[R]
	free    chan *worker[R]
	results *resultQueue[R]

	seq    atomic.Uint64
	active atomic.Int64
	busy   atomic.Int32

	inflight sync.WaitGroup // accepted submissions whose result is not posted yet
	wg       sync.WaitGroup // worker goroutines

	mu       sync.RWMutex
	closed   bool
	closing  chan struct{} // closed before closed is set, wakes waiting submitters
	stopOnce sync.Once
	drained  chan struct{}
}

// New creates a pool with the given worker count in the runtime environment.
// With allowPrimary false the primary context never runs a task.
func New[R any](workers int, allowPrimary bool) (*Pool[R], error) {
	return NewPool[R](Options{Workers: workers, AllowPrimary: allowPrimary})
}

// NewPool creates a pool from options.
//
// When the environment has a single execution context the pool has no
// workers and Submit runs every task synchronously on the caller.
func NewPool[R any](opts Options) (*Pool[R], error) {
	return newPool[R](opts, nil)
}

func newPool[R any](opts Options, obs taskObserver) (*Pool[R], error) {
	opts.FillDefaults()

	ids, err := assignContexts(opts.Env, opts.Workers, opts.AllowPrimary)
	if err != nil {
		return nil, err
	}

	p := &Pool[R]{
		id:      uuid.NewString(),
		opts:    opts,
		obs:     obs,
		free:    make(chan *worker[R], len(ids)),
		results: newResultQueue[R](max(len(ids)*2, initialResultCapacity)),
		closing: make(chan struct{}),
		drained: make(chan struct{}),
	}
	primary := opts.Env.HasPrimary()
	for _, id := range ids {
		w := newWorker(p, id, primary && id == PrimaryContext)
		p.workers = append(p.workers, w)
		p.free <- w
		p.wg.Add(1)
		go w.run()
	}
	return p, nil
}

// ID returns the pool instance id used in log fields.
func (p *Pool[R]) ID() string { return p.id }

// Workers returns the context ids occupied by the pool's workers.
// It is empty in zero-worker mode.
func (p *Pool[R]) Workers() []int {
	ids := make([]int, len(p.workers))
	for i, w := range p.workers {
		ids[i] = w.id
	}
	return ids
}

// Submit hands fn to a free worker and returns without waiting for it to
// run. It blocks while every worker is busy; ctx bounds only that wait and
// is passed to fn.
func (p *Pool[R]) Submit(ctx context.Context, fn TaskFunc[R]) (*Task[R], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Reserve an in-flight slot while holding the read lock so the drain
	// in Shutdown cannot miss this submission. The lock is released before
	// waiting for a worker.
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	p.inflight.Add(1)
	p.mu.RUnlock()

	if len(p.workers) == 0 {
		t := newTask(ctx, p.seq.Add(1), fn)
		p.active.Add(1)
		p.opts.Metrics.IncSubmitted()
		p.execute(t, PrimaryContext)
		p.results.push(t)
		p.inflight.Done()
		return t, nil
	}

	var w *worker[R]
	select {
	case w = <-p.free:
	case <-p.closing:
		p.inflight.Done()
		return nil, ErrPoolClosed
	case <-ctx.Done():
		p.inflight.Done()
		return nil, ctx.Err()
	}
	select {
	case <-p.closing:
		p.free <- w
		p.inflight.Done()
		return nil, ErrPoolClosed
	default:
	}

	t := newTask(ctx, p.seq.Add(1), fn)
	p.active.Add(1)
	p.opts.Metrics.IncSubmitted()
	w.inbox <- t

	lg.FromContext(ctx).Info("Task submitted",
		lg.String("pool", p.id),
		lg.Any("task", t.id),
		lg.Int("worker", w.id),
	)
	return t, nil
}

// Retrieve returns the earliest completed task that has not been retrieved
// yet, blocking until one exists. It returns ErrPoolClosed once the pool is
// closed and drained.
func (p *Pool[R]) Retrieve(ctx context.Context) (*Task[R], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	t, err := p.results.pop(ctx)
	if err != nil {
		return nil, err
	}
	p.active.Add(-1)
	return t, nil
}

// Results iterates over completed tasks until the pool is closed and
// drained, or ctx is done.
func (p *Pool[R]) Results(ctx context.Context) iter.Seq[*Task[R]] {
	return func(yield func(*Task[R]) bool) {
		for {
			t, err := p.Retrieve(ctx)
			if err != nil {
				return
			}
			if !yield(t) {
				return
			}
		}
	}
}

// IsActive reports whether any task is queued, executing or waiting to be
// retrieved.
func (p *Pool[R]) IsActive() bool { return p.active.Load() != 0 }

// Active returns the number of submitted tasks not yet retrieved.
func (p *Pool[R]) Active() int64 { return p.active.Load() }

// Shutdown stops accepting tasks and waits until every dispatched task has
// posted its result, then retires the workers. Results that were not
// retrieved yet stay available to Retrieve.
//
// If ctx ends first, Shutdown returns ctx.Err() and the drain continues in
// the background; calling Shutdown or Close again waits for it.
func (p *Pool[R]) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.closing)
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		go func() {
			p.inflight.Wait()
			for _, w := range p.workers {
				close(w.inbox)
			}
			p.wg.Wait()
			p.results.close()
			close(p.drained)
		}()
	})

	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is the blocking form of Shutdown. It is safe to call more than once.
func (p *Pool[R]) Close() { _ = p.Shutdown(context.Background()) }

// Stats returns a snapshot of the pool state.
func (p *Pool[R]) Stats() PoolStats {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	return PoolStats{
		ID:        p.id,
		Workers:   len(p.workers),
		Busy:      int(p.busy.Load()),
		Active:    p.active.Load(),
		Submitted: p.seq.Load(),
		Pending:   p.results.Len(),
		Closed:    closed,
	}
}
