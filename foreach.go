package threadpool

import (
	"context"

	"go.uber.org/multierr"
)

// RunOption configures the pool built by ForEach, Map and For.
type RunOption func(*runConfig)

type runConfig struct {
	opts Options
	sink *LogSink
}

// WithPrimary lets the primary context run tasks too.
func WithPrimary() RunOption {
	return func(c *runConfig) { c.opts.AllowPrimary = true }
}

// WithWorkers sets the worker count. The default uses every eligible context.
func WithWorkers(n int) RunOption {
	return func(c *runConfig) { c.opts.Workers = n }
}

// WithEnvironment replaces the runtime environment.
func WithEnvironment(env ExecutionEnvironment) RunOption {
	return func(c *runConfig) { c.opts.Env = env }
}

// WithOptions replaces all pool options. Later options still apply on top.
func WithOptions(o Options) RunOption {
	return func(c *runConfig) { c.opts = o }
}

// WithLogSink runs the call on a LoggingPool writing to sink. The sink is
// flushed but not closed when the call returns.
func WithLogSink(sink *LogSink) RunOption {
	return func(c *runConfig) { c.sink = sink }
}

// Map applies fn to every item on a freshly built pool and returns the
// results in input order, whichever worker ran them and whenever they
// finished. Failed items leave a zero value; their failures are combined
// into the returned error in input order.
//
// In a single-context environment every item runs sequentially on the
// caller with the same results.
func Map[T, R any](ctx context.Context, items []T, fn func(T) (R, error), opts ...RunOption) ([]R, error) {
	var cfg runConfig
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.sink != nil {
		lp, err := NewLoggingPool[R](cfg.sink, cfg.opts)
		if err != nil {
			return nil, err
		}
		out, err := MapOn(ctx, lp.Pool, items, fn)
		return out, multierr.Append(err, lp.Shutdown(context.WithoutCancel(ctx)))
	}

	p, err := NewPool[R](cfg.opts)
	if err != nil {
		return nil, err
	}
	out, err := MapOn(ctx, p, items, fn)
	return out, multierr.Append(err, p.Shutdown(context.WithoutCancel(ctx)))
}

// MapOn is Map on a caller-owned pool, which stays open. The pool must not
// be shared with other producers or consumers during the call.
func MapOn[T, R any](ctx context.Context, p *Pool[R], items []T, fn func(T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	failures := make([]error, len(items))
	index := make(map[uint64]int, len(items))

	var submitErr error
	for i, item := range items {
		t, err := p.Submit(ctx, func(context.Context) (R, error) { return fn(item) })
		if err != nil {
			submitErr = err
			break
		}
		index[t.ID()] = i
	}

	// Tasks already handed out run to completion and must be collected
	// even when ctx was canceled mid-submission.
	collect := context.WithoutCancel(ctx)
	for range len(index) {
		t, err := p.Retrieve(collect)
		if err != nil {
			return out, multierr.Append(submitErr, err)
		}
		i := index[t.ID()]
		out[i], failures[i] = t.Result()
	}
	return out, multierr.Combine(append(failures, submitErr)...)
}

// ForEach calls fn on every item for its side effects only.
func ForEach[T any](ctx context.Context, items []T, fn func(T) error, opts ...RunOption) error {
	_, err := Map(ctx, items, func(item T) (struct{}, error) {
		return struct{}{}, fn(item)
	}, opts...)
	return err
}

// ForEachOn is ForEach on a caller-owned pool.
func ForEachOn[T any](ctx context.Context, p *Pool[struct{}], items []T, fn func(T) error) error {
	_, err := MapOn(ctx, p, items, func(item T) (struct{}, error) {
		return struct{}{}, fn(item)
	})
	return err
}

// For runs body(i) for i in [0, n) in parallel.
func For(ctx context.Context, n int, body func(i int) error, opts ...RunOption) error {
	if n <= 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return ForEach(ctx, idx, body, opts...)
}
