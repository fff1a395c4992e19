package threadpool

import (
	"context"
	"fmt"
	"time"
)

// LoggingPool is a Pool that records when each task starts and stops on
// which worker. The resulting log is read back with ReadLog and analyzed
// with ComputeStats and ComputeActivity.
//
// Timestamps are seconds since the pool was created.
type LoggingPool[R any] struct {
	*Pool[R]
	sink  *LogSink
	epoch time.Time
}

// NewLoggingPool creates a logging pool writing to sink.
//
// An activity log only makes sense with more than one execution context,
// so a single-context environment yields ErrUnsupportedConfiguration.
func NewLoggingPool[R any](sink *LogSink, opts Options) (*LoggingPool[R], error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: nil log sink", ErrConfiguration)
	}
	opts.FillDefaults()
	if n := opts.Env.NumContexts(); n < 2 {
		return nil, fmt.Errorf("%w: activity logging needs more than one execution context, have %d",
			ErrUnsupportedConfiguration, n)
	}

	lp := &LoggingPool[R]{sink: sink, epoch: time.Now()}
	p, err := newPool[R](opts, lp)
	if err != nil {
		return nil, err
	}
	lp.Pool = p
	return lp, nil
}

// Sink returns the sink the pool logs to.
func (lp *LoggingPool[R]) Sink() *LogSink { return lp.sink }

// Shutdown drains the pool like Pool.Shutdown and flushes the sink.
func (lp *LoggingPool[R]) Shutdown(ctx context.Context) error {
	if err := lp.Pool.Shutdown(ctx); err != nil {
		return err
	}
	return lp.sink.Flush()
}

// Close drains the pool and flushes the sink. The sink itself stays open;
// it belongs to the caller.
func (lp *LoggingPool[R]) Close() {
	if err := lp.Shutdown(context.Background()); err != nil {
		lp.reportInternalError(fmt.Errorf("flush task log: %w", err))
	}
}

func (lp *LoggingPool[R]) taskStarted(id uint64, worker int) {
	lp.record(id, worker, EventStart)
}

func (lp *LoggingPool[R]) taskStopped(id uint64, worker int) {
	lp.record(id, worker, EventStop)
}

func (lp *LoggingPool[R]) record(id uint64, worker int, kind EventKind) {
	err := lp.sink.Append(Event{
		Job:    int(id),
		Worker: worker,
		Kind:   kind,
		Time:   time.Since(lp.epoch).Seconds(),
	})
	if err != nil {
		lp.reportInternalError(fmt.Errorf("append %s event for task %d: %w", kind, id, err))
	}
}
