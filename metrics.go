package threadpool

import (
	"sync/atomic"
	"time"
)

// MetricsPolicy defines hooks used by the pool to report submission and
// execution activity.
//
// Implementations must be safe for concurrent use.
// All methods are expected to be lightweight and non-blocking.
type MetricsPolicy interface {
	// IncSubmitted is called once a task has been handed to a worker.
	IncSubmitted()

	// IncExecuted is called after a task body returned successfully.
	IncExecuted()

	// IncFailed is called after a task failed or panicked.
	IncFailed()

	// ObserveRun records how long a task occupied the given worker,
	// retries and backoff included.
	ObserveRun(worker int, d time.Duration)
}

// AtomicMetrics is a lock-free metrics implementation backed by atomics.
//
// Writes are optimized for hot paths.
// Reads are intended for cold-path observation.
type AtomicMetrics struct {
	submitted atomic.Uint64

	_ [56]byte // padding to avoid false sharing

	executed atomic.Uint64
	failed   atomic.Uint64

	_ [48]byte

	busyNanos atomic.Int64
}

// Submitted returns the total number of submitted tasks.
func (m *AtomicMetrics) Submitted() uint64 { return m.submitted.Load() }

// Executed returns the number of tasks that completed successfully.
func (m *AtomicMetrics) Executed() uint64 { return m.executed.Load() }

// Failed returns the number of tasks that failed or panicked.
func (m *AtomicMetrics) Failed() uint64 { return m.failed.Load() }

// Busy returns the summed run time over all workers.
func (m *AtomicMetrics) Busy() time.Duration { return time.Duration(m.busyNanos.Load()) }

func (m *AtomicMetrics) IncSubmitted() { m.submitted.Add(1) }
func (m *AtomicMetrics) IncExecuted()  { m.executed.Add(1) }
func (m *AtomicMetrics) IncFailed()    { m.failed.Add(1) }

func (m *AtomicMetrics) ObserveRun(_ int, d time.Duration) {
	m.busyNanos.Add(int64(d))
}

//------------- NoopMetrics ----------------------------------

// NoopMetrics is a MetricsPolicy implementation that discards
// all metric updates.
type NoopMetrics struct{}

func (m *NoopMetrics) IncSubmitted()                 {}
func (m *NoopMetrics) IncExecuted()                  {}
func (m *NoopMetrics) IncFailed()                    {}
func (m *NoopMetrics) ObserveRun(int, time.Duration) {}
