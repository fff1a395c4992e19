package threadpool

import (
	"fmt"
	"runtime"
)

// PrimaryContext is the id of the distinguished primary execution context.
// Context ids are 1-based; workers report the id of the context they own.
const PrimaryContext = 1

// ExecutionEnvironment describes the execution contexts a pool may draw
// workers from.
type ExecutionEnvironment interface {
	// NumContexts reports how many parallel execution contexts exist.
	NumContexts() int

	// HasPrimary reports whether context 1 is a distinguished primary
	// context that callers may want to keep free.
	HasPrimary() bool
}

// RuntimeEnvironment reads the number of contexts from GOMAXPROCS.
// Context 1 is treated as primary: it is the context the caller's
// coordinating goroutine is expected to run on.
type RuntimeEnvironment struct{}

func (RuntimeEnvironment) NumContexts() int { return runtime.GOMAXPROCS(0) }
func (RuntimeEnvironment) HasPrimary() bool { return true }

// FixedEnvironment is an ExecutionEnvironment with a fixed shape.
// It is mostly useful in tests and for reproducing a deployment layout.
type FixedEnvironment struct {
	Contexts  int
	NoPrimary bool
}

func (e FixedEnvironment) NumContexts() int { return e.Contexts }
func (e FixedEnvironment) HasPrimary() bool { return !e.NoPrimary }

// assignContexts returns the context ids the pool's workers will occupy.
//
// A nil slice with a nil error means zero-worker mode: the environment has a
// single context and every task runs synchronously on the caller.
func assignContexts(env ExecutionEnvironment, workers int, allowPrimary bool) ([]int, error) {
	if workers < 0 {
		return nil, fmt.Errorf("%w: worker count %d is negative", ErrConfiguration, workers)
	}
	n := env.NumContexts()
	if n <= 1 {
		return nil, nil
	}

	first := 1
	if env.HasPrimary() && !allowPrimary {
		first = PrimaryContext + 1
	}
	eligible := n - first + 1
	if workers == 0 {
		workers = eligible
	}
	if workers > eligible {
		return nil, fmt.Errorf("%w: %d workers requested, %d contexts available (allow primary: %t)",
			ErrConfiguration, workers, eligible, allowPrimary)
	}

	ids := make([]int, workers)
	for i := range ids {
		ids[i] = first + i
	}
	return ids, nil
}
