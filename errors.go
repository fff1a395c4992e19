package threadpool

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned for an invalid worker count or when the
	// environment has fewer execution contexts than requested.
	ErrConfiguration = errors.New("threadpool: invalid configuration")

	// ErrPoolClosed is returned by Submit after Close, and by Retrieve once
	// the pool is closed and every result has been taken.
	ErrPoolClosed = errors.New("threadpool: pool closed")

	// ErrUnsupportedConfiguration is returned when activity logging is
	// requested in an environment with a single execution context.
	ErrUnsupportedConfiguration = errors.New("threadpool: unsupported configuration")

	// ErrMalformedLog is returned when a task log cannot be parsed or is
	// internally inconsistent.
	ErrMalformedLog = errors.New("threadpool: malformed log")

	// ErrNilFunc is returned when Submit is called with a nil TaskFunc.
	ErrNilFunc = errors.New("threadpool: task func is nil")
)

// TaskFailure is the failed variant of a task result. It wraps the error
// returned by the task body, or describes a recovered panic.
type TaskFailure struct {
	TaskID uint64
	Worker int

	// Err is the last error returned by the task body.
	Err error

	// Panic holds the recovered value when the body panicked.
	Panic any
}

func (f *TaskFailure) Error() string {
	if f.Panic != nil {
		return fmt.Sprintf("threadpool: task %d panicked on worker %d: %v", f.TaskID, f.Worker, f.Panic)
	}
	return fmt.Sprintf("threadpool: task %d failed on worker %d: %v", f.TaskID, f.Worker, f.Err)
}

func (f *TaskFailure) Unwrap() error { return f.Err }
