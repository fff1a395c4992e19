package threadpool

import (
	"context"
)

// TaskFunc is the body of a task. The context is the one given to Submit.
type TaskFunc[R any] func(ctx context.Context) (R, error)

// Task is a unit of work submitted to a Pool together with its result slot.
//
// The slot is filled exactly once, by the worker that ran the task. Result
// blocks until then, so a Task returned by Submit may be awaited directly;
// the usual path is to collect finished tasks with Retrieve.
type Task[R any] struct {
	id     uint64
	fn     TaskFunc[R]
	ctx    context.Context
	worker int
	value  R
	err    error
	done   chan struct{}
}

func newTask[R any](ctx context.Context, id uint64, fn TaskFunc[R]) *Task[R] {
	return &Task[R]{
		id:   id,
		fn:   fn,
		ctx:  ctx,
		done: make(chan struct{}),
	}
}

// ID returns the submission sequence number, unique within the pool.
func (t *Task[R]) ID() uint64 { return t.id }

// Done is closed once the result slot has been filled.
func (t *Task[R]) Done() <-chan struct{} { return t.done }

// WorkerID returns the context id of the worker that ran the task,
// or zero while the task has not finished.
func (t *Task[R]) WorkerID() int {
	select {
	case <-t.done:
		return t.worker
	default:
		return 0
	}
}

// Result waits for the task to finish and returns its value, or a
// *TaskFailure when the body returned an error or panicked.
func (t *Task[R]) Result() (R, error) {
	<-t.done
	return t.value, t.err
}

// Failed reports whether the task finished with a failure.
func (t *Task[R]) Failed() bool {
	select {
	case <-t.done:
		return t.err != nil
	default:
		return false
	}
}

// finish fills the result slot and releases the task body and context.
func (t *Task[R]) finish(worker int, value R, err error) {
	t.worker = worker
	t.value = value
	t.err = err
	t.fn = nil
	t.ctx = nil
	close(t.done)
}
