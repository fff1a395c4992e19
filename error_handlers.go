package threadpool

import (
	"context"

	lg "github.com/Andrej220/go-utils/zlog"
)

// reportInternalError reports an internal pool error.
//
// Internal errors are failures that do not belong to a task, such as a
// worker that could not be pinned or a log sink that rejected a write.
// They are always logged; OnInternalError is called when set.
func (p *Pool[R]) reportInternalError(e error) {
	lg.FromContext(context.Background()).Error("pool internal error",
		lg.String("pool", p.id),
		lg.Any("error", e),
	)
	if p.opts.OnInternalError != nil {
		p.opts.OnInternalError(e)
	}
}

// reportTaskError reports a captured task failure.
//
// The failure is still delivered through Retrieve; the handler is only a
// side channel and must not block.
func (p *Pool[R]) reportTaskError(f *TaskFailure) {
	if p.opts.OnTaskError != nil {
		p.opts.OnTaskError(f)
	}
}
