// Package threadpool provides a worker pool that decides explicitly whether
// the primary execution context takes part in running tasks.
//
// Why
//
// A parallel map or loop that spreads work over every context will also
// occupy the primary one, the context that coordinates the work or has to
// stay responsive. Keeping it out costs one context of throughput, which
// pays off for nonuniform workloads where the primary is better spent
// feeding the others.
//
// Architecture overview
//
// The package is composed of three loosely coupled layers:
//
//  1. Scheduling (Pool / workers)
//     Every worker owns one execution context and an inbox that holds a
//     single task. Submit takes any free worker and blocks when none is
//     free; that is the only back-pressure, so the degree of concurrency
//     is exactly the worker count. A worker backfills as soon as it has
//     posted its result, without regard to how busy the others are.
//
//  2. Results
//     Completed tasks go to one unbounded FIFO shared by all workers.
//     Retrieve hands them out in completion order, each exactly once.
//     Failures, panics included, are captured in the task's result slot
//     and never stop a worker.
//
//  3. Instrumentation
//     LoggingPool records a start and a stop event per task on a LogSink.
//     ReadLog rebuilds per-worker histories from such a log, ComputeStats
//     summarizes them and ComputeActivity samples which job ran where.
//
// Execution contexts
//
// An ExecutionEnvironment says how many contexts exist and whether
// context 1 is a distinguished primary. RuntimeEnvironment derives this
// from GOMAXPROCS. Workers are identified by the id of the context they
// occupy; with AllowPrimary false they are drawn from 2..n. With a single
// context the pool has no workers and runs each task synchronously inside
// Submit, which keeps results identical to the parallel path.
//
// On Linux, workers may optionally be pinned to the CPU matching their
// context, which keeps the primary CPU free in practice as well.
//
// Log format
//
// One event per line, whitespace separated:
//
//	<job> <worker> <S|P> <seconds>
//
// where S marks a start and P a stop.
//
// Helpers
//
// ForEach, Map and For build a pool for one call. Map returns results in
// input order regardless of completion order.
package threadpool
