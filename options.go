package threadpool

import (
	"time"
)

const (
	defaultAttempts     = 1
	defaultInitialRetry = 200 * time.Millisecond
	defaultMaxRetry     = 5 * time.Second
)

// Options configure a Pool.
//
// All zero values are replaced with defaults in FillDefaults.
type Options struct {
	// Workers is the number of workers. Zero uses every eligible context.
	Workers int `yaml:"workers"`

	// AllowPrimary lets one worker occupy the primary context.
	AllowPrimary bool `yaml:"allow_primary"`

	// PinWorkers locks every worker to an OS thread pinned to the CPU
	// matching its context id. Linux only; elsewhere pinning is reported
	// as an internal error and the worker keeps running unpinned.
	PinWorkers bool `yaml:"pin_workers"`

	Retry RetryPolicy `yaml:"retry"`

	Env     ExecutionEnvironment `yaml:"-"`
	Metrics MetricsPolicy        `yaml:"-"`

	// OnTaskError is called from the worker after a task failed.
	OnTaskError func(*TaskFailure) `yaml:"-"`

	// OnInternalError receives errors that belong to no task.
	OnInternalError func(error) `yaml:"-"`
}

func (o *Options) FillDefaults() {
	if o.Env == nil {
		o.Env = RuntimeEnvironment{}
	}
	if o.Metrics == nil {
		o.Metrics = &NoopMetrics{}
	}
	if o.Retry.Attempts <= 0 {
		o.Retry.Attempts = defaultAttempts
	}
	if o.Retry.Initial <= 0 {
		o.Retry.Initial = defaultInitialRetry
	}
	if o.Retry.Max <= 0 {
		o.Retry.Max = defaultMaxRetry
	}
}
