package threadpool

import (
	"time"
)

// RetryPolicy describes how many times and how often a failing task body
// is re-run before its failure is captured.
// Zero values are treated as "use pool defaults"; the default is a single
// attempt.
type RetryPolicy struct {
	// Attempts is the maximum number of tries for a task.
	Attempts int `yaml:"attempts"`

	// Initial is the first backoff duration.
	Initial time.Duration `yaml:"initial"`

	// Max is the cap for backoff duration.
	Max time.Duration `yaml:"max"`
}

// GetDefaultRP returns a pointer to the default retry policy used by the pool.
func GetDefaultRP() *RetryPolicy {
	rp := RetryPolicy{
		Attempts: defaultAttempts,
		Initial:  defaultInitialRetry,
		Max:      defaultMaxRetry,
	}
	return &rp
}
