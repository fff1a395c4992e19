// Package prometheus exports threadpool metrics as Prometheus collectors.
package prometheus

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/azargarov/threadpool"
)

// CollectorOptions controls collector configuration.
type CollectorOptions struct {
	DurationBuckets []float64
}

// Collector implements threadpool.MetricsPolicy on top of Prometheus
// counters and a per-worker run time histogram.
type Collector struct {
	submitted  prom.Counter
	executed   prom.Counter
	failed     prom.Counter
	runSeconds *prom.HistogramVec
}

var _ threadpool.MetricsPolicy = (*Collector)(nil)

// NewCollector creates and registers the pool collectors. Collectors that
// are already registered under the same names are reused, so several pools
// may share one Collector family.
func NewCollector(namespace string, reg prom.Registerer, opts CollectorOptions) (*Collector, error) {
	if namespace == "" {
		namespace = "threadpool"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	submitted := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_submitted_total",
		Help:      "Total number of tasks handed to a worker.",
	})
	executed := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_executed_total",
		Help:      "Total number of tasks that completed successfully.",
	})
	failed := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_failed_total",
		Help:      "Total number of tasks that failed or panicked.",
	})
	runSeconds := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_run_seconds",
		Help:      "Time a task occupied its worker, retries included.",
		Buckets:   buckets,
	}, []string{"worker"})

	var err error
	if submitted, err = registerCollector(reg, submitted); err != nil {
		return nil, err
	}
	if executed, err = registerCollector(reg, executed); err != nil {
		return nil, err
	}
	if failed, err = registerCollector(reg, failed); err != nil {
		return nil, err
	}
	if runSeconds, err = registerCollector(reg, runSeconds); err != nil {
		return nil, err
	}

	return &Collector{
		submitted:  submitted,
		executed:   executed,
		failed:     failed,
		runSeconds: runSeconds,
	}, nil
}

func (c *Collector) IncSubmitted() { c.submitted.Inc() }
func (c *Collector) IncExecuted()  { c.executed.Inc() }
func (c *Collector) IncFailed()    { c.failed.Inc() }

func (c *Collector) ObserveRun(worker int, d time.Duration) {
	c.runSeconds.WithLabelValues(strconv.Itoa(worker)).Observe(d.Seconds())
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
