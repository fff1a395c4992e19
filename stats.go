package threadpool

import (
	"bytes"
	"fmt"
	"io"
	"math"
)

// WorkerStats summarizes one worker's history.
type WorkerStats struct {
	Worker int
	Jobs   int

	// Busy is the summed duration of the worker's jobs.
	Busy float64

	// Gap is the idle time from the log's first start to the worker's
	// first job plus the idle time between its consecutive jobs.
	Gap float64
}

// Stats is the statistical summary of a task log. Durations are seconds.
type Stats struct {
	Duration float64 // last stop - first start over all workers
	Jobs     int
	MeanJob  float64
	MinJob   float64
	MaxJob   float64
	Workers  []WorkerStats
}

// ComputeStats analyzes a log. An empty log yields zero Stats.
func ComputeStats(log Log) Stats {
	var s Stats
	if log.Len() == 0 {
		return s
	}

	origin, end := math.Inf(1), math.Inf(-1)
	s.MinJob = math.Inf(1)
	var total float64
	for _, jobs := range log {
		for _, j := range jobs {
			origin = math.Min(origin, j.Start)
			end = math.Max(end, j.Stop)
			d := j.Duration()
			total += d
			s.MinJob = math.Min(s.MinJob, d)
			s.MaxJob = math.Max(s.MaxJob, d)
			s.Jobs++
		}
	}
	s.Duration = end - origin
	s.MeanJob = total / float64(s.Jobs)

	for _, id := range log.Workers() {
		jobs := log[id]
		ws := WorkerStats{Worker: id, Jobs: len(jobs)}
		prev := origin
		for _, j := range jobs {
			ws.Busy += j.Duration()
			ws.Gap += j.Start - prev
			prev = j.Stop
		}
		s.Workers = append(s.Workers, ws)
	}
	return s
}

// WriteStats renders s as a text report.
func WriteStats(w io.Writer, s Stats) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Total duration: %.3f s\n", s.Duration)
	fmt.Fprintf(&b, "Number of jobs: %d\n", s.Jobs)
	fmt.Fprintf(&b, "Average job duration: %.3f s\n", s.MeanJob)
	fmt.Fprintf(&b, "Minimum job duration: %.3f s\n", s.MinJob)
	fmt.Fprintf(&b, "Maximum job duration: %.3f s\n", s.MaxJob)
	if len(s.Workers) > 0 {
		b.WriteByte('\n')
	}
	for _, ws := range s.Workers {
		fmt.Fprintf(&b, "Worker %d: Jobs %d, Busy %.3f s, Gap time %.3f s\n", ws.Worker, ws.Jobs, ws.Busy, ws.Gap)
	}
	_, err := w.Write(b.Bytes())
	return err
}
