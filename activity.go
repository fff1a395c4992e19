package threadpool

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

// Idle marks a worker with no active job in an Activity grid.
const Idle = -1

// ActivityOptions bound the sampled time range of an Activity grid.
type ActivityOptions struct {
	// T0 is the first sample time.
	T0 float64

	// T1 is the last sample time. Zero or +Inf means "until the last stop".
	// Any other value below T0 is rejected.
	T1 float64

	// Workers is the number of columns. Zero uses the highest worker id
	// present in the log.
	Workers int
}

// Activity is a time-sliced view of a log: row i samples time Times[i],
// column c holds the job active on worker c+1 at that time, or Idle.
type Activity struct {
	Times []float64
	Cells [][]int
}

// At returns the job active on worker (1-based) in the given row.
func (a Activity) At(row, worker int) int {
	return a.Cells[row][worker-1]
}

// ComputeActivity samples log every dt seconds. A job is active at sample
// time s when Start <= s < Stop. The log is not modified.
func ComputeActivity(log Log, dt float64, opts ActivityOptions) (Activity, error) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return Activity{}, fmt.Errorf("%w: activity step %g must be positive", ErrConfiguration, dt)
	}
	if math.IsNaN(opts.T0) || math.IsNaN(opts.T1) || (opts.T1 != 0 && opts.T1 < opts.T0) {
		return Activity{}, fmt.Errorf("%w: activity range [%g, %g] is empty", ErrConfiguration, opts.T0, opts.T1)
	}

	workers := 0
	end := math.Inf(-1)
	for id, jobs := range log {
		workers = max(workers, id)
		if len(jobs) > 0 {
			end = math.Max(end, jobs[len(jobs)-1].Stop)
		}
	}
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	if opts.T1 > 0 && opts.T1 < end {
		end = opts.T1
	}

	var a Activity
	eps := dt * 1e-9
	for i := 0; ; i++ {
		t := opts.T0 + float64(i)*dt
		if t > end+eps {
			break
		}
		row := make([]int, workers)
		for c := range row {
			row[c] = activeJob(log[c+1], t)
		}
		a.Times = append(a.Times, t)
		a.Cells = append(a.Cells, row)
	}
	return a, nil
}

// activeJob finds the job running at s in jobs sorted by stop time.
func activeJob(jobs []Job, s float64) int {
	i := sort.Search(len(jobs), func(i int) bool { return jobs[i].Stop > s })
	if i < len(jobs) && jobs[i].Start <= s {
		return jobs[i].ID
	}
	return Idle
}

// WriteActivity renders a as a text grid, one row per sample time, with
// "-" for idle workers.
//
//	0.000   -   -   -
//	0.100   4   2   1
func WriteActivity(w io.Writer, a Activity) error {
	var b bytes.Buffer
	for i, t := range a.Times {
		fmt.Fprintf(&b, "%.3f", t)
		for _, id := range a.Cells[i] {
			cell := "-"
			if id != Idle {
				cell = strconv.Itoa(id)
			}
			fmt.Fprintf(&b, " %3s", cell)
		}
		b.WriteByte('\n')
	}
	_, err := w.Write(b.Bytes())
	return err
}
