package threadpool

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Job is a finalized start/stop record of one task on one worker.
// Times are seconds on the logging pool's clock.
type Job struct {
	ID     int
	Worker int
	Start  float64
	Stop   float64
}

// Duration returns Stop - Start in seconds.
func (j Job) Duration() float64 { return j.Stop - j.Start }

// Log maps a worker id to the jobs it ran, sorted ascending by stop time.
type Log map[int][]Job

// Workers returns the worker ids present in the log in ascending order.
func (l Log) Workers() []int {
	ids := make([]int, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the total number of jobs.
func (l Log) Len() int {
	n := 0
	for _, jobs := range l {
		n += len(jobs)
	}
	return n
}

// ReadLogFile parses the task log stored at path.
func ReadLogFile(path string) (Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("threadpool: open log %s: %w", path, err)
	}
	defer f.Close()
	return ReadLog(f)
}

// ReadLog parses a task log into per-worker job histories.
//
// Every start must be matched by exactly one stop of the same job on the
// same worker, a worker may have only one open job at a time, and a job
// may not start before the previous job on its worker stopped. Any
// violation aborts the parse with an error wrapping ErrMalformedLog.
func ReadLog(r io.Reader) (Log, error) {
	var (
		log     = Log{}
		open    = map[int]Event{}   // job id -> start event
		running = map[int]int{}     // worker id -> open job id
		last    = map[int]float64{} // worker id -> latest stop time
		done    = map[int]bool{}
		line    int
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		ev, err := parseEvent(text)
		if err != nil {
			return nil, malformed(line, "%v", err)
		}

		switch ev.Kind {
		case EventStart:
			if _, dup := open[ev.Job]; dup || done[ev.Job] {
				return nil, malformed(line, "job %d started twice", ev.Job)
			}
			if other, busy := running[ev.Worker]; busy {
				return nil, malformed(line, "worker %d starts job %d while job %d is running", ev.Worker, ev.Job, other)
			}
			if prev, ok := last[ev.Worker]; ok && ev.Time < prev {
				return nil, malformed(line, "worker %d starts job %d at %g before its previous job stopped at %g", ev.Worker, ev.Job, ev.Time, prev)
			}
			open[ev.Job] = ev
			running[ev.Worker] = ev.Job

		case EventStop:
			start, ok := open[ev.Job]
			if !ok {
				return nil, malformed(line, "job %d stopped without a start", ev.Job)
			}
			if start.Worker != ev.Worker {
				return nil, malformed(line, "job %d started on worker %d but stopped on worker %d", ev.Job, start.Worker, ev.Worker)
			}
			if ev.Time < start.Time {
				return nil, malformed(line, "job %d stops at %g before it starts at %g", ev.Job, ev.Time, start.Time)
			}
			delete(open, ev.Job)
			delete(running, ev.Worker)
			last[ev.Worker] = ev.Time
			done[ev.Job] = true
			log[ev.Worker] = append(log[ev.Worker], Job{
				ID:     ev.Job,
				Worker: ev.Worker,
				Start:  start.Time,
				Stop:   ev.Time,
			})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("threadpool: read log: %w", err)
	}

	if len(open) > 0 {
		ids := make([]int, 0, len(open))
		for id := range open {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		return nil, fmt.Errorf("%w: job %d never stopped", ErrMalformedLog, ids[0])
	}

	for worker, jobs := range log {
		sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].Stop < jobs[j].Stop })
		for i := 1; i < len(jobs); i++ {
			if jobs[i].Start < jobs[i-1].Stop {
				return nil, fmt.Errorf("%w: worker %d: job %d starts at %g before job %d stops at %g",
					ErrMalformedLog, worker, jobs[i].ID, jobs[i].Start, jobs[i-1].ID, jobs[i-1].Stop)
			}
		}
	}
	return log, nil
}

func parseEvent(text string) (Event, error) {
	fields := strings.Fields(text)
	if len(fields) != 4 {
		return Event{}, fmt.Errorf("want 4 fields, got %d", len(fields))
	}
	job, err := strconv.Atoi(fields[0])
	if err != nil {
		return Event{}, fmt.Errorf("job id %q: %w", fields[0], err)
	}
	worker, err := strconv.Atoi(fields[1])
	if err != nil {
		return Event{}, fmt.Errorf("worker id %q: %w", fields[1], err)
	}
	if len(fields[2]) != 1 || (fields[2][0] != byte(EventStart) && fields[2][0] != byte(EventStop)) {
		return Event{}, fmt.Errorf("unknown event %q", fields[2])
	}
	ts, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return Event{}, fmt.Errorf("timestamp %q: %w", fields[3], err)
	}
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return Event{}, fmt.Errorf("timestamp %q is not finite", fields[3])
	}
	return Event{Job: job, Worker: worker, Kind: EventKind(fields[2][0]), Time: ts}, nil
}

func malformed(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformedLog, line, fmt.Sprintf(format, args...))
}
