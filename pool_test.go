package threadpool_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tp "github.com/azargarov/threadpool"
)

// -----------------------------------------------------------------------------
// Construction
// -----------------------------------------------------------------------------

func TestFillDefaults(t *testing.T) {
	var o tp.Options
	o.FillDefaults()

	if o.Env == nil || o.Metrics == nil {
		t.Fatal("expected Env and Metrics to be set by FillDefaults")
	}
	if o.Retry.Attempts != 1 {
		t.Fatalf("default attempts = %d; want 1", o.Retry.Attempts)
	}
}

func TestWorkerAssignment(t *testing.T) {
	tests := []struct {
		name         string
		contexts     int
		workers      int
		allowPrimary bool
		want         []int
		wantErr      error
	}{
		{"background all", 4, 0, false, []int{2, 3, 4}, nil},
		{"background two", 4, 2, false, []int{2, 3}, nil},
		{"background too many", 4, 4, false, nil, tp.ErrConfiguration},
		{"foreground all", 4, 0, true, []int{1, 2, 3, 4}, nil},
		{"foreground primary only", 4, 1, true, []int{1}, nil},
		{"foreground too many", 4, 5, true, nil, tp.ErrConfiguration},
		{"negative", 4, -1, false, nil, tp.ErrConfiguration},
		{"single context background", 1, 3, false, []int{}, nil},
		{"single context foreground", 1, 0, true, []int{}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := tp.NewPool[int](tp.Options{
				Workers:      tc.workers,
				AllowPrimary: tc.allowPrimary,
				Env:          tp.FixedEnvironment{Contexts: tc.contexts},
			})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v; want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewPool: %v", err)
			}
			defer p.Close()

			if got := p.Workers(); !slices.Equal(got, tc.want) {
				t.Fatalf("workers = %v; want %v", got, tc.want)
			}
		})
	}
}

func TestNoPrimaryEnvironmentUsesEveryContext(t *testing.T) {
	p, err := tp.NewPool[int](tp.Options{Env: tp.FixedEnvironment{Contexts: 3, NoPrimary: true}})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close()

	if got := p.Workers(); !slices.Equal(got, []int{1, 2, 3}) {
		t.Fatalf("workers = %v; want [1 2 3]", got)
	}
}

// -----------------------------------------------------------------------------
// Submit / Retrieve
// -----------------------------------------------------------------------------

func TestSubmitRetrieveAll(t *testing.T) {
	const n = 50
	p := newTestPool[int](t, 4, 3, false)
	ctx := context.Background()

	want := make(map[uint64]int, n)
	for i := range n {
		task, err := p.Submit(ctx, func(context.Context) (int, error) {
			time.Sleep(time.Duration(i%3) * time.Millisecond)
			return i * i, nil
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if _, dup := want[task.ID()]; dup {
			t.Fatalf("duplicate task id %d", task.ID())
		}
		want[task.ID()] = i * i
	}

	for got := 0; got < n; got++ {
		if !p.IsActive() {
			t.Fatalf("pool inactive with %d results outstanding", n-got)
		}
		task := retrieveN(t, p, 1)[0]
		v, err := task.Result()
		if err != nil {
			t.Fatalf("task %d: %v", task.ID(), err)
		}
		exp, ok := want[task.ID()]
		if !ok {
			t.Fatalf("task %d retrieved twice or never submitted", task.ID())
		}
		if v != exp {
			t.Fatalf("task %d = %d; want %d", task.ID(), v, exp)
		}
		delete(want, task.ID())
	}

	if p.IsActive() {
		t.Fatal("pool still active after all results were retrieved")
	}
}

func TestExcludedPrimaryNeverRunsTasks(t *testing.T) {
	const n = 40
	p := newTestPool[int](t, 4, 0, false)
	ctx := context.Background()

	go func() {
		for range n {
			_, _ = p.Submit(ctx, func(context.Context) (int, error) { return 0, nil })
		}
	}()

	for _, task := range retrieveN(t, p, n) {
		if task.WorkerID() == tp.PrimaryContext {
			t.Fatalf("task %d ran on the primary context", task.ID())
		}
	}
}

func TestPrimaryOnlyWorker(t *testing.T) {
	const n = 10
	p := newTestPool[int](t, 4, 1, true)
	ctx := context.Background()

	for range n {
		if _, err := p.Submit(ctx, func(context.Context) (int, error) { return 1, nil }); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	for _, task := range retrieveN(t, p, n) {
		if task.WorkerID() != tp.PrimaryContext {
			t.Fatalf("task %d ran on worker %d; want primary", task.ID(), task.WorkerID())
		}
	}
}

func TestPerWorkerOrderFollowsSubmission(t *testing.T) {
	const n = 60
	p := newTestPool[int](t, 4, 3, false)
	ctx := context.Background()

	var mu sync.Mutex
	var ran []int // submission indexes in start order
	for i := range n {
		_, err := p.Submit(ctx, func(context.Context) (int, error) {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
			time.Sleep(time.Duration(i%4) * 100 * time.Microsecond)
			return i, nil
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	workerOf := make(map[int]int, n)
	for _, task := range retrieveN(t, p, n) {
		i, _ := task.Result()
		workerOf[i] = task.WorkerID()
	}

	last := map[int]int{}
	mu.Lock()
	defer mu.Unlock()
	for _, i := range ran {
		w := workerOf[i]
		if prev, ok := last[w]; ok && i < prev {
			t.Fatalf("worker %d ran submission %d after %d", w, i, prev)
		}
		last[w] = i
	}
}

func TestSubmitBlocksWhileAllWorkersBusy(t *testing.T) {
	p := newTestPool[int](t, 3, 2, false)
	ctx := context.Background()

	release := make(chan struct{})
	block := func(context.Context) (int, error) {
		<-release
		return 0, nil
	}
	for range 2 {
		if _, err := p.Submit(ctx, block); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := p.Submit(waitCtx, block); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("submit with busy workers err = %v; want deadline exceeded", err)
	}

	close(release)
	retrieveN(t, p, 2)
	if p.IsActive() {
		t.Fatal("canceled submission must not count as active")
	}
}

func TestSubmitNilFunc(t *testing.T) {
	p := newTestPool[int](t, 2, 0, false)

	if _, err := p.Submit(context.Background(), nil); !errors.Is(err, tp.ErrNilFunc) {
		t.Fatalf("err = %v; want ErrNilFunc", err)
	}
}

func TestRetrieveContextCanceled(t *testing.T) {
	p := newTestPool[int](t, 2, 0, false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Retrieve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v; want deadline exceeded", err)
	}
}

// -----------------------------------------------------------------------------
// Failures
// -----------------------------------------------------------------------------

func TestFailingTaskKeepsWorkerRunning(t *testing.T) {
	p := newTestPool[int](t, 2, 1, false)
	ctx := context.Background()
	boom := errors.New("boom")

	fns := []tp.TaskFunc[int]{
		func(context.Context) (int, error) { return 0, boom },
		func(context.Context) (int, error) { panic("kaboom") },
		func(context.Context) (int, error) { return 7, nil },
	}
	for _, fn := range fns {
		if _, err := p.Submit(ctx, fn); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	tasks := retrieveN(t, p, len(fns))
	slices.SortFunc(tasks, func(a, b *tp.Task[int]) int { return int(a.ID()) - int(b.ID()) })

	_, err := tasks[0].Result()
	var failure *tp.TaskFailure
	if !errors.As(err, &failure) || !errors.Is(err, boom) {
		t.Fatalf("first task err = %v; want TaskFailure wrapping boom", err)
	}
	if failure.Worker != 2 || failure.TaskID != tasks[0].ID() {
		t.Fatalf("failure = %+v; want worker 2, task %d", failure, tasks[0].ID())
	}

	_, err = tasks[1].Result()
	if !errors.As(err, &failure) || failure.Panic != "kaboom" {
		t.Fatalf("second task err = %v; want recovered panic", err)
	}
	if !tasks[1].Failed() {
		t.Fatal("panicked task must report Failed")
	}

	v, err := tasks[2].Result()
	if err != nil || v != 7 {
		t.Fatalf("third task = %d, %v; want 7, nil", v, err)
	}
	if tasks[2].WorkerID() != tasks[0].WorkerID() {
		t.Fatal("expected all tasks on the single worker")
	}
}

func TestOnTaskErrorHandler(t *testing.T) {
	var reported atomic.Int32
	p, err := tp.NewPool[int](tp.Options{
		Env:         tp.FixedEnvironment{Contexts: 3},
		OnTaskError: func(*tp.TaskFailure) { reported.Add(1) },
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close()

	_, _ = p.Submit(context.Background(), func(context.Context) (int, error) { return 0, errors.New("x") })
	retrieveN(t, p, 1)

	if got := reported.Load(); got != 1 {
		t.Fatalf("handler called %d times; want 1", got)
	}
}

func TestRetryThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	p, err := tp.NewPool[int](tp.Options{
		Env:   tp.FixedEnvironment{Contexts: 2},
		Retry: tp.RetryPolicy{Attempts: 3, Initial: 2 * time.Millisecond, Max: 5 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close()

	_, err = p.Submit(context.Background(), func(context.Context) (int, error) {
		if attempts.Add(1) < 3 {
			return 0, errors.New("fail")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	v, err := retrieveN(t, p, 1)[0].Result()
	if err != nil || v != 42 {
		t.Fatalf("result = %d, %v; want 42, nil", v, err)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d; want 3", got)
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func TestCloseWaitsForInflightTasks(t *testing.T) {
	p := newTestPool[int](t, 4, 3, false)
	ctx := context.Background()

	var finished atomic.Int32
	for range 3 {
		_, err := p.Submit(ctx, func(context.Context) (int, error) {
			time.Sleep(30 * time.Millisecond)
			finished.Add(1)
			return 1, nil
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	p.Close()
	if got := finished.Load(); got != 3 {
		t.Fatalf("Close returned with %d/3 tasks finished", got)
	}
	if got := p.Stats().Pending; got != 3 {
		t.Fatalf("pending results after Close = %d; want 3", got)
	}

	// second close is a no-op
	p.Close()

	retrieveN(t, p, 3)
	if _, err := p.Retrieve(ctx); !errors.Is(err, tp.ErrPoolClosed) {
		t.Fatalf("retrieve on drained pool err = %v; want ErrPoolClosed", err)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	p := newTestPool[int](t, 2, 0, false)
	p.Close()

	_, err := p.Submit(context.Background(), func(context.Context) (int, error) { return 0, nil })
	if !errors.Is(err, tp.ErrPoolClosed) {
		t.Fatalf("err = %v; want ErrPoolClosed", err)
	}
}

func TestShutdownTimeout(t *testing.T) {
	p := newTestPool[int](t, 2, 1, false)

	started := make(chan struct{})
	done := make(chan struct{})
	_, _ = p.Submit(context.Background(), func(context.Context) (int, error) {
		close(started)
		time.Sleep(300 * time.Millisecond)
		close(done)
		return 0, nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown err = %v; want deadline exceeded", err)
	}

	<-done
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown err = %v; want nil", err)
	}
}

func TestShutdownWithWaitingSubmitter(t *testing.T) {
	p := newTestPool[int](t, 2, 1, false)

	release := make(chan struct{})
	started := make(chan struct{})
	if _, err := p.Submit(context.Background(), func(context.Context) (int, error) {
		close(started)
		<-release
		return 0, nil
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started

	waiting := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), emptyWork)
		waiting <- err
	}()
	waitUntil(t, time.Second, func() bool { return p.Stats().Busy == 1 })
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	shut := make(chan error, 1)
	go func() { shut <- p.Shutdown(ctx) }()

	select {
	case err := <-shut:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Shutdown err = %v; want deadline exceeded", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Shutdown ignored its deadline while a submitter was waiting")
	}

	select {
	case err := <-waiting:
		if !errors.Is(err, tp.ErrPoolClosed) {
			t.Fatalf("waiting submit err = %v; want ErrPoolClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiting submitter was not released by Shutdown")
	}

	if st := p.Stats(); !st.Closed {
		t.Fatalf("stats = %+v; want closed", st)
	}

	close(release)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown err = %v", err)
	}
	if got := retrieveN(t, p, 1); got[0].ID() != 1 {
		t.Fatalf("retrieved task %d; want 1", got[0].ID())
	}
}

func TestNestedSubmitFromTask(t *testing.T) {
	p := newTestPool[int](t, 3, 2, false)

	inner := make(chan *tp.Task[int], 1)
	if _, err := p.Submit(context.Background(), func(ctx context.Context) (int, error) {
		task, err := p.Submit(ctx, func(context.Context) (int, error) { return 7, nil })
		if err != nil {
			return 0, err
		}
		inner <- task
		return 1, nil
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	retrieveN(t, p, 2)
	v, err := (<-inner).Result()
	if err != nil || v != 7 {
		t.Fatalf("inner result = %d, %v; want 7", v, err)
	}
}

func TestResultsIteratesUntilClosed(t *testing.T) {
	p := newTestPool[int](t, 3, 0, false)
	ctx := context.Background()

	go func() {
		for i := 1; i <= 4; i++ {
			_, _ = p.Submit(ctx, func(context.Context) (int, error) { return 2 * i, nil })
		}
		p.Close()
	}()

	var got []int
	for task := range p.Results(ctx) {
		v, err := task.Result()
		if err != nil {
			t.Fatalf("task %d: %v", task.ID(), err)
		}
		got = append(got, v)
	}
	slices.Sort(got)
	if !slices.Equal(got, []int{2, 4, 6, 8}) {
		t.Fatalf("results = %v; want [2 4 6 8]", got)
	}
}

// -----------------------------------------------------------------------------
// Zero-worker mode
// -----------------------------------------------------------------------------

func TestSingleContextRunsOnCaller(t *testing.T) {
	p := newTestPool[int](t, 1, 0, false)

	ran := false
	task, err := p.Submit(context.Background(), func(context.Context) (int, error) {
		ran = true
		return 5, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !ran {
		t.Fatal("task did not run synchronously inside Submit")
	}
	if !p.IsActive() {
		t.Fatal("unretrieved result must keep the pool active")
	}

	got := retrieveN(t, p, 1)[0]
	if got != task {
		t.Fatal("retrieved a different task")
	}
	if v, _ := got.Result(); v != 5 {
		t.Fatalf("result = %d; want 5", v)
	}
	if got.WorkerID() != tp.PrimaryContext {
		t.Fatalf("worker = %d; want caller context", got.WorkerID())
	}
}

func TestMetricsCountTasks(t *testing.T) {
	m := &tp.AtomicMetrics{}
	p, err := tp.NewPool[int](tp.Options{Env: tp.FixedEnvironment{Contexts: 3}, Metrics: m})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	_, _ = p.Submit(ctx, func(context.Context) (int, error) { return 1, nil })
	_, _ = p.Submit(ctx, func(context.Context) (int, error) { return 0, errors.New("no") })
	retrieveN(t, p, 2)

	if m.Submitted() != 2 || m.Executed() != 1 || m.Failed() != 1 {
		t.Fatalf("metrics submitted=%d executed=%d failed=%d; want 2/1/1",
			m.Submitted(), m.Executed(), m.Failed())
	}
}
