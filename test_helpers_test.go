package threadpool_test

import (
	"context"
	"crypto/sha256"
	"runtime"
	"testing"
	"time"

	tp "github.com/azargarov/threadpool"
)

type workload struct {
	name string
	fn   tp.TaskFunc[int]
}

var shaData = []byte("some deterministic payloadsome deterministic payloadsome deterministic payloadsome deterministic payload")

var (
	emptyWork = func(context.Context) (int, error) {
		return 0, nil
	}

	cpuWork = func(context.Context) (int, error) {
		x := 0
		for i := range 1000 {
			x += i * i
		}
		return x, nil
	}

	ioWork = func(context.Context) (int, error) {
		time.Sleep(5 * time.Microsecond)
		return 0, nil
	}

	shaWork = func(context.Context) (int, error) {
		sum := sha256.Sum256(shaData)
		return int(sum[0]), nil
	}
)

var workloads = []workload{
	{"empty ", emptyWork},
	{"sha256", shaWork},
	{"cpu   ", cpuWork},
	{"io    ", ioWork},
}

func newTestPool[R any](t testing.TB, contexts, workers int, allowPrimary bool) *tp.Pool[R] {
	t.Helper()

	p, err := tp.NewPool[R](tp.Options{
		Workers:      workers,
		AllowPrimary: allowPrimary,
		Env:          tp.FixedEnvironment{Contexts: contexts},
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

// retrieveN collects n results, failing the test if any takes too long.
func retrieveN[R any](t *testing.T, p *tp.Pool[R], n int) []*tp.Task[R] {
	t.Helper()

	out := make([]*tp.Task[R], 0, n)
	for range n {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		task, err := p.Retrieve(ctx)
		cancel()
		if err != nil {
			t.Fatalf("retrieve %d/%d: %v", len(out)+1, n, err)
		}
		out = append(out, task)
	}
	return out
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
	}
	t.Fatal("condition not satisfied before timeout")
}
