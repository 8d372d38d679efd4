package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartRunsJobsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := make(chan int, 8)
	sem := make(chan struct{}, 1)
	var (
		mu  sync.Mutex
		got []int
	)
	done := make(chan struct{})
	Start(StartOptions[int]{
		Ctx:  ctx,
		Sem:  sem,
		Jobs: jobs,
		Handle: func(_ context.Context, j int) {
			mu.Lock()
			got = append(got, j)
			n := len(got)
			mu.Unlock()
			if n == 3 {
				close(done)
			}
		},
	})
	for i := 1; i <= 3; i++ {
		if err := Enqueue(ctx, ctx, jobs, i); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("jobs not handled")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, j := range got {
		if j != i+1 {
			t.Fatalf("order = %v", got)
		}
	}
}

func TestStartRecoversPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := make(chan string, 2)
	sem := make(chan struct{}, 1)
	panicked := make(chan any, 1)
	handled := make(chan string, 1)
	Start(StartOptions[string]{
		Ctx:  ctx,
		Sem:  sem,
		Jobs: jobs,
		Handle: func(_ context.Context, j string) {
			if j == "boom" {
				panic("boom")
			}
			handled <- j
		},
		OnPanic: func(v any) { panicked <- v },
	})
	jobs <- "boom"
	jobs <- "ok"

	select {
	case v := <-panicked:
		if v != "boom" {
			t.Fatalf("panic value = %v", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("panic not reported")
	}
	select {
	case j := <-handled:
		if j != "ok" {
			t.Fatalf("handled = %q", j)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("worker stopped after panic")
	}
}

func TestEnqueueStopsWithWorkers(t *testing.T) {
	workersCtx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Enqueue(context.Background(), workersCtx, make(chan int), 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Enqueue() error = %v, want context.Canceled", err)
	}
}

func TestStartRetiresIdleWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := make(chan int, 1)
	handled := make(chan int, 1)
	var (
		idleCalls atomic.Int32
		retire    atomic.Bool
		once      sync.Once
	)
	retired := make(chan struct{})
	Start(StartOptions[int]{
		Ctx:         ctx,
		Sem:         make(chan struct{}, 1),
		Jobs:        jobs,
		Handle:      func(_ context.Context, j int) { handled <- j },
		IdleTimeout: 20 * time.Millisecond,
		OnIdle: func() bool {
			idleCalls.Add(1)
			if retire.Load() {
				once.Do(func() { close(retired) })
				return true
			}
			return false
		},
	})

	deadline := time.Now().Add(5 * time.Second)
	for idleCalls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("OnIdle not called")
		}
		time.Sleep(5 * time.Millisecond)
	}
	jobs <- 1
	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatalf("worker stopped although OnIdle returned false")
	}

	retire.Store(true)
	select {
	case <-retired:
	case <-time.After(5 * time.Second):
		t.Fatalf("worker was not retired")
	}
	jobs <- 2
	select {
	case j := <-handled:
		t.Fatalf("retired worker handled %d", j)
	case <-time.After(100 * time.Millisecond):
	}
}
