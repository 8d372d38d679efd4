// Package worker runs per-key sequential queues that share a global
// concurrency limit.
package worker

import (
	"context"
	"time"
)

type StartOptions[J any] struct {
	Ctx  context.Context
	Sem  chan struct{}
	Jobs <-chan J
	// Handle is called for one job at a time, in queue order.
	Handle func(context.Context, J)
	// OnPanic receives the value of a panicking Handle call. The worker
	// keeps consuming afterwards. Optional.
	OnPanic func(any)
	// OnIdle is called when no job has arrived for IdleTimeout. Returning
	// true stops the worker. Both must be set to enable idle checks.
	IdleTimeout time.Duration
	OnIdle      func() bool
}

// Start consumes opts.Jobs in a goroutine until the channel is closed,
// opts.Ctx is done or OnIdle retires it. Each job holds one Sem slot while
// it runs.
func Start[J any](opts StartOptions[J]) {
	go func() {
		var (
			idleTimer *time.Timer
			idle      <-chan time.Time
		)
		if opts.IdleTimeout > 0 && opts.OnIdle != nil {
			idleTimer = time.NewTimer(opts.IdleTimeout)
			defer idleTimer.Stop()
			idle = idleTimer.C
		}
		for {
			select {
			case <-opts.Ctx.Done():
				return
			case <-idle:
				if opts.OnIdle() {
					return
				}
				idleTimer.Reset(opts.IdleTimeout)
			case job, ok := <-opts.Jobs:
				if !ok {
					return
				}
				select {
				case opts.Sem <- struct{}{}:
				case <-opts.Ctx.Done():
					return
				}
				runJob(opts, job)
				if idleTimer != nil {
					idleTimer.Reset(opts.IdleTimeout)
				}
			}
		}
	}()
}

func runJob[J any](opts StartOptions[J], job J) {
	defer func() { <-opts.Sem }()
	defer func() {
		if v := recover(); v != nil {
			if opts.OnPanic == nil {
				panic(v)
			}
			opts.OnPanic(v)
		}
	}()
	opts.Handle(opts.Ctx, job)
}

// Enqueue blocks until job is queued or either context is done.
func Enqueue[J any](ctx, workersCtx context.Context, jobs chan<- J, job J) error {
	if ctx == nil {
		ctx = workersCtx
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-workersCtx.Done():
		return workersCtx.Err()
	case jobs <- job:
		return nil
	}
}
