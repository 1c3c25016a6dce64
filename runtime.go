package opsgate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/viant/opsgate/service/approval"
	"github.com/viant/opsgate/service/tracker"
	"github.com/viant/opsgate/tracing"
)

// Runtime owns the engine's background loops: the tracker's poll loop and
// the approval registry sweep. Loops run until Shutdown or context
// cancellation; failures inside a loop are logged, never fatal.
type Runtime struct {
	approvals     approval.Service
	tracker       *tracker.Service
	sweepInterval time.Duration
	tracing       TracingConfig

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  sync.Once
	stopped  sync.Once
	startErr error
}

// Start launches the background loops. It returns immediately; loops stop
// when ctx is cancelled or Shutdown is called.
func (r *Runtime) Start(ctx context.Context) error {
	r.started.Do(func() {
		if r.tracing.Enabled {
			if err := tracing.Init(r.tracing.ServiceName, r.tracing.ServiceVersion, r.tracing.OutputFile); err != nil {
				r.startErr = err
				return
			}
		}
		ctx, r.cancel = context.WithCancel(ctx)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.tracker.Start(ctx); err != nil && ctx.Err() == nil {
				log.Printf("runtime: tracker loop terminated: %v", err)
			}
		}()
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.sweepLoop(ctx)
		}()
	})
	return r.startErr
}

func (r *Runtime) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := r.approvals.Sweep(ctx)
			if err != nil {
				log.Printf("runtime: approval sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("runtime: swept %d expired approval request(s)", removed)
			}
		}
	}
}

// Shutdown stops the loops and joins them, including polls in flight.
func (r *Runtime) Shutdown() {
	r.stopped.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.tracker.Shutdown()
		r.wg.Wait()
	})
}
