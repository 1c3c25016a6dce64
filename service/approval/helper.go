package approval

import (
	"context"
	"time"
)

// DecisionFunc decides what to do with a pending request.
// Return (true,  to confirm)
//
//	(false, to leave it pending).
type DecisionFunc func(r *Request) bool

// AutoConfirmer starts a goroutine that polls the requester's pending
// requests and confirms every one accepted by fn. It returns stop() – call
// it (or cancel ctx) to exit. Intended for tests and non-interactive runs
// where no operator is present.
func AutoConfirmer(ctx context.Context,
	svc Service,
	requesterID string,
	fn DecisionFunc,
	interval time.Duration) (stop func()) {

	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				requests, _ := svc.ListForUser(ctx, requesterID)
				for _, request := range requests {
					if fn(request) {
						_, _ = svc.Confirm(ctx, request.ID, requesterID)
					}
				}
			}
		}
	}()
	return func() { close(done) }
}

// AutoConfirm automatically confirms every pending request of requesterID.
func AutoConfirm(ctx context.Context,
	svc Service,
	requesterID string,
	interval time.Duration) func() {
	return AutoConfirmer(ctx, svc, requesterID,
		func(*Request) bool { return true }, interval)
}
