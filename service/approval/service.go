package approval

import (
	"context"

	"github.com/viant/opsgate/service/messaging"
)

// Service defines the approval registry interface.
type Service interface {
	// Create registers a request awaiting confirmation, allocating its id
	// and expiry. ResourceIDs emptiness is the caller's concern.
	Create(ctx context.Context, request *Request) (*Request, error)

	// Get returns a pending request, deleting and reporting absent any
	// entry whose TTL already lapsed.
	Get(ctx context.Context, id string) (*Request, error)

	// Confirm runs the request's bound callback after validating ownership
	// and expiry. Registry failures surface as ErrNotFoundOrExpired or
	// ErrNotOwner; a callback failure is captured in the Confirmation.
	Confirm(ctx context.Context, id, confirmedBy string) (*Confirmation, error)

	// Cancel removes a pending request without running its callback. It
	// returns false on not-found, expired or not-owner.
	Cancel(ctx context.Context, id, cancelledBy string) (bool, error)

	// ListForUser sweeps expired entries encountered and returns the
	// remaining requests owned by userID.
	ListForUser(ctx context.Context, userID string) ([]*Request, error)

	// Sweep deletes every expired entry and returns how many were removed.
	// The runtime invokes it periodically; lazy deletion in Get/Confirm/
	// Cancel is independent of it.
	Sweep(ctx context.Context) (int, error)

	// Queue exposes the registry's event fan-out.
	Queue() messaging.Queue[Event]
}
