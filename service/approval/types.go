package approval

import (
	"context"
	"errors"
	"time"
)

// Event envelope fanned out to observers on every registry transition.
type Event struct {
	Topic        string            // see topic constants below
	Request      *Request          `json:"request,omitempty"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"` // optional – tenant, correlation-id etc.
}

// Standard event topics.
const (
	TopicRequestCreated   = "approval.created"
	TopicRequestConfirmed = "approval.confirmed"
	TopicRequestCancelled = "approval.cancelled"
	TopicRequestExpired   = "approval.expired"
)

// Typed registry failures. Callers branch on these to produce user-facing
// text instead of crashing a conversational surface.
var (
	// ErrNotFoundOrExpired is returned when the request id is unknown or
	// its TTL has lapsed; the two cases are deliberately indistinguishable.
	ErrNotFoundOrExpired = errors.New("approval: request not found or expired")

	// ErrNotOwner is returned when someone other than the original
	// requester attempts to confirm or cancel.
	ErrNotOwner = errors.New("approval: you may only confirm your own operations")
)

// Callback is the remote-execution closure bound to a request at creation
// time. It runs once, on confirmation, and its outcome is captured into the
// Confirmation rather than propagated to the registry's caller.
type Callback func(ctx context.Context) (interface{}, error)

// Request represents an action awaiting confirmation.
type Request struct {
	ID            string                 `json:"id"`
	OperationType string                 `json:"operationType"` // e.g. "stop-instances", "run-command"
	ResourceType  string                 `json:"resourceType"`  // e.g. "instance"
	ResourceIDs   []string               `json:"resourceIds"`
	RequesterID   string                 `json:"requesterId"`
	RequesterName string                 `json:"requesterName"`
	Description   string                 `json:"description,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	ExpiresAt     time.Time              `json:"expiresAt"`
	Callback      Callback               `json:"-"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Expired reports whether the request's TTL lapsed at the given instant.
func (r *Request) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Confirmation is the outcome of a confirmed request. A callback failure is
// captured in Err with Success=false; registry state is unaffected either
// way.
type Confirmation struct {
	Request   *Request    `json:"request"`
	Success   bool        `json:"success"`
	Result    interface{} `json:"result,omitempty"`
	Err       error       `json:"-"`
	Error     string      `json:"error,omitempty"`
	DecidedAt time.Time   `json:"decidedAt"`
}
