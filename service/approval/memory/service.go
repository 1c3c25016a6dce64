package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/viant/opsgate/internal/clock"
	"github.com/viant/opsgate/internal/idgen"
	"github.com/viant/opsgate/service/approval"
	"github.com/viant/opsgate/service/dao"
	"github.com/viant/opsgate/service/dao/store"
	"github.com/viant/opsgate/service/messaging"
	qmem "github.com/viant/opsgate/service/messaging/memory"
)

// DefaultTTL bounds how long a request stays confirmable.
const DefaultTTL = 15 * time.Minute

type service struct {
	requests dao.Service[string, approval.Request]
	events   messaging.Queue[approval.Event]
	ttl      time.Duration

	// mu serializes every lookup-validate-remove sequence so a request can
	// never be confirmed or cancelled twice. Callbacks run outside of it.
	mu sync.Mutex
}

func requestKey(r *approval.Request) string { return r.ID }

// New creates an in-memory approval registry.
func New(options ...Option) approval.Service {
	ret := &service{
		requests: store.NewMemoryStore[string, approval.Request](requestKey),
		events:   qmem.NewQueue[approval.Event](qmem.DefaultConfig()),
		ttl:      DefaultTTL,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *service) Create(ctx context.Context, request *approval.Request) (*approval.Request, error) {
	if request == nil {
		return nil, dao.ErrNilEntity
	}
	if request.ID == "" {
		request.ID = idgen.Prefixed("approval")
	}
	now := clock.Now()
	request.CreatedAt = now
	request.ExpiresAt = now.Add(s.ttl)

	if err := s.requests.Save(ctx, request); err != nil {
		return nil, err
	}
	_ = s.events.Publish(ctx, &approval.Event{Topic: approval.TopicRequestCreated, Request: request})
	return request, nil
}

func (s *service) Get(ctx context.Context, id string) (*approval.Request, error) {
	s.mu.Lock()
	request, expired, err := s.liveRequest(ctx, id)
	s.mu.Unlock()
	s.publishExpired(ctx, expired)
	return request, err
}

// liveRequest returns a non-expired request or nil; expired entries are
// deleted on the spot (lazy expiry) and handed back so callers can publish
// the expiry event after releasing s.mu. Callers must hold s.mu.
func (s *service) liveRequest(ctx context.Context, id string) (live, expired *approval.Request, err error) {
	request, err := s.requests.Load(ctx, id)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil || request == nil {
		return nil, nil, err
	}
	if request.Expired(clock.Now()) {
		_ = s.requests.Delete(ctx, id)
		return nil, request, nil
	}
	return request, nil, nil
}

// publishExpired fans out expiry events; must be called without s.mu held so
// event delivery can never wedge registry operations.
func (s *service) publishExpired(ctx context.Context, requests ...*approval.Request) {
	for _, request := range requests {
		if request == nil {
			continue
		}
		_ = s.events.Publish(ctx, &approval.Event{Topic: approval.TopicRequestExpired, Request: request})
	}
}

func (s *service) Confirm(ctx context.Context, id, confirmedBy string) (*approval.Confirmation, error) {
	s.mu.Lock()
	request, expired, err := s.liveRequest(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if request == nil {
		s.mu.Unlock()
		s.publishExpired(ctx, expired)
		return nil, approval.ErrNotFoundOrExpired
	}
	if request.RequesterID != confirmedBy {
		s.mu.Unlock()
		return nil, approval.ErrNotOwner
	}
	// Remove before running the callback: once confirmed the entry is
	// never re-enterable, even if the callback fails.
	_ = s.requests.Delete(ctx, id)
	s.mu.Unlock()

	confirmation := &approval.Confirmation{Request: request, Success: true}
	if request.Callback != nil {
		result, callbackErr := request.Callback(ctx)
		if callbackErr != nil {
			confirmation.Success = false
			confirmation.Err = callbackErr
			confirmation.Error = callbackErr.Error()
		} else {
			confirmation.Result = result
		}
	}
	confirmation.DecidedAt = clock.Now()
	_ = s.events.Publish(ctx, &approval.Event{Topic: approval.TopicRequestConfirmed, Request: request, Confirmation: confirmation})
	return confirmation, nil
}

func (s *service) Cancel(ctx context.Context, id, cancelledBy string) (bool, error) {
	s.mu.Lock()
	request, expired, err := s.liveRequest(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	if request == nil || request.RequesterID != cancelledBy {
		s.mu.Unlock()
		s.publishExpired(ctx, expired)
		return false, nil
	}
	if err = s.requests.Delete(ctx, id); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.mu.Unlock()
	_ = s.events.Publish(ctx, &approval.Event{Topic: approval.TopicRequestCancelled, Request: request})
	return true, nil
}

func (s *service) ListForUser(ctx context.Context, userID string) ([]*approval.Request, error) {
	s.mu.Lock()
	all, err := s.requests.List(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	now := clock.Now()
	var swept []*approval.Request
	for _, request := range all {
		if request.Expired(now) {
			_ = s.requests.Delete(ctx, request.ID)
			swept = append(swept, request)
		}
	}
	s.mu.Unlock()
	s.publishExpired(ctx, swept...)

	owned, err := s.requests.List(ctx, dao.NewParameter("RequesterID", userID))
	if err != nil {
		return nil, err
	}
	return owned, nil
}

func (s *service) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	all, err := s.requests.List(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	now := clock.Now()
	var swept []*approval.Request
	for _, request := range all {
		if !request.Expired(now) {
			continue
		}
		_ = s.requests.Delete(ctx, request.ID)
		swept = append(swept, request)
	}
	s.mu.Unlock()
	s.publishExpired(ctx, swept...)
	return len(swept), nil
}

func (s *service) Queue() messaging.Queue[approval.Event] {
	return s.events
}
