package opsgate

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/opsgate/internal/idgen"
	"github.com/viant/opsgate/service/approval"
	amemory "github.com/viant/opsgate/service/approval/memory"
	"github.com/viant/opsgate/service/gateway"
	"github.com/viant/opsgate/service/limiter"
	"github.com/viant/opsgate/service/retrier"
	"github.com/viant/opsgate/service/tracker"
	"github.com/viant/opsgate/tracing"
)

// OperationSpec describes a remote operation someone wants to run. It is the
// input to RequestOperation; nothing executes until the requester confirms.
type OperationSpec struct {
	OperationType string                 `json:"operationType"`
	ResourceType  string                 `json:"resourceType"`
	ResourceIDs   []string               `json:"resourceIds"`
	RequesterID   string                 `json:"requesterId"`
	RequesterName string                 `json:"requesterName,omitempty"`
	Description   string                 `json:"description,omitempty"`
	DocumentName  string                 `json:"documentName,omitempty"`
	Parameters    map[string]interface{} `json:"parameters,omitempty"`
	Timeout       time.Duration          `json:"timeout,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// InvocationResult is what a confirmed operation's callback produces. For
// long-running commands WorkflowID identifies the tracker aggregate that
// reports overall completion.
type InvocationResult struct {
	Invocation *gateway.Invocation `json:"invocation"`
	WorkflowID string              `json:"workflowId,omitempty"`
}

// Service is the engine's composition root: approval registry, tracker,
// limiter, retrier and a remote gateway wired together.
type Service struct {
	config     *Config
	approvals  approval.Service
	tracker    *tracker.Service
	gateway    gateway.Service
	limiter    *limiter.Service
	retrier    *retrier.Service
	classifier retrier.Classifier
	notifier   tracker.Notifier
	runtime    *Runtime
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	s.runtime = &Runtime{
		approvals:     s.approvals,
		tracker:       s.tracker,
		sweepInterval: s.config.Approval.SweepInterval,
		tracing:       s.config.Tracing,
	}
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.limiter == nil {
		s.limiter = limiter.New(s.config.Limiter)
	}
	if s.retrier == nil {
		s.retrier = retrier.New(s.config.Retrier, s.classifier)
	}
	if s.approvals == nil {
		s.approvals = amemory.New(amemory.WithTTL(s.config.Approval.TTL))
	}
	if s.tracker == nil {
		trackerOptions := []tracker.Option{
			tracker.WithConfig(s.config.Tracker),
			tracker.WithLimiter(s.limiter),
			tracker.WithRetrier(s.retrier),
		}
		if s.notifier != nil {
			trackerOptions = append(trackerOptions, tracker.WithNotifier(s.notifier))
		}
		s.tracker = tracker.New(s.gateway, trackerOptions...)
	}
}

// New creates an engine instance. A gateway must be supplied via WithGateway
// before any operation can execute.
func New(options ...Option) *Service {
	ret := &Service{}
	ret.init(options)
	return ret
}

// RequestOperation registers an operation for confirmation. The returned
// request carries the id the requester must confirm; the remote call happens
// inside the confirmation callback, never here.
func (s *Service) RequestOperation(ctx context.Context, spec *OperationSpec) (*approval.Request, error) {
	if spec == nil {
		return nil, fmt.Errorf("operation spec was nil")
	}
	if spec.OperationType == "" {
		return nil, fmt.Errorf("operationType was empty")
	}
	if len(spec.ResourceIDs) == 0 {
		return nil, fmt.Errorf("resourceIds were empty")
	}
	if spec.RequesterID == "" {
		return nil, fmt.Errorf("requesterId was empty")
	}
	if s.gateway == nil {
		return nil, fmt.Errorf("no gateway configured")
	}
	request := &approval.Request{
		OperationType: spec.OperationType,
		ResourceType:  spec.ResourceType,
		ResourceIDs:   spec.ResourceIDs,
		RequesterID:   spec.RequesterID,
		RequesterName: spec.RequesterName,
		Description:   spec.Description,
		Metadata:      spec.Metadata,
		Callback: func(ctx context.Context) (interface{}, error) {
			return s.execute(ctx, spec)
		},
	}
	return s.approvals.Create(ctx, request)
}

// execute performs the confirmed remote call under the limiter and the retry
// executor, then registers any spawned commands with the tracker.
func (s *Service) execute(ctx context.Context, spec *OperationSpec) (result *InvocationResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "gateway.invoke", "CLIENT")
	span.WithAttributes(map[string]string{"operation.type": spec.OperationType})
	defer func() { tracing.EndSpan(span, err) }()

	guard, err := s.limiter.Acquire(ctx, spec.OperationType)
	if err != nil {
		return nil, err
	}
	command := &gateway.Command{
		OperationType: spec.OperationType,
		ResourceType:  spec.ResourceType,
		ResourceIDs:   spec.ResourceIDs,
		DocumentName:  spec.DocumentName,
		Parameters:    spec.Parameters,
	}
	var invocation *gateway.Invocation
	err = s.retrier.Execute(ctx, spec.OperationType, func(ctx context.Context) error {
		var callErr error
		invocation, callErr = s.gateway.Invoke(ctx, command)
		return callErr
	})
	guard.Release(err)
	if err != nil {
		return nil, err
	}
	result = &InvocationResult{Invocation: invocation}
	if len(invocation.Commands) == 0 {
		return result, nil
	}
	workflowID := idgen.Prefixed("wf")
	if _, err := s.tracker.CreateWorkflow(ctx, workflowID, spec.OperationType, len(invocation.Commands)); err != nil {
		return nil, err
	}
	for _, invoked := range invocation.Commands {
		_, err := s.tracker.Track(ctx, invoked.CommandID, invoked.InstanceID, spec.DocumentName,
			spec.Parameters, workflowID, spec.Timeout)
		if err != nil {
			return nil, err
		}
	}
	result.WorkflowID = workflowID
	return result, nil
}

// Confirm runs the pending operation's callback after ownership validation.
func (s *Service) Confirm(ctx context.Context, id, confirmedBy string) (*approval.Confirmation, error) {
	ctx, span := tracing.StartSpan(ctx, "approval.confirm", "INTERNAL")
	span.WithAttributes(map[string]string{"approval.id": id})
	confirmation, err := s.approvals.Confirm(ctx, id, confirmedBy)
	tracing.EndSpan(span, err)
	return confirmation, err
}

// Cancel removes a pending operation without executing it.
func (s *Service) Cancel(ctx context.Context, id, cancelledBy string) (bool, error) {
	return s.approvals.Cancel(ctx, id, cancelledBy)
}

// ListPending returns the requester's operations still awaiting confirmation.
func (s *Service) ListPending(ctx context.Context, requesterID string) ([]*approval.Request, error) {
	return s.approvals.ListForUser(ctx, requesterID)
}

// Approvals exposes the approval registry.
func (s *Service) Approvals() approval.Service { return s.approvals }

// Tracker exposes the command tracker.
func (s *Service) Tracker() *tracker.Service { return s.tracker }

// Limiter exposes the rate limiter; useful for stats surfaces.
func (s *Service) Limiter() *limiter.Service { return s.limiter }

// Runtime returns the background-loop handle.
func (s *Service) Runtime() *Runtime { return s.runtime }
