package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/viant/opsgate/internal/clock"
	"github.com/viant/opsgate/service/dao"
	"github.com/viant/opsgate/service/dao/store"
	"github.com/viant/opsgate/service/gateway"
	"github.com/viant/opsgate/service/limiter"
	"github.com/viant/opsgate/service/messaging"
	qmem "github.com/viant/opsgate/service/messaging/memory"
	"github.com/viant/opsgate/service/retrier"
	"github.com/viant/opsgate/tracing"
)

const (
	initialPollDelay      = 3 * time.Second
	maxPollDelay          = 10 * time.Second
	pollBackoffMultiplier = 1.2
)

// Notifier is the caller-supplied completion sink. The tracker knows nothing
// about how notifications are delivered.
type Notifier interface {
	OnCommandCompleted(ctx context.Context, command *TrackingInfo, workflow *WorkflowInfo)
	OnWorkflowCompleted(ctx context.Context, workflow *WorkflowInfo)
}

// Config holds tracker loop settings.
type Config struct {
	TickInterval   time.Duration `json:"tickInterval" yaml:"tickInterval"`
	DefaultTimeout time.Duration `json:"defaultTimeout" yaml:"defaultTimeout"`
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval:   time.Second,
		DefaultTimeout: 15 * time.Minute,
	}
}

// Service tracks remote commands until a terminal outcome.
type Service struct {
	config   Config
	querier  gateway.StatusQuerier
	limiter  *limiter.Service
	retrier  *retrier.Service
	notifier Notifier

	commands  dao.Service[string, TrackingInfo]
	workflows dao.Service[string, WorkflowInfo]
	events    messaging.Queue[Event]

	// mu guards read-check-then-update of poll scheduling fields and all
	// workflow counter mutations.
	mu       sync.Mutex
	inFlight map[string]bool

	wg         sync.WaitGroup
	shutdownCh chan struct{}
	shutdown   sync.Once
}

func commandKey(c *TrackingInfo) string  { return c.CommandID }
func workflowKey(w *WorkflowInfo) string { return w.WorkflowID }

// New creates a command tracker polling through the supplied status querier.
func New(querier gateway.StatusQuerier, options ...Option) *Service {
	ret := &Service{
		config:     DefaultConfig(),
		querier:    querier,
		commands:   store.NewMemoryStore[string, TrackingInfo](commandKey),
		workflows:  store.NewMemoryStore[string, WorkflowInfo](workflowKey),
		events:     qmem.NewQueue[Event](qmem.DefaultConfig()),
		inFlight:   make(map[string]bool),
		shutdownCh: make(chan struct{}),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Track registers a remote command for polling. A zero timeout falls back to
// the configured default. When workflowID names a live workflow the command
// is appended to it.
func (s *Service) Track(ctx context.Context, commandID, instanceID, documentName string,
	parameters map[string]interface{}, workflowID string, timeout time.Duration) (*TrackingInfo, error) {
	if commandID == "" {
		return nil, fmt.Errorf("commandID was empty")
	}
	if timeout <= 0 {
		timeout = s.config.DefaultTimeout
	}
	now := clock.Now()
	info := &TrackingInfo{
		CommandID:     commandID,
		InstanceID:    instanceID,
		DocumentName:  documentName,
		Parameters:    sanitizeParameters(parameters),
		Status:        StatusPending,
		WorkflowID:    workflowID,
		NextPollDelay: initialPollDelay,
		TimeoutAt:     now.Add(timeout),
	}
	if err := s.commands.Save(ctx, info); err != nil {
		return nil, err
	}
	if workflowID != "" {
		s.mu.Lock()
		if workflow, _ := s.workflows.Load(ctx, workflowID); workflow != nil {
			workflow.CommandIDs = append(workflow.CommandIDs, commandID)
		}
		s.mu.Unlock()
	}
	return info, nil
}

// CreateWorkflow registers an aggregate counter. It must exist before member
// commands reference it.
func (s *Service) CreateWorkflow(ctx context.Context, workflowID, operationType string, expectedCount int) (*WorkflowInfo, error) {
	if workflowID == "" {
		return nil, fmt.Errorf("workflowID was empty")
	}
	workflow := &WorkflowInfo{
		WorkflowID:    workflowID,
		OperationType: operationType,
		ExpectedCount: expectedCount,
	}
	if err := s.workflows.Save(ctx, workflow); err != nil {
		return nil, err
	}
	return workflow, nil
}

// GetWorkflow returns a live workflow, or dao.ErrNotFound once the workflow
// completed and was removed.
func (s *Service) GetWorkflow(ctx context.Context, workflowID string) (*WorkflowInfo, error) {
	return s.workflows.Load(ctx, workflowID)
}

// ActiveCommands lists commands still being tracked.
func (s *Service) ActiveCommands(ctx context.Context) ([]*TrackingInfo, error) {
	return s.commands.List(ctx)
}

// Queue exposes the completion-event fan-out.
func (s *Service) Queue() messaging.Queue[Event] {
	return s.events
}

// Start runs the poll loop until ctx is cancelled or Shutdown is called.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// Shutdown stops the loop and joins every poll in flight.
func (s *Service) Shutdown() {
	s.shutdown.Do(func() { close(s.shutdownCh) })
	s.wg.Wait()
}

// poll issues one status query per due command. Polls for distinct commands
// run concurrently up to the limiter's ceiling; polls for the same command
// are strictly sequential.
func (s *Service) poll(ctx context.Context) {
	infos, err := s.commands.List(ctx)
	if err != nil {
		log.Printf("tracker: failed to list commands: %v", err)
		return
	}
	now := clock.Now()
	for _, info := range infos {
		s.mu.Lock()
		due := !info.Status.Terminal() && !s.inFlight[info.CommandID] &&
			(info.LastPolledAt.IsZero() || now.Sub(info.LastPolledAt) >= info.NextPollDelay)
		if due {
			s.inFlight[info.CommandID] = true
		}
		s.mu.Unlock()
		if !due {
			continue
		}
		s.wg.Add(1)
		go func(info *TrackingInfo) {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.inFlight, info.CommandID)
				s.mu.Unlock()
			}()
			s.pollCommand(ctx, info)
		}(info)
	}
}

// pollOnce runs a single deterministic poll pass; used by tests and by
// callers that drive the loop themselves.
func (s *Service) pollOnce(ctx context.Context) {
	s.poll(ctx)
	s.wg.Wait()
}

func (s *Service) pollCommand(ctx context.Context, info *TrackingInfo) {
	now := clock.Now()

	// Timeout wins over everything else and issues no remote call.
	if now.After(info.TimeoutAt) {
		s.mu.Lock()
		info.Status = StatusExecutionTimedOut
		info.ErrorMessage = fmt.Sprintf("command %s did not complete before its %s deadline",
			info.CommandID, info.TimeoutAt.Format(time.RFC3339))
		s.mu.Unlock()
		s.completeCommand(ctx, info)
		return
	}

	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("tracker.poll %s", info.CommandID), "CLIENT")
	result, err := s.queryStatus(ctx, info)
	if err != nil {
		if errors.Is(err, gateway.ErrResultNotReady) {
			tracing.EndSpan(span, nil)
			log.Printf("tracker: result not yet available for command %s", info.CommandID)
			return
		}
		tracing.EndSpan(span, err)
		// Soft failure: keep polling, but advance the backoff schedule.
		s.mu.Lock()
		s.advanceSchedule(info, now)
		s.mu.Unlock()
		log.Printf("tracker: status query failed for command %s: %v", info.CommandID, err)
		return
	}
	tracing.EndSpan(span, nil)

	s.mu.Lock()
	info.Status = ParseStatus(result.Status)
	s.advanceSchedule(info, now)
	if info.Status == StatusFailed && result.ErrorText != "" {
		info.ErrorMessage = result.ErrorText
	}
	if result.OutputLocation != "" {
		info.OutputLocation = result.OutputLocation
	}
	terminal := info.Status.Terminal()
	s.mu.Unlock()

	if terminal {
		s.completeCommand(ctx, info)
	}
}

// advanceSchedule records a completed poll attempt; callers must hold s.mu.
func (s *Service) advanceSchedule(info *TrackingInfo, now time.Time) {
	info.LastPolledAt = now
	info.PollCount++
	info.NextPollDelay = nextPollDelay(info.NextPollDelay)
}

// nextPollDelay grows the cadence by 20% per poll up to a 10s ceiling.
func nextPollDelay(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * pollBackoffMultiplier)
	if next > maxPollDelay {
		next = maxPollDelay
	}
	return next
}

// queryStatus issues one remote status query through the limiter and the
// retry executor when configured.
func (s *Service) queryStatus(ctx context.Context, info *TrackingInfo) (*gateway.CommandStatus, error) {
	call := func(ctx context.Context) (*gateway.CommandStatus, error) {
		if s.limiter == nil {
			return s.querier.QueryCommand(ctx, info.CommandID, info.InstanceID)
		}
		guard, err := s.limiter.Acquire(ctx, "query-command-status")
		if err != nil {
			return nil, err
		}
		result, err := s.querier.QueryCommand(ctx, info.CommandID, info.InstanceID)
		guard.Release(err)
		return result, err
	}
	if s.retrier == nil {
		return call(ctx)
	}
	var result *gateway.CommandStatus
	err := s.retrier.Execute(ctx, "query-command-status", func(ctx context.Context) error {
		var callErr error
		result, callErr = call(ctx)
		return callErr
	})
	return result, err
}

// completeCommand applies completion handling: workflow counters first, then
// the per-command notification, then removal from the active set.
func (s *Service) completeCommand(ctx context.Context, info *TrackingInfo) {
	now := clock.Now()

	s.mu.Lock()
	info.CompletedAt = now
	var workflow *WorkflowInfo
	var workflowDone bool
	if info.WorkflowID != "" {
		workflow, _ = s.workflows.Load(ctx, info.WorkflowID)
		if workflow != nil {
			workflow.CompletedCount++
			if info.Status == StatusSuccess {
				workflow.SuccessCount++
			} else {
				workflow.FailedCount++
			}
			if workflow.Complete() {
				workflow.CompletedAt = now
				workflowDone = true
				// removal makes the completion fire exactly once even
				// when a late member overshoots ExpectedCount
				_ = s.workflows.Delete(ctx, workflow.WorkflowID)
			}
		}
	}
	s.mu.Unlock()

	if workflowDone {
		if s.notifier != nil {
			s.notifier.OnWorkflowCompleted(ctx, workflow)
		}
		_ = s.events.Publish(ctx, &Event{Topic: TopicWorkflowCompleted, Workflow: workflow})
	}
	if s.notifier != nil {
		s.notifier.OnCommandCompleted(ctx, info, workflow)
	}
	_ = s.events.Publish(ctx, &Event{Topic: TopicCommandCompleted, Command: info, Workflow: workflow})
	_ = s.commands.Delete(ctx, info.CommandID)
}
