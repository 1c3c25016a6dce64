package tracker

import (
	"math"
	"strings"
	"time"
)

// Status of a tracked remote command.
type Status string

const (
	StatusPending           Status = "Pending"
	StatusInProgress        Status = "InProgress"
	StatusDelayed           Status = "Delayed"
	StatusCancelling        Status = "Cancelling"
	StatusSuccess           Status = "Success"
	StatusFailed            Status = "Failed"
	StatusCancelled         Status = "Cancelled"
	StatusDeliveryTimedOut  Status = "DeliveryTimedOut"
	StatusExecutionTimedOut Status = "ExecutionTimedOut"
	StatusUndeliverable     Status = "Undeliverable"
	StatusTerminated        Status = "Terminated"
)

// Terminal reports whether the status will never transition further.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusDeliveryTimedOut,
		StatusExecutionTimedOut, StatusUndeliverable, StatusTerminated:
		return true
	}
	return false
}

// ParseStatus maps a remote status string to the enum. Unknown values map to
// Pending; a malformed remote answer must never crash the poll loop.
func ParseStatus(text string) Status {
	normalized := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(text, " ", ""), "-", ""))
	switch normalized {
	case "pending":
		return StatusPending
	case "inprogress":
		return StatusInProgress
	case "delayed":
		return StatusDelayed
	case "cancelling":
		return StatusCancelling
	case "success":
		return StatusSuccess
	case "failed", "failure":
		return StatusFailed
	case "cancelled", "canceled":
		return StatusCancelled
	case "deliverytimedout":
		return StatusDeliveryTimedOut
	case "timedout", "executiontimedout":
		return StatusExecutionTimedOut
	case "undeliverable":
		return StatusUndeliverable
	case "terminated":
		return StatusTerminated
	default:
		return StatusPending
	}
}

// TrackingInfo is the poll-loop state of one remote command.
type TrackingInfo struct {
	CommandID      string                 `json:"commandId"`
	InstanceID     string                 `json:"instanceId"`
	DocumentName   string                 `json:"documentName"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"` // sanitized copy, secrets redacted
	Status         Status                 `json:"status"`
	WorkflowID     string                 `json:"workflowId,omitempty"`
	PollCount      int                    `json:"pollCount"`
	NextPollDelay  time.Duration          `json:"nextPollDelay"`
	LastPolledAt   time.Time              `json:"lastPolledAt,omitempty"`
	TimeoutAt      time.Time              `json:"timeoutAt"`
	CompletedAt    time.Time              `json:"completedAt,omitempty"`
	ErrorMessage   string                 `json:"errorMessage,omitempty"`
	OutputLocation string                 `json:"outputLocation,omitempty"`
}

// WorkflowInfo aggregates per-target outcomes of one multi-target operation.
type WorkflowInfo struct {
	WorkflowID     string    `json:"workflowId"`
	OperationType  string    `json:"operationType"`
	ExpectedCount  int       `json:"expectedCount"`
	CompletedCount int       `json:"completedCount"`
	SuccessCount   int       `json:"successCount"`
	FailedCount    int       `json:"failedCount"`
	CommandIDs     []string  `json:"commandIds"`
	CompletedAt    time.Time `json:"completedAt,omitempty"`
}

// Complete reports whether every expected member finished. Overshoot counts
// as complete rather than an error.
func (w *WorkflowInfo) Complete() bool {
	return w.CompletedCount >= w.ExpectedCount
}

// SuccessRate returns the percentage of successful members among completed
// ones, rounded to two decimals (2 of 3 yields 66.67).
func (w *WorkflowInfo) SuccessRate() float64 {
	if w.CompletedCount == 0 {
		return 0
	}
	rate := float64(w.SuccessCount) / float64(w.CompletedCount) * 100
	return math.Round(rate*100) / 100
}

// Event envelope published on every completion.
type Event struct {
	Topic    string        `json:"topic"`
	Command  *TrackingInfo `json:"command,omitempty"`
	Workflow *WorkflowInfo `json:"workflow,omitempty"`
}

// Completion event topics.
const (
	TopicCommandCompleted  = "command.completed"
	TopicWorkflowCompleted = "workflow.completed"
)

// secretKeyFragments marks parameter names whose values never reach tracking
// state or notifications.
var secretKeyFragments = []string{"password", "secret", "token", "credential", "apikey", "api_key"}

// sanitizeParameters deep-copies parameters, redacting secret-looking keys.
func sanitizeParameters(parameters map[string]interface{}) map[string]interface{} {
	if len(parameters) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(parameters))
	for key, value := range parameters {
		lower := strings.ToLower(key)
		redact := false
		for _, fragment := range secretKeyFragments {
			if strings.Contains(lower, fragment) {
				redact = true
				break
			}
		}
		if redact {
			out[key] = "****"
			continue
		}
		if nested, ok := value.(map[string]interface{}); ok {
			out[key] = sanitizeParameters(nested)
			continue
		}
		out[key] = value
	}
	return out
}
