package gateway

import (
	"context"
	"errors"
)

// ErrResultNotReady signals that the remote side has not produced a command
// result yet. The tracker tolerates it without a backoff penalty.
var ErrResultNotReady = errors.New("gateway: command result not yet available")

// Well-known operation types understood by the bundled adapters.
const (
	OpStopInstances      = "stop-instances"
	OpStartInstances     = "start-instances"
	OpTerminateInstances = "terminate-instances"
	OpRebootInstances    = "reboot-instances"
	OpRunCommand         = "run-command"
)

// Command describes a confirmed action to run remotely.
type Command struct {
	OperationType string                 `json:"operationType"` // e.g. "stop-instances", "run-command"
	ResourceType  string                 `json:"resourceType"`
	ResourceIDs   []string               `json:"resourceIds"`
	DocumentName  string                 `json:"documentName,omitempty"` // what to run, for command-style operations
	Parameters    map[string]interface{} `json:"parameters,omitempty"`
}

// InvokedCommand identifies one long-running remote job spawned by an
// invocation, one per target.
type InvokedCommand struct {
	CommandID  string `json:"commandId"`
	InstanceID string `json:"instanceId"`
}

// Invocation is the immediate outcome of a remote action. Commands is empty
// for fire-and-forget operations that need no tracking.
type Invocation struct {
	Commands []InvokedCommand `json:"commands,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// CommandStatus is the answer to one status query.
type CommandStatus struct {
	Status         string `json:"status"`
	ErrorText      string `json:"errorText,omitempty"`
	OutputLocation string `json:"outputLocation,omitempty"`
}

// Invoker performs a confirmed remote action.
type Invoker interface {
	Invoke(ctx context.Context, command *Command) (*Invocation, error)
}

// StatusQuerier polls the remote job-status endpoint. Implementations return
// ErrResultNotReady (possibly wrapped) while the result is pending.
type StatusQuerier interface {
	QueryCommand(ctx context.Context, commandID, instanceID string) (*CommandStatus, error)
}

// Service is a full remote gateway.
type Service interface {
	Invoker
	StatusQuerier
}
