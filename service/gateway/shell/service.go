// Package shell executes confirmed run-command operations over local shell
// or SSH sessions. Results are collected asynchronously and surfaced through
// the standard status-query contract so the tracker can poll them like any
// remote backend.
package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs/url"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	rssh "github.com/viant/gosh/runner/ssh"
	"github.com/viant/scy/cred/secret"
	"golang.org/x/crypto/ssh"

	"github.com/viant/opsgate/internal/idgen"
	"github.com/viant/opsgate/service/gateway"
)

const defaultTimeout = time.Minute

// StatusSuccess and StatusFailed are the terminal statuses this gateway
// reports.
const (
	StatusInProgress = "InProgress"
	StatusSuccess    = "Success"
	StatusFailed     = "Failed"
)

// runInput is the typed shape bound from approval parameters.
type runInput struct {
	Commands    []string          `json:"commands"`
	Workdir     string            `json:"workdir"`
	Env         map[string]string `json:"env"`
	Credentials string            `json:"credentials"`
	TimeoutMs   int               `json:"timeoutMs"`
}

func (i *runInput) timeout() time.Duration {
	if i.TimeoutMs > 0 {
		return time.Duration(i.TimeoutMs) * time.Millisecond
	}
	return defaultTimeout
}

// commandResult holds the outcome of one host's command run.
type commandResult struct {
	status *gateway.CommandStatus
	stdout string
}

// Service implements gateway.Service over gosh sessions. Resource IDs are
// host URLs, e.g. "ssh://db1.prod:22" or "bash://localhost".
type Service struct {
	secrets  *secret.Service
	binder   *gateway.Binder
	sessions map[string]*gosh.Service
	pending  map[string]bool
	results  map[string]*commandResult
	mux      sync.Mutex
}

// New creates a shell gateway.
func New() *Service {
	return &Service{
		secrets:  secret.New(),
		binder:   gateway.NewBinder(),
		sessions: make(map[string]*gosh.Service),
		pending:  make(map[string]bool),
		results:  make(map[string]*commandResult),
	}
}

// Invoke starts the bound commands on every target host. Each host becomes
// one tracked command sharing a single command id.
func (s *Service) Invoke(ctx context.Context, command *gateway.Command) (*gateway.Invocation, error) {
	if command == nil {
		return nil, fmt.Errorf("command was nil")
	}
	if command.OperationType != gateway.OpRunCommand {
		return nil, fmt.Errorf("unsupported operation type: %s", command.OperationType)
	}
	if len(command.ResourceIDs) == 0 {
		return nil, fmt.Errorf("run-command requires at least one target host")
	}
	input := &runInput{}
	if err := s.binder.Bind(command.Parameters, input); err != nil {
		return nil, fmt.Errorf("failed to bind run-command parameters: %w", err)
	}
	if len(input.Commands) == 0 {
		return nil, fmt.Errorf("run-command requires a commands parameter")
	}
	commandID := idgen.Prefixed("sh")
	invocation := &gateway.Invocation{
		Message: fmt.Sprintf("command %s started on %d host(s)", commandID, len(command.ResourceIDs)),
	}
	s.mux.Lock()
	for _, host := range command.ResourceIDs {
		s.pending[resultKey(commandID, host)] = true
	}
	s.mux.Unlock()
	detached := context.WithoutCancel(ctx)
	for _, host := range command.ResourceIDs {
		invocation.Commands = append(invocation.Commands, gateway.InvokedCommand{
			CommandID:  commandID,
			InstanceID: host,
		})
		go s.run(detached, commandID, host, input)
	}
	return invocation, nil
}

// QueryCommand reports the outcome of one host's run. While the run is still
// in flight it returns gateway.ErrResultNotReady.
func (s *Service) QueryCommand(ctx context.Context, commandID, instanceID string) (*gateway.CommandStatus, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	key := resultKey(commandID, instanceID)
	if s.pending[key] {
		return nil, fmt.Errorf("command %s on %s: %w", commandID, instanceID, gateway.ErrResultNotReady)
	}
	result, ok := s.results[key]
	if !ok {
		return nil, fmt.Errorf("unknown command %s on %s", commandID, instanceID)
	}
	return result.status, nil
}

// Output returns the captured stdout of a completed run.
func (s *Service) Output(commandID, instanceID string) (string, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	result, ok := s.results[resultKey(commandID, instanceID)]
	if !ok {
		return "", false
	}
	return result.stdout, true
}

func (s *Service) run(ctx context.Context, commandID, host string, input *runInput) {
	result := s.execute(ctx, host, input)
	s.mux.Lock()
	key := resultKey(commandID, host)
	delete(s.pending, key)
	s.results[key] = result
	s.mux.Unlock()
}

func (s *Service) execute(ctx context.Context, host string, input *runInput) *commandResult {
	session, err := s.getSession(ctx, host, input)
	if err != nil {
		return &commandResult{status: &gateway.CommandStatus{
			Status:    StatusFailed,
			ErrorText: fmt.Sprintf("failed to open session: %v", err),
		}}
	}
	if input.Workdir != "" {
		if _, _, err := session.Run(ctx, fmt.Sprintf("cd %s", input.Workdir)); err != nil {
			return &commandResult{status: &gateway.CommandStatus{
				Status:    StatusFailed,
				ErrorText: fmt.Sprintf("failed to change directory: %v", err),
			}}
		}
	}
	timeout := input.timeout()
	var combined strings.Builder
	for _, cmd := range input.Commands {
		stdout, status, err := session.Run(ctx, cmd, runner.WithTimeout(int(timeout.Milliseconds())))
		if stdout != "" {
			combined.WriteString(stdout)
			combined.WriteString("\n")
		}
		if err != nil || status != 0 {
			errorText := stdout
			if errorText == "" && err != nil {
				errorText = err.Error()
			}
			return &commandResult{
				status: &gateway.CommandStatus{Status: StatusFailed, ErrorText: errorText},
				stdout: strings.TrimSpace(combined.String()),
			}
		}
	}
	return &commandResult{
		status: &gateway.CommandStatus{Status: StatusSuccess},
		stdout: strings.TrimSpace(combined.String()),
	}
}

// getSession retrieves a cached session for host or opens a new one.
func (s *Service) getSession(ctx context.Context, host string, input *runInput) (*gosh.Service, error) {
	s.mux.Lock()
	if session, ok := s.sessions[host]; ok {
		s.mux.Unlock()
		return session, nil
	}
	s.mux.Unlock()

	envOptions := []runner.Option{}
	if len(input.Env) > 0 {
		envOptions = append(envOptions, runner.WithEnvironment(input.Env))
	}
	var session *gosh.Service
	var err error
	if hostname := url.Host(host); hostname == "localhost" || hostname == "" {
		session, err = gosh.New(ctx, local.New(envOptions...))
	} else {
		config, cfgErr := s.sshConfig(ctx, input.Credentials)
		if cfgErr != nil {
			return nil, fmt.Errorf("failed to resolve SSH credentials: %w", cfgErr)
		}
		if !strings.Contains(hostname, ":") {
			hostname += ":22"
		}
		session, err = gosh.New(ctx, rssh.New(hostname, config, envOptions...))
	}
	if err != nil {
		return nil, err
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if existing, ok := s.sessions[host]; ok {
		_ = session.Close()
		return existing, nil
	}
	s.sessions[host] = session
	return session, nil
}

func (s *Service) sshConfig(ctx context.Context, credentials string) (*ssh.ClientConfig, error) {
	if credentials == "" {
		credentials = "localhost"
	}
	generic, err := s.secrets.GetCredentials(ctx, credentials)
	if err != nil {
		return nil, err
	}
	return generic.SSH.Config(ctx)
}

// Close releases all sessions held by this gateway.
func (s *Service) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	var errs []string
	for host, session := range s.sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("failed to close session %s: %v", host, err))
		}
	}
	s.sessions = make(map[string]*gosh.Service)
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sessions: %s", strings.Join(errs, "; "))
	}
	return nil
}

func resultKey(commandID, instanceID string) string {
	return commandID + "/" + instanceID
}

var _ gateway.Service = (*Service)(nil)
