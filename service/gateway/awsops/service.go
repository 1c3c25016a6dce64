package awsops

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/viant/opsgate/service/gateway"
)

// defaultDocument runs arbitrary shell on managed instances.
const defaultDocument = "AWS-RunShellScript"

// SSMClient is the subset of the SSM API the gateway needs.
type SSMClient interface {
	SendCommand(ctx context.Context, input *ssm.SendCommandInput, optFns ...func(*ssm.Options)) (*ssm.SendCommandOutput, error)
	GetCommandInvocation(ctx context.Context, input *ssm.GetCommandInvocationInput, optFns ...func(*ssm.Options)) (*ssm.GetCommandInvocationOutput, error)
	CancelCommand(ctx context.Context, input *ssm.CancelCommandInput, optFns ...func(*ssm.Options)) (*ssm.CancelCommandOutput, error)
}

// EC2Client is the subset of the EC2 API the gateway needs.
type EC2Client interface {
	StopInstances(ctx context.Context, input *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	StartInstances(ctx context.Context, input *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	TerminateInstances(ctx context.Context, input *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	RebootInstances(ctx context.Context, input *ec2.RebootInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RebootInstancesOutput, error)
}

// runCommandInput is the typed shape bound from approval parameters for
// run-command operations.
type runCommandInput struct {
	Commands       []string `json:"commands"`
	Comment        string   `json:"comment"`
	TimeoutSeconds int32    `json:"timeoutSeconds"`
}

// Service implements gateway.Service against AWS.
type Service struct {
	ssm    SSMClient
	ec2    EC2Client
	region string
	binder *gateway.Binder
}

type Option func(*Service)

// WithClients injects pre-built API clients; used by tests and by callers
// owning their own AWS configuration.
func WithClients(ssmClient SSMClient, ec2Client EC2Client) Option {
	return func(s *Service) {
		s.ssm = ssmClient
		s.ec2 = ec2Client
	}
}

// WithRegion pins the AWS region instead of relying on ambient configuration.
func WithRegion(region string) Option {
	return func(s *Service) { s.region = region }
}

// New creates an AWS gateway. Unless clients are injected it resolves the
// default credential chain.
func New(ctx context.Context, options ...Option) (*Service, error) {
	ret := &Service{binder: gateway.NewBinder()}
	for _, option := range options {
		option(ret)
	}
	if ret.ssm == nil || ret.ec2 == nil {
		var loadOptions []func(*awsconfig.LoadOptions) error
		if ret.region != "" {
			loadOptions = append(loadOptions, awsconfig.WithRegion(ret.region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		ret.ssm = ssm.NewFromConfig(cfg)
		ret.ec2 = ec2.NewFromConfig(cfg)
	}
	return ret, nil
}

// Invoke performs a confirmed operation. Instance lifecycle calls complete
// synchronously; run-command spawns one tracked command per target.
func (s *Service) Invoke(ctx context.Context, command *gateway.Command) (*gateway.Invocation, error) {
	if command == nil {
		return nil, fmt.Errorf("command was nil")
	}
	switch command.OperationType {
	case gateway.OpStopInstances:
		_, err := s.ec2.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: command.ResourceIDs})
		if err != nil {
			return nil, err
		}
		return &gateway.Invocation{Message: fmt.Sprintf("stopping %d instance(s)", len(command.ResourceIDs))}, nil
	case gateway.OpStartInstances:
		_, err := s.ec2.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: command.ResourceIDs})
		if err != nil {
			return nil, err
		}
		return &gateway.Invocation{Message: fmt.Sprintf("starting %d instance(s)", len(command.ResourceIDs))}, nil
	case gateway.OpTerminateInstances:
		_, err := s.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: command.ResourceIDs})
		if err != nil {
			return nil, err
		}
		return &gateway.Invocation{Message: fmt.Sprintf("terminating %d instance(s)", len(command.ResourceIDs))}, nil
	case gateway.OpRebootInstances:
		_, err := s.ec2.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: command.ResourceIDs})
		if err != nil {
			return nil, err
		}
		return &gateway.Invocation{Message: fmt.Sprintf("rebooting %d instance(s)", len(command.ResourceIDs))}, nil
	case gateway.OpRunCommand:
		return s.runCommand(ctx, command)
	default:
		return nil, fmt.Errorf("unsupported operation type: %s", command.OperationType)
	}
}

func (s *Service) runCommand(ctx context.Context, command *gateway.Command) (*gateway.Invocation, error) {
	input := &runCommandInput{}
	if err := s.binder.Bind(command.Parameters, input); err != nil {
		return nil, fmt.Errorf("failed to bind run-command parameters: %w", err)
	}
	if len(input.Commands) == 0 {
		return nil, fmt.Errorf("run-command requires a commands parameter")
	}
	document := command.DocumentName
	if document == "" {
		document = defaultDocument
	}
	sendInput := &ssm.SendCommandInput{
		DocumentName: aws.String(document),
		InstanceIds:  command.ResourceIDs,
		Parameters:   map[string][]string{"commands": input.Commands},
	}
	if input.Comment != "" {
		sendInput.Comment = aws.String(input.Comment)
	}
	if input.TimeoutSeconds > 0 {
		sendInput.TimeoutSeconds = aws.Int32(input.TimeoutSeconds)
	}
	output, err := s.ssm.SendCommand(ctx, sendInput)
	if err != nil {
		return nil, err
	}
	if output.Command == nil || output.Command.CommandId == nil {
		return nil, fmt.Errorf("send command returned no command id")
	}
	commandID := *output.Command.CommandId
	invocation := &gateway.Invocation{
		Message: fmt.Sprintf("command %s sent to %d instance(s)", commandID, len(command.ResourceIDs)),
	}
	for _, instanceID := range command.ResourceIDs {
		invocation.Commands = append(invocation.Commands, gateway.InvokedCommand{
			CommandID:  commandID,
			InstanceID: instanceID,
		})
	}
	return invocation, nil
}

// QueryCommand polls one invocation's status. An invocation the service does
// not know about yet surfaces as gateway.ErrResultNotReady.
func (s *Service) QueryCommand(ctx context.Context, commandID, instanceID string) (*gateway.CommandStatus, error) {
	output, err := s.ssm.GetCommandInvocation(ctx, &ssm.GetCommandInvocationInput{
		CommandId:  aws.String(commandID),
		InstanceId: aws.String(instanceID),
	})
	if err != nil {
		var notReady *ssmtypes.InvocationDoesNotExist
		if errors.As(err, &notReady) {
			return nil, fmt.Errorf("command %s on %s: %w", commandID, instanceID, gateway.ErrResultNotReady)
		}
		return nil, err
	}
	status := &gateway.CommandStatus{Status: string(output.Status)}
	if output.StandardErrorContent != nil {
		status.ErrorText = *output.StandardErrorContent
	}
	if output.StandardOutputUrl != nil && *output.StandardOutputUrl != "" {
		status.OutputLocation = *output.StandardOutputUrl
	}
	return status, nil
}

// Cancel asks the remote side to stop a running command.
func (s *Service) Cancel(ctx context.Context, commandID string, instanceIDs []string) error {
	input := &ssm.CancelCommandInput{CommandId: aws.String(commandID)}
	if len(instanceIDs) > 0 {
		input.InstanceIds = instanceIDs
	}
	_, err := s.ssm.CancelCommand(ctx, input)
	return err
}

var _ gateway.Service = (*Service)(nil)
