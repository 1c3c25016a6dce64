package awsops

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/opsgate/service/gateway"
)

type fakeSSM struct {
	sendInput      *ssm.SendCommandInput
	sendOutput     *ssm.SendCommandOutput
	sendErr        error
	invocation     *ssm.GetCommandInvocationOutput
	invocationErr  error
	cancelledID    string
	cancelledInsts []string
}

func (f *fakeSSM) SendCommand(_ context.Context, input *ssm.SendCommandInput, _ ...func(*ssm.Options)) (*ssm.SendCommandOutput, error) {
	f.sendInput = input
	return f.sendOutput, f.sendErr
}

func (f *fakeSSM) GetCommandInvocation(_ context.Context, _ *ssm.GetCommandInvocationInput, _ ...func(*ssm.Options)) (*ssm.GetCommandInvocationOutput, error) {
	return f.invocation, f.invocationErr
}

func (f *fakeSSM) CancelCommand(_ context.Context, input *ssm.CancelCommandInput, _ ...func(*ssm.Options)) (*ssm.CancelCommandOutput, error) {
	f.cancelledID = aws.ToString(input.CommandId)
	f.cancelledInsts = input.InstanceIds
	return &ssm.CancelCommandOutput{}, nil
}

type fakeEC2 struct {
	stopped    []string
	started    []string
	terminated []string
	rebooted   []string
	err        error
}

func (f *fakeEC2) StopInstances(_ context.Context, input *ec2.StopInstancesInput, _ ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	f.stopped = input.InstanceIds
	return &ec2.StopInstancesOutput{}, f.err
}

func (f *fakeEC2) StartInstances(_ context.Context, input *ec2.StartInstancesInput, _ ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
	f.started = input.InstanceIds
	return &ec2.StartInstancesOutput{}, f.err
}

func (f *fakeEC2) TerminateInstances(_ context.Context, input *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.terminated = input.InstanceIds
	return &ec2.TerminateInstancesOutput{}, f.err
}

func (f *fakeEC2) RebootInstances(_ context.Context, input *ec2.RebootInstancesInput, _ ...func(*ec2.Options)) (*ec2.RebootInstancesOutput, error) {
	f.rebooted = input.InstanceIds
	return &ec2.RebootInstancesOutput{}, f.err
}

func newService(t *testing.T, ssmClient SSMClient, ec2Client EC2Client) *Service {
	t.Helper()
	service, err := New(context.Background(), WithClients(ssmClient, ec2Client))
	require.NoError(t, err)
	return service
}

func TestInvokeInstanceLifecycle(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		operation string
		check     func(f *fakeEC2) []string
	}{
		{operation: gateway.OpStopInstances, check: func(f *fakeEC2) []string { return f.stopped }},
		{operation: gateway.OpStartInstances, check: func(f *fakeEC2) []string { return f.started }},
		{operation: gateway.OpTerminateInstances, check: func(f *fakeEC2) []string { return f.terminated }},
		{operation: gateway.OpRebootInstances, check: func(f *fakeEC2) []string { return f.rebooted }},
	}
	for _, testCase := range testCases {
		t.Run(testCase.operation, func(t *testing.T) {
			ec2Client := &fakeEC2{}
			service := newService(t, &fakeSSM{}, ec2Client)
			invocation, err := service.Invoke(ctx, &gateway.Command{
				OperationType: testCase.operation,
				ResourceType:  "instance",
				ResourceIDs:   []string{"i-1", "i-2"},
			})
			assert.NoError(t, err)
			assert.Empty(t, invocation.Commands, "lifecycle operations spawn no tracked commands")
			assert.Equal(t, []string{"i-1", "i-2"}, testCase.check(ec2Client))
		})
	}
}

func TestInvokeRunCommand(t *testing.T) {
	ctx := context.Background()
	ssmClient := &fakeSSM{
		sendOutput: &ssm.SendCommandOutput{
			Command: &ssmtypes.Command{CommandId: aws.String("cmd-42")},
		},
	}
	service := newService(t, ssmClient, &fakeEC2{})

	invocation, err := service.Invoke(ctx, &gateway.Command{
		OperationType: gateway.OpRunCommand,
		ResourceIDs:   []string{"i-1", "i-2"},
		Parameters: map[string]interface{}{
			"commands": []string{"systemctl restart nginx"},
			"comment":  "restart web tier",
		},
	})
	require.NoError(t, err)
	require.Len(t, invocation.Commands, 2)
	assert.Equal(t, "cmd-42", invocation.Commands[0].CommandID)
	assert.Equal(t, "i-1", invocation.Commands[0].InstanceID)
	assert.Equal(t, "i-2", invocation.Commands[1].InstanceID)

	require.NotNil(t, ssmClient.sendInput)
	assert.Equal(t, defaultDocument, aws.ToString(ssmClient.sendInput.DocumentName))
	assert.Equal(t, []string{"systemctl restart nginx"}, ssmClient.sendInput.Parameters["commands"])
	assert.Equal(t, "restart web tier", aws.ToString(ssmClient.sendInput.Comment))
}

func TestInvokeRunCommandRequiresCommands(t *testing.T) {
	service := newService(t, &fakeSSM{}, &fakeEC2{})
	_, err := service.Invoke(context.Background(), &gateway.Command{
		OperationType: gateway.OpRunCommand,
		ResourceIDs:   []string{"i-1"},
	})
	assert.Error(t, err)
}

func TestInvokeUnknownOperation(t *testing.T) {
	service := newService(t, &fakeSSM{}, &fakeEC2{})
	_, err := service.Invoke(context.Background(), &gateway.Command{OperationType: "detonate"})
	assert.Error(t, err)
}

func TestQueryCommand(t *testing.T) {
	ctx := context.Background()
	ssmClient := &fakeSSM{
		invocation: &ssm.GetCommandInvocationOutput{
			Status:               ssmtypes.CommandInvocationStatusFailed,
			StandardErrorContent: aws.String("exit status 1"),
			StandardOutputUrl:    aws.String("s3://bucket/out"),
		},
	}
	service := newService(t, ssmClient, &fakeEC2{})

	status, err := service.QueryCommand(ctx, "cmd-42", "i-1")
	require.NoError(t, err)
	assert.Equal(t, "Failed", status.Status)
	assert.Equal(t, "exit status 1", status.ErrorText)
	assert.Equal(t, "s3://bucket/out", status.OutputLocation)
}

func TestQueryCommandNotReady(t *testing.T) {
	ssmClient := &fakeSSM{invocationErr: &ssmtypes.InvocationDoesNotExist{}}
	service := newService(t, ssmClient, &fakeEC2{})

	_, err := service.QueryCommand(context.Background(), "cmd-42", "i-1")
	assert.ErrorIs(t, err, gateway.ErrResultNotReady)
}

func TestCancel(t *testing.T) {
	ssmClient := &fakeSSM{}
	service := newService(t, ssmClient, &fakeEC2{})

	err := service.Cancel(context.Background(), "cmd-42", []string{"i-1"})
	assert.NoError(t, err)
	assert.Equal(t, "cmd-42", ssmClient.cancelledID)
	assert.Equal(t, []string{"i-1"}, ssmClient.cancelledInsts)
}

func TestInvokePropagatesRemoteError(t *testing.T) {
	cause := errors.New("UnauthorizedOperation: not allowed")
	service := newService(t, &fakeSSM{}, &fakeEC2{err: cause})
	_, err := service.Invoke(context.Background(), &gateway.Command{
		OperationType: gateway.OpStopInstances,
		ResourceIDs:   []string{"i-1"},
	})
	assert.ErrorIs(t, err, cause)
}
