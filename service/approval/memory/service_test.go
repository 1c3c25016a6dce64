package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/opsgate/internal/clock"
	"github.com/viant/opsgate/service/approval"
	memApproval "github.com/viant/opsgate/service/approval/memory"
)

func stubNow(t *testing.T) *time.Time {
	t.Helper()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	prev := clock.NowFunc
	clock.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { clock.NowFunc = prev })
	return &now
}

func newRequest(requester string) *approval.Request {
	return &approval.Request{
		OperationType: "stop-instances",
		ResourceType:  "instance",
		ResourceIDs:   []string{"i-1"},
		RequesterID:   requester,
		RequesterName: "Alice",
		Description:   "stop instance i-1",
	}
}

func TestConfirmOwnership(t *testing.T) {
	stubNow(t)
	ctx := context.Background()
	svc := memApproval.New()

	request, err := svc.Create(ctx, newRequest("alice"))
	require.NoError(t, err)
	require.NotEmpty(t, request.ID)

	// a stranger may not confirm, and the entry survives the attempt
	_, err = svc.Confirm(ctx, request.ID, "bob")
	assert.ErrorIs(t, err, approval.ErrNotOwner)
	pending, err := svc.Get(ctx, request.ID)
	assert.NoError(t, err)
	assert.NotNil(t, pending)

	// the requester may
	confirmation, err := svc.Confirm(ctx, request.ID, "alice")
	assert.NoError(t, err)
	assert.True(t, confirmation.Success)

	// confirmed entries are gone for good
	pending, err = svc.Get(ctx, request.ID)
	assert.NoError(t, err)
	assert.Nil(t, pending)
	_, err = svc.Confirm(ctx, request.ID, "alice")
	assert.ErrorIs(t, err, approval.ErrNotFoundOrExpired)
}

func TestConfirmRunsCallbackOnce(t *testing.T) {
	stubNow(t)
	ctx := context.Background()
	svc := memApproval.New()

	calls := 0
	request := newRequest("alice")
	request.Callback = func(ctx context.Context) (interface{}, error) {
		calls++
		return "command-123", nil
	}
	request, err := svc.Create(ctx, request)
	require.NoError(t, err)

	confirmation, err := svc.Confirm(ctx, request.ID, "alice")
	assert.NoError(t, err)
	assert.True(t, confirmation.Success)
	assert.Equal(t, "command-123", confirmation.Result)
	assert.Equal(t, 1, calls)
}

func TestConfirmCapturesCallbackFailure(t *testing.T) {
	stubNow(t)
	ctx := context.Background()
	svc := memApproval.New()

	cause := errors.New("ThrottlingException: rate exceeded")
	request := newRequest("alice")
	request.Callback = func(ctx context.Context) (interface{}, error) {
		return nil, cause
	}
	request, err := svc.Create(ctx, request)
	require.NoError(t, err)

	confirmation, err := svc.Confirm(ctx, request.ID, "alice")
	assert.NoError(t, err, "callback failures are captured, not propagated")
	assert.False(t, confirmation.Success)
	assert.ErrorIs(t, confirmation.Err, cause)

	// the failed confirmation still consumed the entry
	pending, _ := svc.Get(ctx, request.ID)
	assert.Nil(t, pending)
}

func TestCancel(t *testing.T) {
	stubNow(t)
	ctx := context.Background()
	svc := memApproval.New()

	callbackRan := false
	request := newRequest("alice")
	request.Callback = func(ctx context.Context) (interface{}, error) {
		callbackRan = true
		return nil, nil
	}
	request, err := svc.Create(ctx, request)
	require.NoError(t, err)

	ok, err := svc.Cancel(ctx, request.ID, "bob")
	assert.NoError(t, err)
	assert.False(t, ok, "only the requester may cancel")

	ok, err = svc.Cancel(ctx, request.ID, "alice")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, callbackRan, "cancel never runs the callback")

	ok, _ = svc.Cancel(ctx, request.ID, "alice")
	assert.False(t, ok)
}

func TestLazyAndSweptExpiryAgree(t *testing.T) {
	now := stubNow(t)
	ctx := context.Background()
	svc := memApproval.New(memApproval.WithTTL(15 * time.Minute))

	lazy, err := svc.Create(ctx, newRequest("alice"))
	require.NoError(t, err)
	swept, err := svc.Create(ctx, newRequest("alice"))
	require.NoError(t, err)

	*now = now.Add(15*time.Minute + time.Second)

	// lazy path: Get deletes and reports absent
	got, err := svc.Get(ctx, lazy.ID)
	assert.NoError(t, err)
	assert.Nil(t, got)
	_, err = svc.Confirm(ctx, lazy.ID, "alice")
	assert.ErrorIs(t, err, approval.ErrNotFoundOrExpired)

	// sweep path: the remaining expired entry is removed independently
	removed, err := svc.Sweep(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, removed)
	got, _ = svc.Get(ctx, swept.ID)
	assert.Nil(t, got)

	// nothing left to sweep
	removed, _ = svc.Sweep(ctx)
	assert.Equal(t, 0, removed)
}

func TestListForUser(t *testing.T) {
	now := stubNow(t)
	ctx := context.Background()
	svc := memApproval.New()

	first, _ := svc.Create(ctx, newRequest("alice"))
	_, _ = svc.Create(ctx, newRequest("bob"))
	expired, _ := svc.Create(ctx, newRequest("alice"))

	// backdate the last entry past its TTL
	expired.ExpiresAt = now.Add(-time.Second)

	listed, err := svc.ListForUser(ctx, "alice")
	assert.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, first.ID, listed[0].ID)
}

func TestConcreteStopInstancesScenario(t *testing.T) {
	stubNow(t)
	ctx := context.Background()
	svc := memApproval.New()

	request := &approval.Request{
		OperationType: "stop-instances",
		ResourceType:  "instance",
		ResourceIDs:   []string{"i-1"},
		RequesterID:   "alice",
	}
	request, err := svc.Create(ctx, request)
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, request.ID, "bob")
	assert.ErrorIs(t, err, approval.ErrNotOwner)
	assert.Contains(t, err.Error(), "only confirm your own")

	confirmation, err := svc.Confirm(ctx, request.ID, "alice")
	assert.NoError(t, err)
	assert.True(t, confirmation.Success)

	pending, _ := svc.ListForUser(ctx, "alice")
	assert.Empty(t, pending)
}

func TestEventFanOutNeverBlocksRegistry(t *testing.T) {
	ctx := context.Background()
	svc := memApproval.New()

	// far more transitions than the event buffer holds, with nobody
	// consuming: every registry operation must still return
	done := make(chan struct{})
	go func() {
		defer close(done)
		var last *approval.Request
		for i := 0; i < 150; i++ {
			request, err := svc.Create(ctx, newRequest("alice"))
			if !assert.NoError(t, err) {
				return
			}
			last = request
		}
		confirmation, err := svc.Confirm(ctx, last.ID, "alice")
		assert.NoError(t, err)
		assert.True(t, confirmation.Success)
		cancelled, err := svc.Cancel(ctx, last.ID, "alice")
		assert.NoError(t, err)
		assert.False(t, cancelled)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("registry blocked once the event buffer filled")
	}
}
