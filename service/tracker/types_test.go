package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	testCases := []struct {
		text   string
		expect Status
	}{
		{text: "Success", expect: StatusSuccess},
		{text: "InProgress", expect: StatusInProgress},
		{text: "Delayed", expect: StatusDelayed},
		{text: "Cancelling", expect: StatusCancelling},
		{text: "Failed", expect: StatusFailed},
		{text: "Cancelled", expect: StatusCancelled},
		{text: "Canceled", expect: StatusCancelled},
		{text: "TimedOut", expect: StatusExecutionTimedOut},
		{text: "Delivery Timed Out", expect: StatusDeliveryTimedOut},
		{text: "Undeliverable", expect: StatusUndeliverable},
		{text: "Terminated", expect: StatusTerminated},
		// unknown strings never crash the poll loop
		{text: "SomethingNew", expect: StatusPending},
		{text: "", expect: StatusPending},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, ParseStatus(testCase.text), "status %q", testCase.text)
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusSuccess, StatusFailed, StatusCancelled,
		StatusDeliveryTimedOut, StatusExecutionTimedOut, StatusUndeliverable, StatusTerminated}
	for _, status := range terminal {
		assert.True(t, status.Terminal(), "status %s", status)
	}
	for _, status := range []Status{StatusPending, StatusInProgress, StatusDelayed, StatusCancelling} {
		assert.False(t, status.Terminal(), "status %s", status)
	}
}

func TestNextPollDelayMonotoneAndCapped(t *testing.T) {
	delay := initialPollDelay
	previous := delay
	for i := 0; i < 20; i++ {
		delay = nextPollDelay(delay)
		assert.GreaterOrEqual(t, delay, previous)
		assert.LessOrEqual(t, delay, maxPollDelay)
		previous = delay
	}
	assert.Equal(t, maxPollDelay, delay, "sequence converges to the cap")
}

func TestSuccessRate(t *testing.T) {
	workflow := &WorkflowInfo{ExpectedCount: 3, CompletedCount: 3, SuccessCount: 2, FailedCount: 1}
	assert.Equal(t, 66.67, workflow.SuccessRate())
	assert.True(t, workflow.Complete())

	empty := &WorkflowInfo{ExpectedCount: 3}
	assert.Equal(t, 0.0, empty.SuccessRate())
	assert.False(t, empty.Complete())

	// overshoot still counts as complete
	overshoot := &WorkflowInfo{ExpectedCount: 2, CompletedCount: 3, SuccessCount: 3}
	assert.True(t, overshoot.Complete())
}

func TestSanitizeParameters(t *testing.T) {
	parameters := map[string]interface{}{
		"commands":   []string{"systemctl restart nginx"},
		"Password":   "hunter2",
		"apiToken":   "abc",
		"nested":     map[string]interface{}{"dbSecret": "x", "region": "us-east-1"},
		"timeoutSec": 60,
	}
	sanitized := sanitizeParameters(parameters)
	assert.Equal(t, "****", sanitized["Password"])
	assert.Equal(t, "****", sanitized["apiToken"])
	assert.Equal(t, []string{"systemctl restart nginx"}, sanitized["commands"])
	assert.Equal(t, 60, sanitized["timeoutSec"])
	nested := sanitized["nested"].(map[string]interface{})
	assert.Equal(t, "****", nested["dbSecret"])
	assert.Equal(t, "us-east-1", nested["region"])

	// original is untouched
	assert.Equal(t, "hunter2", parameters["Password"])
	assert.Nil(t, sanitizeParameters(nil))
}

func TestSanitizeParametersTime(t *testing.T) {
	// time-typed values survive the copy untouched
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sanitized := sanitizeParameters(map[string]interface{}{"startedAt": now})
	assert.Equal(t, now, sanitized["startedAt"])
}
