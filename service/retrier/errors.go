package retrier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// TimeoutError wraps a remote-call failure whose root cause was a timeout,
// surfaced once retries are exhausted.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after retries: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ConnectionError wraps a transport or protocol level failure surfaced once
// retries are exhausted.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s failed after retries: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError marks an authentication or authorization failure. It is never
// retried.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s not authorized: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsTimeout reports whether err's root cause was a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "timeout") || strings.Contains(text, "timed out")
}
