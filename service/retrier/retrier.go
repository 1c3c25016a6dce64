package retrier

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/viant/opsgate/internal/clock"
)

// Class is the retry disposition of a classified error.
type Class int

const (
	// Retryable errors are transient; the call is repeated with backoff.
	Retryable Class = iota
	// NonRetryable errors terminate the attempt loop immediately.
	NonRetryable
	// Auth errors terminate immediately and must never be retried, even
	// when attempts remain.
	Auth
)

// Classifier maps a remote-call error to its retry disposition.
type Classifier func(err error) Class

// retryableStatuses are the transport-level statuses worth another attempt.
var retryableStatuses = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// ClassifyStatus maps an HTTP status code to a retry class. Protocol-level
// rate-limit codes embedded in otherwise-successful responses should be
// classified by the caller before falling back to the status code.
func ClassifyStatus(code int) Class {
	switch {
	case code == 401 || code == 403:
		return Auth
	case retryableStatuses[code]:
		return Retryable
	default:
		return NonRetryable
	}
}

// DefaultClassifier is a text-based fallback used when no vendor-specific
// classifier is configured.
func DefaultClassifier(err error) Class {
	if err == nil {
		return NonRetryable
	}
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "accessdenied"),
		strings.Contains(text, "unauthorized"),
		strings.Contains(text, "forbidden"),
		strings.Contains(text, "invalid credentials"):
		return Auth
	case strings.Contains(text, "throttling"),
		strings.Contains(text, "too many requests"),
		strings.Contains(text, "rate limited"),
		strings.Contains(text, "timeout"),
		strings.Contains(text, "timed out"),
		strings.Contains(text, "connection"),
		strings.Contains(text, "unavailable"):
		return Retryable
	default:
		return NonRetryable
	}
}

// Config holds retry settings.
type Config struct {
	MaxRetries int           `json:"maxRetries" yaml:"maxRetries"`
	BaseDelay  time.Duration `json:"baseDelay" yaml:"baseDelay"`
	MaxDelay   time.Duration `json:"maxDelay" yaml:"maxDelay"`
	Multiplier float64       `json:"multiplier" yaml:"multiplier"`
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
}

// Service wraps an arbitrary remote invocation with classification-aware
// retry and jittered exponential backoff.
type Service struct {
	config   Config
	classify Classifier
	jitterFn func() float64
}

// New creates a retry executor. A nil classifier falls back to
// DefaultClassifier.
func New(config Config, classifier Classifier) *Service {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultConfig().BaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultConfig().MaxDelay
	}
	if config.Multiplier <= 1 {
		config.Multiplier = DefaultConfig().Multiplier
	}
	if classifier == nil {
		classifier = DefaultClassifier
	}
	return &Service{config: config, classify: classifier, jitterFn: rand.Float64}
}

// Execute runs call, retrying transient failures. Non-retryable and auth
// errors propagate immediately. Once attempts are exhausted the last error is
// wrapped as *TimeoutError when the underlying failure was a timeout,
// otherwise as *ConnectionError.
func (s *Service) Execute(ctx context.Context, op string, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}
		switch s.classify(lastErr) {
		case NonRetryable:
			return lastErr
		case Auth:
			var authErr *AuthError
			if errors.As(lastErr, &authErr) {
				return lastErr
			}
			return &AuthError{Op: op, Err: lastErr}
		}
		if attempt >= s.config.MaxRetries {
			break
		}
		if err := clock.Sleep(ctx, s.backoff(attempt)); err != nil {
			return err
		}
	}
	if IsTimeout(lastErr) {
		return &TimeoutError{Op: op, Err: lastErr}
	}
	return &ConnectionError{Op: op, Err: lastErr}
}

// backoff computes min(maxDelay, base*multiplier^attempt) with a uniform
// ±25% jitter, floored at 100ms so the loop never hot-spins.
func (s *Service) backoff(attempt int) time.Duration {
	delay := float64(s.config.BaseDelay) * math.Pow(s.config.Multiplier, float64(attempt))
	if max := float64(s.config.MaxDelay); delay > max {
		delay = max
	}
	jitter := 1 + (s.jitterFn()*0.5 - 0.25)
	delay *= jitter
	if floor := float64(100 * time.Millisecond); delay < floor {
		delay = floor
	}
	return time.Duration(delay)
}
