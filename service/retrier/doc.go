// Package retrier wraps remote invocations with classification-aware retry:
// transient failures are repeated with jittered exponential backoff while
// authentication and permanent failures propagate immediately.
package retrier
