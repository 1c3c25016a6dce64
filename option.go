package opsgate

import (
	"github.com/viant/opsgate/service/approval"
	"github.com/viant/opsgate/service/gateway"
	"github.com/viant/opsgate/service/limiter"
	"github.com/viant/opsgate/service/retrier"
	"github.com/viant/opsgate/service/tracker"
)

// Option customises the engine composition.
type Option func(s *Service)

// WithConfig sets the engine configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithGateway sets the remote gateway confirmed operations run against.
func WithGateway(svc gateway.Service) Option {
	return func(s *Service) { s.gateway = svc }
}

// WithApprovalService replaces the default in-memory approval registry.
func WithApprovalService(svc approval.Service) Option {
	return func(s *Service) { s.approvals = svc }
}

// WithTracker replaces the default command tracker.
func WithTracker(svc *tracker.Service) Option {
	return func(s *Service) { s.tracker = svc }
}

// WithLimiter replaces the default rate limiter.
func WithLimiter(svc *limiter.Service) Option {
	return func(s *Service) { s.limiter = svc }
}

// WithRetrier replaces the default retry executor.
func WithRetrier(svc *retrier.Service) Option {
	return func(s *Service) { s.retrier = svc }
}

// WithClassifier sets the error classifier used by the default retry
// executor, e.g. awsops.Classify. Ignored when WithRetrier is supplied.
func WithClassifier(classifier retrier.Classifier) Option {
	return func(s *Service) { s.classifier = classifier }
}

// WithNotifier sets the completion sink wired into the default tracker.
func WithNotifier(notifier tracker.Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}
