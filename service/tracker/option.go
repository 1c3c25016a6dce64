package tracker

import (
	"github.com/viant/opsgate/service/limiter"
	"github.com/viant/opsgate/service/messaging"
	"github.com/viant/opsgate/service/retrier"
)

type Option func(*Service)

// WithNotifier sets the completion sink invoked on every terminal
// transition. A nil notifier leaves only event-queue delivery.
func WithNotifier(notifier Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithLimiter routes status queries through the admission gate.
func WithLimiter(gate *limiter.Service) Option {
	return func(s *Service) { s.limiter = gate }
}

// WithRetrier wraps each status query with retry semantics.
func WithRetrier(executor *retrier.Service) Option {
	return func(s *Service) { s.retrier = executor }
}

// WithQueue attaches an externally owned completion-event queue.
func WithQueue(queue messaging.Queue[Event]) Option {
	return func(s *Service) {
		if queue != nil {
			s.events = queue
		}
	}
}

// WithConfig overrides tick cadence and default command timeout.
func WithConfig(config Config) Option {
	return func(s *Service) {
		if config.TickInterval > 0 {
			s.config.TickInterval = config.TickInterval
		}
		if config.DefaultTimeout > 0 {
			s.config.DefaultTimeout = config.DefaultTimeout
		}
	}
}
