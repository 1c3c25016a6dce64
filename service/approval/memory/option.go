package memory

import (
	"time"

	"github.com/viant/opsgate/service/approval"
	"github.com/viant/opsgate/service/messaging"
)

type Option func(*service)

// WithTTL overrides the confirmation timeout applied to new requests.
func WithTTL(ttl time.Duration) Option {
	return func(s *service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithQueue attaches an externally owned event queue so that several
// components can share one fan-out channel.
func WithQueue(queue messaging.Queue[approval.Event]) Option {
	return func(s *service) {
		if queue != nil {
			s.events = queue
		}
	}
}
