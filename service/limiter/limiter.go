package limiter

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/viant/opsgate/internal/clock"
)

// recoveryDelay is imposed after a remote call reported throttling, on top of
// the regular token wait, so the remote service gets room to recover.
const recoveryDelay = 5 * time.Second

// Config holds token bucket and concurrency gate settings.
type Config struct {
	MaxConcurrent   int     `json:"maxConcurrent" yaml:"maxConcurrent"`
	TokensPerSecond float64 `json:"tokensPerSecond" yaml:"tokensPerSecond"`
	MaxTokens       float64 `json:"maxTokens" yaml:"maxTokens"`
}

// DefaultConfig mirrors the remote service's documented API quota headroom.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:   5,
		TokensPerSecond: 2,
		MaxTokens:       10,
	}
}

// Stats is a point-in-time snapshot of limiter counters.
type Stats struct {
	TotalRequests     uint64  `json:"totalRequests"`
	ThrottledRequests uint64  `json:"throttledRequests"`
	CurrentTokens     float64 `json:"currentTokens"`
	MaxConcurrent     int     `json:"maxConcurrent"`
	TokensPerSecond   float64 `json:"tokensPerSecond"`
}

// Service throttles outbound calls with a rate.Limiter token bucket plus a
// bounded concurrency gate. A single shared instance is safe for use by many
// goroutines.
type Service struct {
	config Config
	bucket *rate.Limiter
	slots  chan struct{}

	mu                sync.Mutex
	totalRequests     uint64
	throttledRequests uint64
}

// New creates a limiter with a full bucket.
func New(config Config) *Service {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if config.TokensPerSecond <= 0 {
		config.TokensPerSecond = DefaultConfig().TokensPerSecond
	}
	if config.MaxTokens < 1 {
		config.MaxTokens = DefaultConfig().MaxTokens
	}
	return &Service{
		config: config,
		bucket: rate.NewLimiter(rate.Limit(config.TokensPerSecond), int(config.MaxTokens)),
		slots:  make(chan struct{}, config.MaxConcurrent),
	}
}

// Guard scopes one admitted call. Callers must invoke Release exactly once,
// passing the call outcome so that throttle responses extend slot occupancy.
type Guard struct {
	service  *Service
	ctx      context.Context
	label    string
	released bool
	mu       sync.Mutex
}

// Acquire blocks until a concurrency slot is free and a token is available,
// in that order. The returned guard owns the slot until released.
func (s *Service) Acquire(ctx context.Context, label string) (*Guard, error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := s.bucket.Wait(ctx); err != nil {
		<-s.slots
		return nil, err
	}
	s.mu.Lock()
	s.totalRequests++
	s.mu.Unlock()
	return &Guard{service: s, ctx: ctx, label: label}, nil
}

// Release frees the concurrency slot. When err signals the remote side
// throttled the call, the slot is held for an extra recovery delay first.
func (g *Guard) Release(err error) {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return
	}
	g.released = true
	g.mu.Unlock()

	if IsThrottle(err) {
		g.service.mu.Lock()
		g.service.throttledRequests++
		g.service.mu.Unlock()
		_ = clock.Sleep(g.ctx, recoveryDelay)
	}
	<-g.service.slots
}

// IsThrottle reports whether err looks like a remote rate-limit response.
func IsThrottle(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "throttling") || strings.Contains(text, "too many requests")
}

// Stats returns a snapshot of the limiter counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TotalRequests:     s.totalRequests,
		ThrottledRequests: s.throttledRequests,
		CurrentTokens:     s.bucket.Tokens(),
		MaxConcurrent:     s.config.MaxConcurrent,
		TokensPerSecond:   s.config.TokensPerSecond,
	}
}
