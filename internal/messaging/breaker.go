package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/botfleet/registry/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

type BreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
}

// BreakerMessenger routes sends through a circuit breaker. Permanent API
// errors such as a revoked token belong to a single bot and do not count as
// failures, so one misconfigured bot cannot open the circuit for the rest.
type BreakerMessenger struct {
	inner   domain.Messenger
	breaker *gobreaker.CircuitBreaker[*domain.Delivery]
}

func NewBreakerMessenger(inner domain.Messenger, cfg BreakerConfig, logger *zap.Logger) *BreakerMessenger {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[*domain.Delivery](gobreaker.Settings{
		Name:        "messenger:" + inner.Name(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.Permanent()
		},
	})

	return &BreakerMessenger{inner: inner, breaker: cb}
}

func (m *BreakerMessenger) Name() string { return m.inner.Name() }

func (m *BreakerMessenger) Send(ctx context.Context, msg domain.OutboundMessage) (*domain.Delivery, error) {
	d, err := m.breaker.Execute(func() (*domain.Delivery, error) {
		return m.inner.Send(ctx, msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("messenger %q circuit open: %w", m.inner.Name(), err)
		}
		return nil, err
	}
	return d, nil
}

// State is reported by the /health endpoint.
func (m *BreakerMessenger) State() gobreaker.State {
	return m.breaker.State()
}
