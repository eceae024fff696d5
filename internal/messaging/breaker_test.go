package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/botfleet/registry/internal/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingMessenger struct {
	err   error
	calls int
}

func (f *failingMessenger) Name() string { return "failing" }

func (f *failingMessenger) Send(ctx context.Context, msg domain.OutboundMessage) (*domain.Delivery, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Delivery{ID: "ok", Provider: "failing"}, nil
}

func TestBreakerMessenger_OpensOnTransientFailures(t *testing.T) {
	inner := &failingMessenger{err: errors.New("connection refused")}
	m := NewBreakerMessenger(inner, BreakerConfig{MaxFailures: 2}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := m.Send(ctx, domain.OutboundMessage{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, m.State())

	_, err := m.Send(ctx, domain.OutboundMessage{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls)
}

func TestBreakerMessenger_IgnoresPermanentErrors(t *testing.T) {
	inner := &failingMessenger{err: &APIError{StatusCode: 401, Description: "Unauthorized"}}
	m := NewBreakerMessenger(inner, BreakerConfig{MaxFailures: 2}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := m.Send(ctx, domain.OutboundMessage{})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
	}
	assert.Equal(t, gobreaker.StateClosed, m.State())
	assert.Equal(t, 5, inner.calls)
}

func TestBreakerMessenger_PassesThrough(t *testing.T) {
	m := NewBreakerMessenger(&failingMessenger{}, BreakerConfig{}, zap.NewNop())
	d, err := m.Send(context.Background(), domain.OutboundMessage{})
	require.NoError(t, err)
	assert.Equal(t, "ok", d.ID)
	assert.Equal(t, "failing", m.Name())
}
