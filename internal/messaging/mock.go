package messaging

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/botfleet/registry/internal/domain"
)

// MockMessenger records messages in memory instead of delivering them. It is
// used for local development and demos.
type MockMessenger struct {
	mu   sync.Mutex
	sent []domain.OutboundMessage
}

func NewMockMessenger() *MockMessenger {
	return &MockMessenger{}
}

func (m *MockMessenger) Name() string { return ProviderMock }

func (m *MockMessenger) Send(ctx context.Context, msg domain.OutboundMessage) (*domain.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return &domain.Delivery{
		ID:       strconv.Itoa(len(m.sent)),
		Provider: ProviderMock,
		SentAt:   time.Now().UTC(),
	}, nil
}

func (m *MockMessenger) Sent() []domain.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutboundMessage(nil), m.sent...)
}
