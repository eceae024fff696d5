// Package messaging delivers outbound bot messages. The Telegram client is
// wrapped in a circuit breaker so an unreachable API fails fast.
package messaging

import (
	"fmt"
	"time"

	"github.com/botfleet/registry/internal/domain"
	"go.uber.org/zap"
)

const (
	ProviderTelegram = "telegram"
	ProviderMock     = "mock"

	DefaultTelegramAPIURL = "https://api.telegram.org"
)

type Config struct {
	Provider       string
	TelegramAPIURL string
	Timeout        time.Duration
	RetryCount     int
	Breaker        BreakerConfig
}

// NewMessenger builds the configured provider. Telegram is always wrapped in a
// circuit breaker.
func NewMessenger(cfg Config, logger *zap.Logger) (domain.Messenger, error) {
	switch cfg.Provider {
	case ProviderTelegram, "":
		return NewBreakerMessenger(NewTelegram(cfg.TelegramAPIURL, cfg.Timeout, cfg.RetryCount), cfg.Breaker, logger), nil
	case ProviderMock:
		return NewMockMessenger(), nil
	default:
		return nil, fmt.Errorf("unsupported messenger provider: %s", cfg.Provider)
	}
}
