package domain

import (
	"context"
	"time"
)

// OutboundMessage is addressed with the bot's own credentials and target.
type OutboundMessage struct {
	Token  string
	ChatID string
	Text   string
}

type Delivery struct {
	ID       string    `json:"delivery_id"`
	Provider string    `json:"provider"`
	SentAt   time.Time `json:"sent_at"`
}

// Messenger delivers a message to a bot's configured destination.
type Messenger interface {
	Send(ctx context.Context, msg OutboundMessage) (*Delivery, error)
	Name() string
}
