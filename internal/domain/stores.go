package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BotStore interface {
	Create(ctx context.Context, b *Bot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bot, error)
	List(ctx context.Context, activeOnly bool) ([]Bot, error)
	UpdateConfig(ctx context.Context, id uuid.UUID, cfg BotConfig) (*Bot, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status BotStatus, errorMessage *string) (*Bot, error)

	// TryStartRun moves a bot that is not running into running with a single
	// conditional write. Returns ErrConflict if the bot is already running.
	TryStartRun(ctx context.Context, id uuid.UUID) (*Bot, error)
	// CompleteRun appends run to the ledger and applies its outcome to the bot
	// in one transaction.
	CompleteRun(ctx context.Context, run *Run) (*Bot, error)
	// MarkStale moves bots whose current run started before cutoff into error.
	MarkStale(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error)
}

// RunStore is the append-only run ledger.
type RunStore interface {
	Append(ctx context.Context, r *Run) error
	ListForBot(ctx context.Context, botID uuid.UUID, limit int) ([]Run, error)
	AllForBot(ctx context.Context, botID uuid.UUID) ([]Run, error)
	AggregateByBot(ctx context.Context) ([]RunAggregate, error)
}

type ServiceStore interface {
	Create(ctx context.Context, s *Service) error
	List(ctx context.Context) ([]Service, error)
	Count(ctx context.Context) (int, error)
	Heartbeat(ctx context.Context, id uuid.UUID, status ServiceStatus) error
}
