package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/botfleet/registry/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultRunsLimit = 10
	MaxRunsLimit     = 100
)

var (
	ErrBotNotFound          = domain.NotFoundError("bot not found")
	ErrBotAlreadyRunning    = domain.ConflictError("bot is already running")
	ErrBotInactive          = domain.ConflictError("bot is not active")
	ErrMessengerUnavailable = errors.New("messaging is not configured")
	ErrDeliveryFailed       = errors.New("message delivery failed")
)

// BotService is the bot registry. It owns configuration records and every
// status transition.
type BotService struct {
	bots      domain.BotStore
	runs      domain.RunStore
	stats     *StatsService
	messenger domain.Messenger
	logger    *zap.Logger
	now       func() time.Time
}

func NewBotService(bs domain.BotStore, rs domain.RunStore, stats *StatsService, logger *zap.Logger) *BotService {
	return &BotService{
		bots:   bs,
		runs:   rs,
		stats:  stats,
		logger: logger,
		now:    time.Now,
	}
}

// SetMessenger wires the outbound messaging capability. Without one,
// SendMessage fails with ErrMessengerUnavailable.
func (s *BotService) SetMessenger(m domain.Messenger) {
	s.messenger = m
}

func mapBotErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return ErrBotNotFound
	}
	return err
}

func (s *BotService) Create(ctx context.Context, cfg domain.BotConfig) (*domain.Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &domain.Bot{
		Config: cfg,
		Status: domain.BotStatusIdle,
	}
	if err := s.bots.Create(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info("bot registered", zap.String("bot_id", b.ID.String()), zap.String("name", cfg.Name))
	return b, nil
}

func (s *BotService) Get(ctx context.Context, id uuid.UUID) (*domain.Bot, error) {
	b, err := s.bots.GetByID(ctx, id)
	if err != nil {
		return nil, mapBotErr(err)
	}
	return b, nil
}

func (s *BotService) List(ctx context.Context, activeOnly bool) ([]domain.Bot, error) {
	return s.bots.List(ctx, activeOnly)
}

// Update replaces the configuration. Status, counters and runs are untouched.
func (s *BotService) Update(ctx context.Context, id uuid.UUID, cfg domain.BotConfig) (*domain.Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, err := s.bots.UpdateConfig(ctx, id, cfg)
	if err != nil {
		return nil, mapBotErr(err)
	}
	return b, nil
}

// Delete removes the bot together with its run history.
func (s *BotService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.bots.Delete(ctx, id); err != nil {
		return mapBotErr(err)
	}
	s.logger.Info("bot deleted", zap.String("bot_id", id.String()))
	return nil
}

// SetStatus is the administrative override: any state may move to any state.
func (s *BotService) SetStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) (*domain.Bot, error) {
	if !domain.ValidBotStatus(status) {
		return nil, domain.NewValidationError("status must be one of idle, running, error")
	}
	next := domain.BotStatus(status)

	var msg *string
	switch next {
	case domain.BotStatusError:
		if errorMessage != nil && strings.TrimSpace(*errorMessage) != "" {
			m := strings.TrimSpace(*errorMessage)
			msg = &m
		}
	case domain.BotStatusIdle, domain.BotStatusRunning:
		msg = nil
	}

	b, err := s.bots.SetStatus(ctx, id, next, msg)
	if err != nil {
		return nil, mapBotErr(err)
	}
	s.logger.Info("bot status overridden",
		zap.String("bot_id", id.String()),
		zap.String("status", status))
	return b, nil
}

// TriggerRun flips the bot into running if nobody else already has. It does not
// execute the run; the caller gets the configuration snapshot to act on.
func (s *BotService) TriggerRun(ctx context.Context, id uuid.UUID) (*domain.TriggerResult, error) {
	b, err := s.bots.TryStartRun(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil, ErrBotNotFound
		case errors.Is(err, domain.ErrConflict):
			return nil, ErrBotAlreadyRunning
		}
		return nil, err
	}
	s.logger.Info("bot run accepted", zap.String("bot_id", id.String()))
	return &domain.TriggerResult{
		Accepted: true,
		BotID:    b.ID,
		Config:   b.Config,
	}, nil
}

// RecordRunResult appends the run and applies its outcome to the bot. It is
// the only path by which a bot leaves running apart from SetStatus.
func (s *BotService) RecordRunResult(ctx context.Context, id uuid.UUID, res domain.RunResult) (*domain.Run, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}
	run := res.NewRun(id, s.now().UTC())

	b, err := s.bots.CompleteRun(ctx, run)
	if err != nil {
		return nil, mapBotErr(err)
	}
	s.logger.Info("bot run recorded",
		zap.String("bot_id", id.String()),
		zap.String("run_id", run.ID.String()),
		zap.String("outcome", string(run.Status)),
		zap.Int("posted", run.Posted),
		zap.Int64("total_posts", b.TotalPosts),
		zap.String("status", string(b.Status)))
	return run, nil
}

// Runs returns the most recent runs, newest first. A bot without runs, or one
// that no longer exists, yields an empty list.
func (s *BotService) Runs(ctx context.Context, id uuid.UUID, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = DefaultRunsLimit
	}
	if limit > MaxRunsLimit {
		limit = MaxRunsLimit
	}
	return s.runs.ListForBot(ctx, id, limit)
}

func (s *BotService) Stats(ctx context.Context, id uuid.UUID) (*domain.BotStats, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.stats.PerBot(ctx, b)
}

// SendMessage delivers text to the bot's configured chat using its own token.
func (s *BotService) SendMessage(ctx context.Context, id uuid.UUID, text string) (*domain.Delivery, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.NewValidationError("text is required")
	}
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Config.IsActive {
		return nil, ErrBotInactive
	}
	if s.messenger == nil {
		return nil, ErrMessengerUnavailable
	}

	d, err := s.messenger.Send(ctx, domain.OutboundMessage{
		Token:  b.Config.BotToken,
		ChatID: b.Config.TelegramChatID,
		Text:   text,
	})
	if err != nil {
		s.logger.Warn("message delivery failed",
			zap.String("bot_id", id.String()),
			zap.String("provider", s.messenger.Name()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return d, nil
}
