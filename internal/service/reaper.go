package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/botfleet/registry/internal/domain"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultReaperSchedule = "@every 5m"
	StaleRunMessage       = "run timed out"

	sweepTimeout = 30 * time.Second
)

// ReaperService moves bots that have been running longer than the stale
// threshold into error. A bot whose worker died never reports a result, and
// would otherwise stay in running forever and reject every trigger.
type ReaperService struct {
	bots       domain.BotStore
	logger     *zap.Logger
	staleAfter time.Duration
	schedule   cron.Schedule
	now        func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

// NewReaperService parses expr as a cron expression or descriptor, falling back
// to a plain duration such as "90s".
func NewReaperService(bs domain.BotStore, staleAfter time.Duration, expr string, logger *zap.Logger) (*ReaperService, error) {
	if staleAfter <= 0 {
		return nil, fmt.Errorf("stale threshold must be positive, got %s", staleAfter)
	}
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	return &ReaperService{
		bots:       bs,
		logger:     logger,
		staleAfter: staleAfter,
		schedule:   sched,
		now:        time.Now,
	}, nil
}

func ParseSchedule(expr string) (cron.Schedule, error) {
	if expr == "" {
		expr = DefaultReaperSchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if sched, err := parser.Parse(expr); err == nil {
		return sched, nil
	}
	d, err := time.ParseDuration(expr)
	if err != nil {
		return nil, fmt.Errorf("not a valid cron expression or duration: %q", expr)
	}
	if d <= 0 {
		return nil, fmt.Errorf("duration must be positive: %q", expr)
	}
	return cron.Every(d), nil
}

// Start schedules sweeps in the background. Calling it twice is a no-op.
func (s *ReaperService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron = cron.New()
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("stale run sweep failed", zap.Error(err))
		}
	}))
	s.cron.Start()
	s.started = true
	s.logger.Info("stale run reaper started", zap.Duration("stale_after", s.staleAfter))
}

// Stop waits for an in-flight sweep to finish.
func (s *ReaperService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info("stale run reaper stopped")
}

// Sweep runs one pass and returns the ids of the bots it moved to error.
func (s *ReaperService) Sweep(ctx context.Context) ([]uuid.UUID, error) {
	cutoff := s.now().Add(-s.staleAfter)
	ids, err := s.bots.MarkStale(ctx, cutoff, StaleRunMessage)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		s.logger.Warn("bot run timed out", zap.String("bot_id", id.String()), zap.Time("cutoff", cutoff))
	}
	return ids, nil
}
