package service

import (
	"context"
	"strings"

	"github.com/botfleet/registry/internal/domain"
	"github.com/google/uuid"
)

// RecentRunsLimit is how many runs PerBot reports alongside the aggregates.
const RecentRunsLimit = 10

// StatsService computes aggregates from the run ledger on every call.
// Nothing is cached or persisted, and no locks are taken.
type StatsService struct {
	bots     domain.BotStore
	runs     domain.RunStore
	services domain.ServiceStore
}

func NewStatsService(bs domain.BotStore, rs domain.RunStore, ss domain.ServiceStore) *StatsService {
	return &StatsService{bots: bs, runs: rs, services: ss}
}

func (s *StatsService) PerBot(ctx context.Context, b *domain.Bot) (*domain.BotStats, error) {
	all, err := s.runs.AllForBot(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	recent, err := s.runs.ListForBot(ctx, b.ID, RecentRunsLimit)
	if err != nil {
		return nil, err
	}

	st := Summarize(all)
	st.BotID = b.ID
	st.TotalPosts = b.TotalPosts
	st.RecentRuns = recent
	return &st, nil
}

func (s *StatsService) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	bots, err := s.bots.List(ctx, false)
	if err != nil {
		return nil, err
	}
	aggs, err := s.runs.AggregateByBot(ctx)
	if err != nil {
		return nil, err
	}
	services, err := s.services.Count(ctx)
	if err != nil {
		return nil, err
	}
	d := BuildDashboard(bots, aggs, services)
	return &d, nil
}

// Summarize derives per-bot ratios. Every ratio is 0 when there are no runs.
func Summarize(runs []domain.Run) domain.BotStats {
	st := domain.BotStats{TotalRuns: len(runs)}
	if len(runs) == 0 {
		return st
	}

	var duration float64
	var posted int
	for _, r := range runs {
		if r.Status == domain.RunStatusSuccess {
			st.SuccessfulRuns++
		}
		duration += r.Duration
		posted += r.Posted
	}
	n := float64(len(runs))
	st.SuccessRate = float64(st.SuccessfulRuns) / n
	st.AvgDuration = duration / n
	st.PostsPerRun = float64(posted) / n
	return st
}

// BuildDashboard aggregates across bots. avg_success_rate is the mean of the
// per-bot success rates over every bot, so a bot with no runs counts as 0.
// Aggregates for bots not in the list are ignored.
func BuildDashboard(bots []domain.Bot, aggs []domain.RunAggregate, servicesCount int) domain.DashboardStats {
	byBot := make(map[uuid.UUID]domain.RunAggregate, len(aggs))
	for _, a := range aggs {
		byBot[a.BotID] = a
	}

	d := domain.DashboardStats{
		TotalBots:     len(bots),
		ServicesCount: servicesCount,
	}
	cities := make(map[string]struct{})
	var rateSum float64
	for _, b := range bots {
		if b.Config.IsActive {
			d.ActiveBots++
		}
		d.TotalPosts += b.TotalPosts
		cities[strings.ToLower(strings.TrimSpace(b.Config.CityName))] = struct{}{}

		a, ok := byBot[b.ID]
		if !ok || a.TotalRuns == 0 {
			continue
		}
		d.TotalRuns += a.TotalRuns
		d.SuccessfulRuns += a.SuccessfulRuns
		rateSum += float64(a.SuccessfulRuns) / float64(a.TotalRuns)
	}
	d.CitiesCovered = len(cities)
	if len(bots) > 0 {
		d.AvgSuccessRate = rateSum / float64(len(bots))
	}
	return d
}
