package domain

import "github.com/google/uuid"

// BotStats is derived from the run ledger on every call and never stored.
type BotStats struct {
	BotID          uuid.UUID `json:"bot_id"`
	TotalRuns      int       `json:"total_runs"`
	SuccessfulRuns int       `json:"successful_runs"`
	SuccessRate    float64   `json:"success_rate"`
	AvgDuration    float64   `json:"avg_duration"`
	PostsPerRun    float64   `json:"posts_per_run"`
	TotalPosts     int64     `json:"total_posts"`
	RecentRuns     []Run     `json:"recent_runs"`
}

type DashboardStats struct {
	TotalBots      int     `json:"total_bots"`
	ActiveBots     int     `json:"active_bots"`
	TotalRuns      int     `json:"total_runs"`
	SuccessfulRuns int     `json:"successful_runs"`
	AvgSuccessRate float64 `json:"avg_success_rate"`
	ServicesCount  int     `json:"services_count"`
	TotalPosts     int64   `json:"total_posts"`
	CitiesCovered  int     `json:"cities_covered"`
}
