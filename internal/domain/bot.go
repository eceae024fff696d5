package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BotStatus is the lifecycle state of a bot.
type BotStatus string

const (
	BotStatusIdle    BotStatus = "idle"
	BotStatusRunning BotStatus = "running"
	BotStatusError   BotStatus = "error"
)

func ValidBotStatus(s string) bool {
	switch BotStatus(s) {
	case BotStatusIdle, BotStatusRunning, BotStatusError:
		return true
	}
	return false
}

// Configuration defaults applied when a field is omitted.
const (
	DefaultNewsLanguage        = "en"
	DefaultPostIntervalMinutes = 30
	DefaultMaxPostsPerRun      = 5
)

// BotConfig is replaced as a whole on every update.
type BotConfig struct {
	Name                  string  `json:"name" yaml:"name"`
	CityName              string  `json:"city_name" yaml:"city_name"`
	CountryCode           string  `json:"country_code" yaml:"country_code"`
	BotToken              string  `json:"bot_token" yaml:"bot_token"`
	TelegramChatID        string  `json:"telegram_chat_id" yaml:"telegram_chat_id"`
	NewsLanguage          string  `json:"news_language" yaml:"news_language"`
	PostIntervalMinutes   int     `json:"post_interval_minutes" yaml:"post_interval_minutes"`
	MaxPostsPerRun        int     `json:"max_posts_per_run" yaml:"max_posts_per_run"`
	OpenAIAPIKey          *string `json:"openai_api_key,omitempty" yaml:"openai_api_key"`
	GoogleTranslateAPIKey *string `json:"google_translate_api_key,omitempty" yaml:"google_translate_api_key"`
	NewsAPIKey            *string `json:"newsapi_key,omitempty" yaml:"newsapi_key"`
	IsActive              bool    `json:"is_active" yaml:"is_active"`
}

// DefaultBotConfig returns a config with every optional field at its default.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		NewsLanguage:        DefaultNewsLanguage,
		PostIntervalMinutes: DefaultPostIntervalMinutes,
		MaxPostsPerRun:      DefaultMaxPostsPerRun,
		IsActive:            true,
	}
}

// Validate reports every missing required field and every out-of-range value.
func (c BotConfig) Validate() error {
	var problems []string
	required := []struct {
		field string
		value string
	}{
		{"name", c.Name},
		{"city_name", c.CityName},
		{"country_code", c.CountryCode},
		{"bot_token", c.BotToken},
		{"telegram_chat_id", c.TelegramChatID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, r.field+" is required")
		}
	}
	if strings.TrimSpace(c.NewsLanguage) == "" {
		problems = append(problems, "news_language must not be empty")
	}
	if c.PostIntervalMinutes <= 0 {
		problems = append(problems, "post_interval_minutes must be positive")
	}
	if c.MaxPostsPerRun <= 0 {
		problems = append(problems, "max_posts_per_run must be positive")
	}
	if len(problems) > 0 {
		return NewValidationError(problems...)
	}
	return nil
}

type Bot struct {
	ID           uuid.UUID  `json:"id"`
	Config       BotConfig  `json:"config"`
	Status       BotStatus  `json:"status"`
	LastRun      *time.Time `json:"last_run"`
	TotalPosts   int64      `json:"total_posts"`
	ErrorMessage *string    `json:"error_message"`
	// RunStartedAt is set when the bot enters running and cleared when it
	// leaves. Config edits do not move it.
	RunStartedAt *time.Time `json:"run_started_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TriggerResult is handed to the external executor once a run is accepted.
type TriggerResult struct {
	Accepted bool      `json:"accepted"`
	BotID    uuid.UUID `json:"bot_id"`
	Config   BotConfig `json:"config"`
}
