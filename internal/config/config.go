package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by BOTREG_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("BOTREG_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// StoreDriver returns the persistence backend.
// Defaults to "postgres" when DATABASE_URL is set and "sqlite" otherwise.
// Valid values: postgres, sqlite
func StoreDriver() string {
	d := strings.ToLower(os.Getenv("STORE_DRIVER"))
	if d != "" {
		return d
	}
	if DatabaseURL() != "" {
		return "postgres"
	}
	return "sqlite"
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func SQLitePath() string {
	p := os.Getenv("SQLITE_PATH")
	if p == "" {
		return "botreg.db"
	}
	return p
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// APIKey is the shared bearer token for /v1. Empty disables auth.
func APIKey() string {
	return os.Getenv("API_KEY")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// LogFile is an optional path that receives a rotated copy of the logs.
func LogFile() string {
	return os.Getenv("LOG_FILE")
}

// MessengerProvider returns the outbound messaging provider.
// Defaults to "telegram" if not set.
// Valid values: telegram, mock
func MessengerProvider() string {
	p := os.Getenv("MESSENGER_PROVIDER")
	if p == "" {
		return "telegram"
	}
	return p
}

func TelegramAPIURL() string {
	u := os.Getenv("TELEGRAM_API_URL")
	if u == "" {
		return "https://api.telegram.org"
	}
	return u
}

// RunStaleAfter is how long a bot may stay running before the reaper marks it
// failed. Zero disables the reaper. Defaults to 1h.
func RunStaleAfter() time.Duration {
	v := os.Getenv("RUN_STALE_AFTER")
	if v == "" {
		return time.Hour
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return time.Hour
	}
	return d
}

// ReaperSchedule is a cron expression, descriptor or duration.
// Defaults to "@every 5m" if not set.
func ReaperSchedule() string {
	s := os.Getenv("REAPER_SCHEDULE")
	if s == "" {
		return "@every 5m"
	}
	return s
}
