// Seed script for loading bots and services into the registry.
// Run with: go run ./scripts/seed.go [seed.yaml]
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/botfleet/registry/internal/api"
	"github.com/botfleet/registry/internal/config"
	"github.com/botfleet/registry/internal/domain"
	"github.com/botfleet/registry/internal/service"
	"github.com/botfleet/registry/internal/store/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Bots     []seedBot     `yaml:"bots"`
	Services []seedService `yaml:"services"`
}

// seedBot embeds the configuration so YAML keys match the API payload.
type seedBot struct {
	domain.BotConfig `yaml:",inline"`
}

type seedService struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

func (b *seedBot) UnmarshalYAML(node *yaml.Node) error {
	b.BotConfig = domain.DefaultBotConfig()
	type plain seedBot
	return node.Decode((*plain)(b))
}

func main() {
	_ = config.Load()

	path := "scripts/seed.example.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read seed file: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		log.Fatalf("Failed to parse seed file: %v", err)
	}

	ctx := context.Background()
	stores, closeFn := connect(ctx)
	defer closeFn()

	logger := zap.NewNop()
	stats := service.NewStatsService(stores.Bots, stores.Runs, stores.Services)
	bots := service.NewBotService(stores.Bots, stores.Runs, stats, logger)
	dir := service.NewDirectoryService(stores.Services, logger)

	for _, b := range seed.Bots {
		bot, err := bots.Create(ctx, b.BotConfig)
		if err != nil {
			log.Printf("Warning: Failed to create bot %q: %v", b.Name, err)
			continue
		}
		fmt.Printf("Created bot: %s (%s, %s)\n", bot.ID, bot.Config.Name, bot.Config.CityName)
	}

	for _, s := range seed.Services {
		svc, err := dir.Register(ctx, s.Name, s.URL, s.Description)
		if err != nil {
			log.Printf("Warning: Failed to register service %q: %v", s.Name, err)
			continue
		}
		fmt.Printf("Registered service: %s (%s)\n", svc.ID, svc.Name)
	}

	fmt.Println("Seed complete")
}

func connect(ctx context.Context) (api.Stores, func()) {
	if config.StoreDriver() == "postgres" {
		pool, err := pgxpool.New(ctx, config.DatabaseURL())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := pool.Ping(ctx); err != nil {
			log.Fatalf("Failed to ping database: %v", err)
		}
		fmt.Println("Connected to postgres")
		return api.PostgresStores(pool), pool.Close
	}

	db, err := sqlite.Open(ctx, config.SQLitePath())
	if err != nil {
		log.Fatalf("Failed to open sqlite database: %v", err)
	}
	fmt.Printf("Opened sqlite database %s\n", config.SQLitePath())
	return api.SQLiteStores(db), func() { _ = db.Close() }
}
