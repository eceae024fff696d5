package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/botfleet/registry/internal/api/handlers"
	mw "github.com/botfleet/registry/internal/api/middleware"
	"github.com/botfleet/registry/internal/buildconfig"
	"github.com/botfleet/registry/internal/config"
	"github.com/botfleet/registry/internal/domain"
	"github.com/botfleet/registry/internal/messaging"
	"github.com/botfleet/registry/internal/service"
	"github.com/botfleet/registry/internal/store"
	"github.com/botfleet/registry/internal/store/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores bundles one persistence backend.
type Stores struct {
	Bots     domain.BotStore
	Runs     domain.RunStore
	Services domain.ServiceStore
	DB       Pinger
}

func PostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Bots:     store.NewBotStore(pool),
		Runs:     store.NewRunStore(pool),
		Services: store.NewServiceStore(pool),
		DB:       pool,
	}
}

func SQLiteStores(db *sqlite.DB) Stores {
	return Stores{
		Bots:     sqlite.NewBotStore(db.DB),
		Runs:     sqlite.NewRunStore(db.DB),
		Services: sqlite.NewServiceStore(db.DB),
		DB:       db,
	}
}

// App holds the router and background services for lifecycle management.
type App struct {
	Router    *chi.Mux
	Bots      *service.BotService
	Reaper    *service.ReaperService
	metrics   *mw.MetricsCollector
	startTime time.Time
	stopCh    chan struct{}
}

func NewApp(stores Stores, logger *zap.Logger) *App {
	// Services
	statsSvc := service.NewStatsService(stores.Bots, stores.Runs, stores.Services)
	botSvc := service.NewBotService(stores.Bots, stores.Runs, statsSvc, logger)
	directorySvc := service.NewDirectoryService(stores.Services, logger)

	// Outbound messaging via provider factory
	provider := config.MessengerProvider()
	messenger, err := messaging.NewMessenger(messaging.Config{
		Provider:       provider,
		TelegramAPIURL: config.TelegramAPIURL(),
		RetryCount:     2,
	}, logger)
	if err != nil {
		logger.Warn("messenger initialization failed", zap.String("provider", provider), zap.Error(err))
	} else {
		botSvc.SetMessenger(messenger)
		logger.Info("messenger initialized", zap.String("provider", provider))
	}

	// Stale run reaper
	var reaper *service.ReaperService
	if staleAfter := config.RunStaleAfter(); staleAfter > 0 {
		reaper, err = service.NewReaperService(stores.Bots, staleAfter, config.ReaperSchedule(), logger)
		if err != nil {
			logger.Warn("stale run reaper disabled", zap.Error(err))
		}
	}

	// Handlers
	botHandler := handlers.NewBotHandler(botSvc, logger)
	runHandler := handlers.NewRunHandler(botSvc, logger)
	dashboardHandler := handlers.NewDashboardHandler(statsSvc, logger)
	directoryHandler := handlers.NewDirectoryHandler(directorySvc, logger)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Bots:      botSvc,
		Reaper:    reaper,
		metrics:   mw.NewMetricsCollector(),
		startTime: time.Now(),
		stopCh:    make(chan struct{}),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)                                                             // Generate/extract request ID first
	r.Use(middleware.RealIP)                                                        // Extract real IP
	r.Use(app.metrics.Middleware)                                                   // Collect metrics
	r.Use(mw.Logging(logger))                                                       // Log all requests
	r.Use(middleware.Recoverer)                                                     // Recover from panics
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst(), app.stopCh)) // Rate limiting

	// Health (no auth)
	r.Get("/health", healthHandler(stores.DB, messenger))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		r.Get("/dashboard", dashboardHandler.Get)

		// Bots
		r.Route("/bots", func(r chi.Router) {
			r.Get("/", botHandler.List)
			r.Post("/", botHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", botHandler.Get)
				r.Put("/", botHandler.Update)
				r.Delete("/", botHandler.Delete)
				r.Put("/status", botHandler.SetStatus)
				r.Get("/stats", botHandler.Stats)
				r.Post("/messages", botHandler.SendMessage)

				// Runs
				r.Post("/run", runHandler.Trigger)
				r.Get("/runs", runHandler.List)
				r.Post("/runs", runHandler.Record)
			})
		})

		// Service directory
		r.Route("/services", func(r chi.Router) {
			r.Get("/", directoryHandler.List)
			r.Post("/", directoryHandler.Register)
			r.Post("/{id}/heartbeat", directoryHandler.Heartbeat)
		})
	})

	return app
}

// Start launches background services.
func (app *App) Start() {
	if app.Reaper != nil {
		app.Reaper.Start()
	}
}

// Stop halts background services. The App must not serve requests afterwards.
func (app *App) Stop() {
	if app.Reaper != nil {
		app.Reaper.Stop()
	}
	close(app.stopCh)
}

// breakerReporter is implemented by messengers guarded by a circuit breaker.
type breakerReporter interface {
	State() gobreaker.State
}

// healthHandler reports database reachability and, informationally, the
// messenger and its circuit state. An open circuit does not fail the check.
func healthHandler(db Pinger, messenger domain.Messenger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := buildconfig.VersionInfo()
		if messenger == nil {
			info["messenger"] = "unavailable"
		} else {
			info["messenger"] = messenger.Name()
			if br, ok := messenger.(breakerReporter); ok {
				info["messenger_circuit"] = br.State().String()
			}
		}

		if err := db.Ping(r.Context()); err != nil {
			info["status"] = "error"
			info["error"] = err.Error()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(info)
			return
		}

		info["status"] = "ok"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(info)
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		snap := app.metrics.Snapshot()

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  snap.RequestCount,
			"error_count":    snap.ErrorCount,
			"client_errors":  snap.ClientErrors,
			"server_errors":  snap.ServerErrors,
			"in_flight":      snap.InFlight,
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.BotStore     = (*store.BotStore)(nil)
	_ domain.RunStore     = (*store.RunStore)(nil)
	_ domain.ServiceStore = (*store.ServiceStore)(nil)
	_ domain.BotStore     = (*sqlite.BotStore)(nil)
	_ domain.RunStore     = (*sqlite.RunStore)(nil)
	_ domain.ServiceStore = (*sqlite.ServiceStore)(nil)
	_ domain.Messenger    = (*messaging.Telegram)(nil)
	_ domain.Messenger    = (*messaging.BreakerMessenger)(nil)
	_ domain.Messenger    = (*messaging.MockMessenger)(nil)
	_ Pinger              = (*pgxpool.Pool)(nil)
	_ Pinger              = (*sqlite.DB)(nil)
)
