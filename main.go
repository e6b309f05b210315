package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nfl-pickem/config"
	"nfl-pickem/database"
	"nfl-pickem/handlers"
	"nfl-pickem/interfaces"
	"nfl-pickem/logging"
	"nfl-pickem/middleware"
	"nfl-pickem/observability"
	"nfl-pickem/services"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var version = "dev"

// stores is the persistence layer, Mongo-backed or in memory
type stores struct {
	db      *database.MongoDB
	picks   services.PickRepository
	games   services.GameRepository
	records services.ScoringRepository
	users   services.UserDirectory
}

func openStores(cfg *config.Config) stores {
	logger := logging.WithPrefix("Startup")

	db, err := database.NewMongoConnection(cfg.ToDatabaseConfig())
	if err != nil {
		if !cfg.App.IsDevelopment {
			logger.Fatalf("Database connection failed: %v", err)
		}
		logger.Warnf("Database connection failed, continuing with in-memory storage: %v", err)
		return stores{
			picks:   database.NewMemoryPickRepository(),
			games:   database.NewMemoryGameRepository(),
			records: database.NewMemoryScoringRepository(),
			users:   database.NewMemoryUserDirectory(),
		}
	}

	picks, err := database.NewMongoPickRepository(db)
	if err != nil {
		logger.Fatalf("Failed to prepare picks collection: %v", err)
	}

	return stores{
		db:      db,
		picks:   picks,
		games:   database.NewMongoGameRepository(db),
		records: database.NewMongoScoringRepository(db),
		users:   database.NewMongoUserRepository(db),
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Failed to load configuration: %v", err)
	}
	logging.Configure(cfg.ToLoggingConfig())
	cfg.LogConfiguration()

	logger := logging.WithPrefix("Server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitTracing(cfg.ToTracingConfig(version))

	store := openStores(cfg)
	if store.db != nil {
		defer store.db.Close()
	}

	engineConfig := cfg.ToEngineConfig()
	clock := services.NewGameClock(nil, engineConfig.CompletionWindow)
	policy := services.NewEditWindowPolicy(clock, engineConfig)

	broker := services.NewBroker(cfg.ToBrokerConfig())
	defer broker.Close()

	pickService := services.NewPickService(store.picks, store.games, policy, broker)
	gameService := services.NewGameService(store.games, policy)
	leaderboard := services.NewLeaderboardService(store.picks, store.records, store.users)
	resolver := services.NewOutcomeResolver(store.picks, store.games, clock, broker, engineConfig.ScoringWorkers)
	engine := services.NewScoringEngine(store.picks, store.games, store.records, clock, broker, engineConfig.ScoringWorkers)
	pipeline := services.NewWeekPipeline(resolver, engine)
	authService := services.NewAuthService(store.users, cfg.Auth.JWTSecret, cfg.Auth.AdminKeyHash)

	go broker.RunSweeper(ctx)

	if cfg.App.BackgroundUpdaterEnabled {
		var feed services.GameFeed
		if cfg.IsFeedConfigured() {
			feed = services.NewFeedClient(cfg.ToFeedConfig())
		}
		updater := services.NewBackgroundUpdater(feed, store.games, store.picks, pipeline, clock, cfg.ToUpdaterConfig())
		go updater.Run(ctx)
	}

	if cfg.App.ChangeStreamEnabled && store.db != nil {
		watcher := services.NewChangeStreamWatcher(store.db, broker, func(ctx context.Context, season, week int) {
			if _, err := pipeline.Run(ctx, season, week); err != nil {
				logger.Warnf("Week %d/%d pipeline after game change failed: %v", season, week, err)
			}
		})
		go watcher.Run(ctx)
	}

	var health interfaces.HealthChecker
	if store.db != nil {
		health = store.db
	}

	security := cfg.ToSecurityConfig()
	router := handlers.NewRouter(handlers.RouterDeps{
		Picks:       pickService,
		Games:       gameService,
		Leaderboard: leaderboard,
		Pipeline:    pipeline,
		Broker:      broker,
		Health:      health,
		Auth:        middleware.NewAuthMiddleware(authService),
		Security:    security,
		CheckOrigin: originChecker(security.AllowedOrigins),
	})

	server := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           otelhttp.NewHandler(router, "nfl-pickem"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on %s (version %s)", server.Addr, version)
		var err error
		if cfg.Server.UseTLS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Streaming connections never go idle, so close subscriptions before draining
	broker.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warnf("Trace exporter shutdown failed: %v", err)
	}
	_ = logging.GetGlobalLogger().Sync()
}

// originChecker allows WebSocket upgrades from the configured origins, or
// same-origin only when none are configured
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(origin, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
