// Command resolve_week re-runs outcome resolution and scoring against the
// configured database. It is the manual counterpart of the background updater.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"nfl-pickem/config"
	"nfl-pickem/database"
	"nfl-pickem/logging"
	"nfl-pickem/services"
)

func main() {
	season := flag.Int("season", 0, "season to process (default: CURRENT_SEASON)")
	week := flag.Int("week", 0, "week to process (default: every week with finalized picks)")
	sync := flag.Bool("sync", false, "pull the schedule/result feed before resolving")
	indexesOnly := flag.Bool("indexes", false, "only (re)create the pick indexes and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Failed to load configuration: %v", err)
	}
	logging.Configure(cfg.ToLoggingConfig())
	logger := logging.WithPrefix("ResolveWeek")

	if *season == 0 {
		*season = cfg.App.CurrentSeason
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewMongoConnection(cfg.ToDatabaseConfig())
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	// The repository creates the pick indexes on construction
	picks, err := database.NewMongoPickRepository(db)
	if err != nil {
		logger.Fatalf("Failed to prepare picks collection: %v", err)
	}
	if *indexesOnly {
		logger.Info("Pick indexes are in place")
		return
	}

	games := database.NewMongoGameRepository(db)
	records := database.NewMongoScoringRepository(db)

	engineConfig := cfg.ToEngineConfig()
	clock := services.NewGameClock(nil, engineConfig.CompletionWindow)
	broker := services.NewBroker(cfg.ToBrokerConfig())
	resolver := services.NewOutcomeResolver(picks, games, clock, broker, engineConfig.ScoringWorkers)
	engine := services.NewScoringEngine(picks, games, records, clock, broker, engineConfig.ScoringWorkers)
	pipeline := services.NewWeekPipeline(resolver, engine)

	updaterConfig := cfg.ToUpdaterConfig()
	updaterConfig.Season = *season
	var feed services.GameFeed
	if *sync {
		if !cfg.IsFeedConfigured() {
			logger.Fatal("-sync needs FEED_BASE_URL")
		}
		feed = services.NewFeedClient(cfg.ToFeedConfig())
	}
	updater := services.NewBackgroundUpdater(feed, games, picks, pipeline, clock, updaterConfig)

	if *sync {
		changed, err := updater.SyncOnce(ctx)
		if err != nil {
			logger.Fatalf("Feed sync failed: %v", err)
		}
		logger.Infof("Feed sync changed weeks %v", changed)
	}

	weeks := []int{*week}
	if *week == 0 {
		weeks, err = picks.FinalizedWeeks(ctx, *season, nil)
		if err != nil {
			logger.Fatalf("Failed to list weeks: %v", err)
		}
	}

	failed := false
	for _, w := range weeks {
		report, err := pipeline.Run(ctx, *season, w)
		if err != nil {
			logger.Errorf("Week %d/%d failed: %v", *season, w, err)
			failed = true
			continue
		}
		logger.Infof("Week %d/%d: %d games completed, %d skipped, %d picks changed, %d corrections, %d failures, %d records",
			*season, w, report.Resolve.GamesCompleted, report.Resolve.GamesSkipped, report.Resolve.PicksChanged,
			report.Resolve.Corrections, report.Resolve.Failures, report.Records)
	}
	if failed {
		os.Exit(1)
	}
}
