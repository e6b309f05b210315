package services

import (
	"context"
	"reflect"
	"sort"
	"sync/atomic"
	"time"

	"nfl-pickem/logging"
	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
)

// GameFeed is the source of schedule and result updates
type GameFeed interface {
	FetchSeason(ctx context.Context, season int) ([]*models.Game, error)
}

// UpdaterConfig controls the background jobs
type UpdaterConfig struct {
	Season          int
	PollInterval    time.Duration
	ResolveInterval time.Duration
}

// BackgroundUpdater polls the feed, stores changed games and re-runs
// resolution and scoring for the weeks they touch. A second ticker re-runs
// every week holding finalized picks so classification-only transitions
// (a game passing its completion window) are picked up without feed changes.
type BackgroundUpdater struct {
	feed     GameFeed
	games    GameRepository
	picks    PickRepository
	pipeline *WeekPipeline
	clock    *GameClock
	config   UpdaterConfig
	running  atomic.Bool
	logger   *logging.Logger
}

// NewBackgroundUpdater creates a new background updater. A nil feed disables polling.
func NewBackgroundUpdater(feed GameFeed, games GameRepository, picks PickRepository, pipeline *WeekPipeline, clock *GameClock, config UpdaterConfig) *BackgroundUpdater {
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Minute
	}
	if config.ResolveInterval <= 0 {
		config.ResolveInterval = DefaultEngineConfig().ResolveInterval
	}
	return &BackgroundUpdater{
		feed:     feed,
		games:    games,
		picks:    picks,
		pipeline: pipeline,
		clock:    clock,
		config:   config,
		logger:   logging.WithPrefix("BackgroundUpdater"),
	}
}

// Run blocks until ctx is done
func (bu *BackgroundUpdater) Run(ctx context.Context) {
	if !bu.running.CompareAndSwap(false, true) {
		bu.logger.Warn("Already running")
		return
	}
	defer bu.running.Store(false)

	bu.logger.Infof("Starting: season %d, feed poll %v, resolve every %v",
		bu.config.Season, bu.config.PollInterval, bu.config.ResolveInterval)

	var poll <-chan time.Time
	if bu.feed != nil {
		ticker := time.NewTicker(bu.config.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
		bu.syncAndLog(ctx)
	} else {
		bu.logger.Warn("No feed configured, only periodic resolution will run")
	}

	resolve := time.NewTicker(bu.config.ResolveInterval)
	defer resolve.Stop()

	for {
		select {
		case <-ctx.Done():
			bu.logger.Info("Stopping background updates")
			return
		case <-poll:
			bu.syncAndLog(ctx)
		case <-resolve.C:
			if err := bu.ResolveActiveWeeks(ctx); err != nil {
				bu.logger.Errorf("Periodic resolution failed: %v", err)
			}
		}
	}
}

// IsRunning returns whether the background updater is currently running
func (bu *BackgroundUpdater) IsRunning() bool {
	return bu.running.Load()
}

func (bu *BackgroundUpdater) syncAndLog(ctx context.Context) {
	start := time.Now()
	weeks, err := bu.SyncOnce(ctx)
	if err != nil {
		bu.logger.Errorf("Feed sync failed: %v", err)
		return
	}
	bu.logger.Infof("Feed sync completed in %v, %d weeks changed", time.Since(start), len(weeks))
}

// SyncOnce pulls the season from the feed, stores games that changed and
// reprocesses the affected weeks. It returns the weeks that changed; a week
// that fails to load or store is skipped and reported in the error.
func (bu *BackgroundUpdater) SyncOnce(ctx context.Context) ([]int, error) {
	if bu.feed == nil {
		return nil, nil
	}
	incoming, err := bu.feed.FetchSeason(ctx, bu.config.Season)
	if err != nil {
		return nil, err
	}

	byWeek := make(map[int][]*models.Game)
	for _, game := range incoming {
		byWeek[game.Week] = append(byWeek[game.Week], game)
	}

	var changedWeeks []int
	var syncErr error
	for week, games := range byWeek {
		existing, err := bu.games.FindByWeek(ctx, bu.config.Season, week)
		if err != nil {
			bu.logger.Errorf("Loading stored games for week %d failed: %v", week, err)
			syncErr = errors.CombineErrors(syncErr, errors.Wrapf(err, "load stored games for week %d", week))
			continue
		}
		stored := make(map[string]*models.Game, len(existing))
		for _, game := range existing {
			stored[game.ID] = game
		}

		var changed []*models.Game
		for _, game := range games {
			if before, ok := stored[game.ID]; ok && !gameChanged(before, game) {
				continue
			}
			changed = append(changed, game)
		}
		if len(changed) == 0 {
			continue
		}

		if err := bu.games.BulkUpsertGames(ctx, changed); err != nil {
			bu.logger.Errorf("Storing %d games for week %d failed: %v", len(changed), week, err)
			syncErr = errors.CombineErrors(syncErr, errors.Wrapf(err, "store %d games for week %d", len(changed), week))
			continue
		}
		bu.logger.Debugf("Week %d: stored %d changed games", week, len(changed))
		changedWeeks = append(changedWeeks, week)
	}
	sort.Ints(changedWeeks)

	for _, week := range changedWeeks {
		if _, err := bu.pipeline.Run(ctx, bu.config.Season, week); err != nil {
			bu.logger.Errorf("Processing week %d after sync failed: %v", week, err)
		}
	}
	return changedWeeks, syncErr
}

// ResolveActiveWeeks reprocesses every week holding finalized picks that has a completed game
func (bu *BackgroundUpdater) ResolveActiveWeeks(ctx context.Context) error {
	weeks, err := bu.picks.FinalizedWeeks(ctx, bu.config.Season, nil)
	if err != nil {
		return errors.Wrap(err, "list finalized weeks")
	}

	for _, week := range weeks {
		games, err := bu.games.FindByWeek(ctx, bu.config.Season, week)
		if err != nil {
			bu.logger.Errorf("Loading week %d failed: %v", week, err)
			continue
		}
		if !bu.anyCompleted(games) {
			continue
		}
		if _, err := bu.pipeline.Run(ctx, bu.config.Season, week); err != nil {
			bu.logger.Errorf("Processing week %d failed: %v", week, err)
		}
	}
	return nil
}

func (bu *BackgroundUpdater) anyCompleted(games []*models.Game) bool {
	for _, game := range games {
		if bu.clock.State(game) == models.GameStateCompleted {
			return true
		}
	}
	return false
}

// gameChanged compares the feed-owned fields of two versions of a game
func gameChanged(before, after *models.Game) bool {
	return !reflect.DeepEqual(before, after)
}
