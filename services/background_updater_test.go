package services

import (
	"context"
	"testing"
	"time"

	"nfl-pickem/database"
	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFeed struct {
	games []*models.Game
	err   error
}

func (f *staticFeed) FetchSeason(_ context.Context, _ int) ([]*models.Game, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.Game, len(f.games))
	for i, game := range f.games {
		copied := *game
		out[i] = &copied
	}
	return out, nil
}

type updaterFixture struct {
	updater *BackgroundUpdater
	feed    *staticFeed
	games   *database.MemoryGameRepository
	picks   *database.MemoryPickRepository
	records *database.MemoryScoringRepository
}

func newUpdaterFixture(t *testing.T) updaterFixture {
	t.Helper()
	clock := fixedClock(sundayKickoff.Add(48 * time.Hour))
	picks := database.NewMemoryPickRepository()
	games := database.NewMemoryGameRepository()
	records := database.NewMemoryScoringRepository()
	publisher := &recordingPublisher{}

	pipeline := NewWeekPipeline(
		NewOutcomeResolver(picks, games, clock, publisher, 2),
		NewScoringEngine(picks, games, records, clock, publisher, 2),
	)
	feed := &staticFeed{games: []*models.Game{finalGame(sundayGame("g1"), 27, 20, -3), mondayGame("g2")}}

	require.NoError(t, picks.Upsert(context.Background(), &models.Pick{
		UserID: 1, Season: 2025, Week: 2, Selections: map[string]string{"g1": "KC"}, IsFinalized: true,
	}))

	return updaterFixture{
		updater: NewBackgroundUpdater(feed, games, picks, pipeline, clock, UpdaterConfig{Season: 2025}),
		feed:    feed,
		games:   games,
		picks:   picks,
		records: records,
	}
}

func TestSyncOnceStoresAndResolves(t *testing.T) {
	ctx := context.Background()
	f := newUpdaterFixture(t)

	weeks, err := f.updater.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, weeks)

	stored, err := f.games.FindByWeek(ctx, 2025, 2)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	pick, err := f.picks.FindByUserAndWeek(ctx, 1, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWon, pick.OutcomeFor("g1"))

	records, err := f.records.FindByWeek(ctx, 2025, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	weeks, err = f.updater.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, weeks, "unchanged feed stores nothing")
}

func TestSyncOnceFeedFailure(t *testing.T) {
	f := newUpdaterFixture(t)
	f.feed.err = &models.UpstreamDataError{Source: "result feed", Err: errors.New("timeout")}

	_, err := f.updater.SyncOnce(context.Background())
	var upstream *models.UpstreamDataError
	assert.True(t, errors.As(err, &upstream))
}

func TestResolveActiveWeeks(t *testing.T) {
	ctx := context.Background()
	f := newUpdaterFixture(t)
	require.NoError(t, f.games.BulkUpsertGames(ctx, f.feed.games))

	require.NoError(t, f.updater.ResolveActiveWeeks(ctx))

	pick, err := f.picks.FindByUserAndWeek(ctx, 1, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWon, pick.OutcomeFor("g1"))
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newUpdaterFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.updater.Run(ctx)
	}()

	require.Eventually(t, f.updater.IsRunning, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("updater did not stop")
	}
	assert.False(t, f.updater.IsRunning())
}

// flakyWeekGames fails writes for one week
type flakyWeekGames struct {
	*database.MemoryGameRepository
	failWeek int
}

func (r *flakyWeekGames) BulkUpsertGames(ctx context.Context, games []*models.Game) error {
	if len(games) > 0 && games[0].Week == r.failWeek {
		return errors.New("write conflict")
	}
	return r.MemoryGameRepository.BulkUpsertGames(ctx, games)
}

func TestSyncOnceIsolatesWeekFailures(t *testing.T) {
	ctx := context.Background()
	f := newUpdaterFixture(t)

	later := sundayGame("g3")
	later.Week = 3
	f.feed.games = append(f.feed.games, later)

	games := &flakyWeekGames{MemoryGameRepository: f.games, failWeek: 3}
	updater := NewBackgroundUpdater(f.feed, games, f.picks, f.updater.pipeline, f.updater.clock, UpdaterConfig{Season: 2025})

	weeks, err := updater.SyncOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "week 3")
	assert.Equal(t, []int{2}, weeks)

	pick, err := f.picks.FindByUserAndWeek(ctx, 1, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWon, pick.OutcomeFor("g1"), "week 2 is still processed")
}
