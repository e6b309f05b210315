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

func intPtr(v int) *int             { return &v }
func floatPtr(v float64) *float64 { return &v }

func finalGame(game *models.Game, home, away int, spread float64) *models.Game {
	game.HomeScore = intPtr(home)
	game.AwayScore = intPtr(away)
	game.Spread = floatPtr(spread)
	return game
}

type resolverFixture struct {
	resolver  *OutcomeResolver
	picks     *database.MemoryPickRepository
	games     *database.MemoryGameRepository
	publisher *recordingPublisher
}

func newResolverFixture(t *testing.T, now time.Time, games ...*models.Game) resolverFixture {
	t.Helper()
	picks := database.NewMemoryPickRepository()
	gameRepo := database.NewMemoryGameRepository(games...)
	publisher := &recordingPublisher{}
	return resolverFixture{
		resolver:  NewOutcomeResolver(picks, gameRepo, fixedClock(now), publisher, 4),
		picks:     picks,
		games:     gameRepo,
		publisher: publisher,
	}
}

func (f resolverFixture) seed(t *testing.T, picks ...*models.Pick) {
	t.Helper()
	for _, pick := range picks {
		require.NoError(t, f.picks.Upsert(context.Background(), pick))
	}
}

func TestResolveWeekSetsOutcomes(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, sundayKickoff.Add(48*time.Hour),
		finalGame(sundayGame("g1"), 27, 20, -3), // KC covers
		finalGame(mondayGame("g2"), 20, 17, -3), // push
	)
	f.seed(t,
		&models.Pick{UserID: 1, Season: 2025, Week: 2, Selections: map[string]string{"g1": "KC", "g2": "DAL"}, IsFinalized: true},
		&models.Pick{UserID: 2, Season: 2025, Week: 2, Selections: map[string]string{"g1": "BUF"}, IsFinalized: true},
		&models.Pick{UserID: 3, Season: 2025, Week: 2, Selections: map[string]string{"g1": "KC"}},
	)

	report, err := f.resolver.ResolveWeek(ctx, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, report.GamesCompleted)
	assert.Equal(t, 1, report.GamesSkipped)
	assert.Equal(t, 2, report.PicksScanned)
	assert.Equal(t, 2, report.PicksChanged)

	one, _ := f.picks.FindByUserAndWeek(ctx, 1, 2025, 2)
	assert.Equal(t, map[string]models.Outcome{"g1": models.OutcomeWon}, one.Outcomes, "push leaves g2 unresolved")
	two, _ := f.picks.FindByUserAndWeek(ctx, 2, 2025, 2)
	assert.Equal(t, models.OutcomeLost, two.OutcomeFor("g1"))
	draft, _ := f.picks.FindByUserAndWeek(ctx, 3, 2025, 2)
	assert.Empty(t, draft.Outcomes, "drafts are not resolved")

	assert.Len(t, f.publisher.Events(), 2)
}

func TestResolveWeekIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, sundayKickoff.Add(48*time.Hour), finalGame(sundayGame("g1"), 27, 20, -3))
	f.seed(t, &models.Pick{UserID: 1, Season: 2025, Week: 2, Selections: map[string]string{"g1": "KC"}, IsFinalized: true})

	_, err := f.resolver.ResolveWeek(ctx, 2025, 2)
	require.NoError(t, err)
	report, err := f.resolver.ResolveWeek(ctx, 2025, 2)
	require.NoError(t, err)

	assert.Zero(t, report.PicksChanged)
	assert.Len(t, f.publisher.Events(), 1, "no event when nothing changed")
}

func TestResolveWeekLeavesUnfinishedGames(t *testing.T) {
	ctx := context.Background()
	// Sunday game final, Monday game not started
	f := newResolverFixture(t, sundayKickoff.Add(7*time.Hour),
		finalGame(sundayGame("g1"), 27, 20, -3),
		finalGame(mondayGame("g2"), 30, 10, -3),
	)
	f.seed(t, &models.Pick{UserID: 1, Season: 2025, Week: 2, Selections: map[string]string{"g1": "BUF", "g2": "DAL"}, IsFinalized: true})

	_, err := f.resolver.ResolveWeek(ctx, 2025, 2)
	require.NoError(t, err)

	pick, _ := f.picks.FindByUserAndWeek(ctx, 1, 2025, 2)
	assert.Equal(t, map[string]models.Outcome{"g1": models.OutcomeLost}, pick.Outcomes)
}

func TestResolveWeekAppliesCorrection(t *testing.T) {
	ctx := context.Background()
	game := finalGame(sundayGame("g1"), 27, 20, -3)
	f := newResolverFixture(t, sundayKickoff.Add(48*time.Hour), game)
	f.seed(t, &models.Pick{UserID: 1, Season: 2025, Week: 2, Selections: map[string]string{"g1": "KC"}, IsFinalized: true})

	_, err := f.resolver.ResolveWeek(ctx, 2025, 2)
	require.NoError(t, err)

	// The feed corrects the final score
	require.NoError(t, f.games.BulkUpsertGames(ctx, []*models.Game{finalGame(sundayGame("g1"), 21, 20, -3)}))
	report, err := f.resolver.ResolveWeek(ctx, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Corrections)

	pick, _ := f.picks.FindByUserAndWeek(ctx, 1, 2025, 2)
	assert.Equal(t, models.OutcomeLost, pick.OutcomeFor("g1"))
}

func TestResolveWeekUsesCoverageWinner(t *testing.T) {
	ctx := context.Background()
	game := sundayGame("g1")
	game.RawStatus = "STATUS_FINAL"
	game.SpreadCoverageWinner = "BUF"
	f := newResolverFixture(t, sundayKickoff.Add(3*time.Hour), game)
	f.seed(t, &models.Pick{UserID: 1, Season: 2025, Week: 2, Selections: map[string]string{"g1": "BUF"}, IsFinalized: true})

	_, err := f.resolver.ResolveWeek(ctx, 2025, 2)
	require.NoError(t, err)

	pick, _ := f.picks.FindByUserAndWeek(ctx, 1, 2025, 2)
	assert.Equal(t, models.OutcomeWon, pick.OutcomeFor("g1"))
}

// failingOutcomes rejects outcome writes for one user
type failingOutcomes struct {
	PickRepository
	userID int
}

func (f *failingOutcomes) UpdateOutcomes(ctx context.Context, userID, season, week int, outcomes map[string]models.Outcome) error {
	if userID == f.userID {
		return &models.TransientStoreError{Op: "update outcomes", Err: errors.New("timeout")}
	}
	return f.PickRepository.UpdateOutcomes(ctx, userID, season, week, outcomes)
}

func TestResolveWeekIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	memory := database.NewMemoryPickRepository()
	for userID := 1; userID <= 3; userID++ {
		require.NoError(t, memory.Upsert(ctx, &models.Pick{UserID: userID, Season: 2025, Week: 2, Selections: map[string]string{"g1": "KC"}, IsFinalized: true}))
	}
	games := database.NewMemoryGameRepository(finalGame(sundayGame("g1"), 27, 20, -3))
	resolver := NewOutcomeResolver(&failingOutcomes{PickRepository: memory, userID: 2}, games,
		fixedClock(sundayKickoff.Add(48*time.Hour)), &recordingPublisher{}, 2)

	report, err := resolver.ResolveWeek(ctx, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 2, report.PicksChanged)

	three, _ := memory.FindByUserAndWeek(ctx, 3, 2025, 2)
	assert.Equal(t, models.OutcomeWon, three.OutcomeFor("g1"))
}

func TestResolveWeekEmpty(t *testing.T) {
	f := newResolverFixture(t, sundayKickoff)
	report, err := f.resolver.ResolveWeek(context.Background(), 2025, 9)
	require.NoError(t, err)
	assert.Zero(t, report.PicksScanned)
}
