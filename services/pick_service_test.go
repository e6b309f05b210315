package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nfl-pickem/database"
	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mondayGame(id string) *models.Game {
	return &models.Game{ID: id, Season: 2025, Week: 2, HomeTeam: "DAL", AwayTeam: "NYG", ScheduledDate: "20250915", ScheduledTime: "8:15 pm"}
}

type pickFixture struct {
	service   *PickService
	picks     *database.MemoryPickRepository
	publisher *recordingPublisher
}

func newPickFixture(now time.Time, picks PickRepository) pickFixture {
	memory := database.NewMemoryPickRepository()
	if picks == nil {
		picks = memory
	}
	games := database.NewMemoryGameRepository(sundayGame("g1"), mondayGame("g2"))
	publisher := &recordingPublisher{}
	return pickFixture{
		service:   NewPickService(picks, games, policyAt(now), publisher),
		picks:     memory,
		publisher: publisher,
	}
}

// flakyPicks fails the first n upserts with a transient error
type flakyPicks struct {
	PickRepository
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *flakyPicks) Upsert(ctx context.Context, pick *models.Pick) error {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return &models.TransientStoreError{Op: "upsert pick", Err: errors.New("write conflict")}
	}
	return f.PickRepository.Upsert(ctx, pick)
}

func TestUpsertStoresSelections(t *testing.T) {
	ctx := context.Background()
	f := newPickFixture(sundayKickoff.Add(-time.Hour), nil)

	pick, err := f.service.Upsert(ctx, 1, 2025, 2, models.PickPayload{
		Selections: map[string]string{"g1": "KC", "g2": "NYG"},
		LockOfWeek: "KC",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"g1": "KC", "g2": "NYG"}, pick.Selections)
	assert.Equal(t, "KC", pick.LockOfWeek)
	assert.False(t, pick.IsFinalized)

	stored, err := f.service.Get(ctx, 1, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, pick.Selections, stored.Selections)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventPickUpdate, events[0].Type)
	assert.Equal(t, 1, events[0].Payload.UserID)
}

func TestUpsertRejectsTeamNotInGame(t *testing.T) {
	f := newPickFixture(sundayKickoff.Add(-time.Hour), nil)

	_, err := f.service.Upsert(context.Background(), 1, 2025, 2, models.PickPayload{
		Selections: map[string]string{"g1": "DAL"},
	})
	var validation *models.ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "selections", validation.Field)
	assert.Empty(t, f.publisher.Events())
}

func TestUpsertDropsUnknownAndLockedGames(t *testing.T) {
	ctx := context.Background()
	f := newPickFixture(sundayKickoff.Add(time.Hour), nil)

	pick, err := f.service.Upsert(ctx, 1, 2025, 2, models.PickPayload{
		Selections: map[string]string{"g1": "KC", "g2": "DAL", "nope": "SF"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"g2": "DAL"}, pick.Selections)
}

func TestUpsertKeepsFrozenSelections(t *testing.T) {
	ctx := context.Background()
	early := newPickFixture(sundayKickoff.Add(-time.Hour), nil)
	_, err := early.service.Upsert(ctx, 1, 2025, 2, models.PickPayload{
		Selections: map[string]string{"g1": "KC", "g2": "NYG"},
		LockOfWeek: "KC",
	})
	require.NoError(t, err)

	// Same store, Sunday game under way
	games := database.NewMemoryGameRepository(sundayGame("g1"), mondayGame("g2"))
	later := NewPickService(early.picks, games, policyAt(sundayKickoff.Add(time.Hour)), &recordingPublisher{})

	pick, err := later.Upsert(ctx, 1, 2025, 2, models.PickPayload{
		Selections: map[string]string{"g1": "BUF", "g2": "DAL"},
		LockOfWeek: "KC",
	})
	require.NoError(t, err)
	assert.Equal(t, "KC", pick.Selections["g1"], "frozen selection survives")
	assert.Equal(t, "DAL", pick.Selections["g2"])
	assert.Equal(t, "KC", pick.LockOfWeek)

	_, err = later.Upsert(ctx, 1, 2025, 2, models.PickPayload{
		Selections: map[string]string{"g2": "DAL"},
		LockOfWeek: "DAL",
	})
	assert.True(t, models.IsConflict(err, models.ConflictLocked), "frozen lock cannot move")
}

func TestUpsertLockMustBeSubmitted(t *testing.T) {
	f := newPickFixture(sundayKickoff.Add(-time.Hour), nil)

	_, err := f.service.Upsert(context.Background(), 1, 2025, 2, models.PickPayload{
		Selections: map[string]string{"g1": "KC"},
		LockOfWeek: "NYG",
	})
	var validation *models.ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "lockOfWeek", validation.Field)
}

func TestUpsertLockedWeek(t *testing.T) {
	mondayKickoff := time.Date(2025, 9, 16, 0, 15, 0, 0, time.UTC)
	f := newPickFixture(mondayKickoff.Add(time.Hour), nil)

	_, err := f.service.Upsert(context.Background(), 1, 2025, 2, models.PickPayload{
		Selections: map[string]string{"g2": "DAL"},
	})
	assert.True(t, models.IsConflict(err, models.ConflictLocked))
}

func TestFinalizationIsSticky(t *testing.T) {
	ctx := context.Background()
	f := newPickFixture(sundayKickoff.Add(-time.Hour), nil)

	pick, err := f.service.Upsert(ctx, 1, 2025, 2, models.PickPayload{
		Selections:  map[string]string{"g1": "KC"},
		IsFinalized: true,
	})
	require.NoError(t, err)
	require.True(t, pick.IsFinalized)
	require.NotNil(t, pick.FinalizedAt)
	finalizedAt := *pick.FinalizedAt

	pick, err = f.service.Upsert(ctx, 1, 2025, 2, models.PickPayload{
		Selections: map[string]string{"g1": "BUF"},
	})
	require.NoError(t, err)
	assert.True(t, pick.IsFinalized)
	assert.Equal(t, finalizedAt, *pick.FinalizedAt)

	events := f.publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventPickFinalize, events[0].Type)
	assert.Equal(t, models.EventPickUpdate, events[1].Type)
}

func TestEditedPropBetResetsToPending(t *testing.T) {
	ctx := context.Background()
	f := newPickFixture(sundayKickoff.Add(-time.Hour), nil)

	payload := models.PickPayload{
		Selections: map[string]string{"g1": "KC"},
		PropBet:    &models.PropBetInput{Description: "Kelce 100 yards", Odds: "+250"},
	}
	_, err := f.service.Upsert(ctx, 1, 2025, 2, payload)
	require.NoError(t, err)
	require.NoError(t, f.service.ModeratePropBet(ctx, 1, 2025, 2, models.PropBetModeration{Status: models.PropBetApproved}))

	pick, err := f.service.Upsert(ctx, 1, 2025, 2, payload)
	require.NoError(t, err)
	assert.Equal(t, models.PropBetApproved, pick.PropBet.Status, "unchanged prop keeps its moderation")

	payload.PropBet = &models.PropBetInput{Description: "Kelce 120 yards", Odds: "+400"}
	pick, err = f.service.Upsert(ctx, 1, 2025, 2, payload)
	require.NoError(t, err)
	assert.Equal(t, models.PropBetPending, pick.PropBet.Status)

	payload.PropBet = nil
	pick, err = f.service.Upsert(ctx, 1, 2025, 2, payload)
	require.NoError(t, err)
	assert.Nil(t, pick.PropBet)
}

func TestConcurrentLockClaimsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newPickFixture(sundayKickoff.Add(-time.Hour), nil)

	const users = 16
	var wg sync.WaitGroup
	var winners, claimed atomic.Int32
	for userID := 1; userID <= users; userID++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			_, err := f.service.Upsert(ctx, userID, 2025, 2, models.PickPayload{
				Selections:      map[string]string{"g1": "KC"},
				LockOfWeek:      "KC",
				TouchdownScorer: "player-" + string(rune('a'+userID)),
				IsFinalized:     true,
			})
			switch {
			case err == nil:
				winners.Add(1)
			case models.IsConflict(err, models.ConflictClaimed):
				claimed.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(userID)
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, int32(users-1), claimed.Load())

	finalized, err := f.service.GetAllFinalized(ctx, 2025, 2)
	require.NoError(t, err)
	assert.Len(t, finalized, 1)
}

func TestTouchdownScorerClaimIgnoresCaseAndSpace(t *testing.T) {
	ctx := context.Background()
	f := newPickFixture(sundayKickoff.Add(-time.Hour), nil)

	pick, err := f.service.Upsert(ctx, 1, 2025, 2, models.PickPayload{TouchdownScorer: " P123 ", IsFinalized: true})
	require.NoError(t, err)
	assert.Equal(t, "p123", pick.TouchdownScorer)

	_, err = f.service.Upsert(ctx, 2, 2025, 2, models.PickPayload{TouchdownScorer: "p123", IsFinalized: true})
	assert.True(t, models.IsConflict(err, models.ConflictClaimed))
}

func TestTouchdownScorerClaim(t *testing.T) {
	ctx := context.Background()
	f := newPickFixture(sundayKickoff.Add(-time.Hour), nil)

	_, err := f.service.Upsert(ctx, 1, 2025, 2, models.PickPayload{TouchdownScorer: "kelce", IsFinalized: true})
	require.NoError(t, err)

	// Unfinalized picks do not hold claims
	_, err = f.service.Upsert(ctx, 2, 2025, 2, models.PickPayload{TouchdownScorer: "kelce"})
	require.NoError(t, err)

	_, err = f.service.Upsert(ctx, 2, 2025, 2, models.PickPayload{TouchdownScorer: "kelce", IsFinalized: true})
	assert.True(t, models.IsConflict(err, models.ConflictClaimed))
}

func TestUpsertRetriesTransientOnce(t *testing.T) {
	flaky := &flakyPicks{PickRepository: database.NewMemoryPickRepository()}
	flaky.failures.Store(1)
	f := newPickFixture(sundayKickoff.Add(-time.Hour), flaky)

	_, err := f.service.Upsert(context.Background(), 1, 2025, 2, models.PickPayload{Selections: map[string]string{"g1": "KC"}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), flaky.calls.Load())
}

func TestUpsertReportsContention(t *testing.T) {
	flaky := &flakyPicks{PickRepository: database.NewMemoryPickRepository()}
	flaky.failures.Store(5)
	f := newPickFixture(sundayKickoff.Add(-time.Hour), flaky)

	_, err := f.service.Upsert(context.Background(), 1, 2025, 2, models.PickPayload{Selections: map[string]string{"g1": "KC"}})
	assert.True(t, models.IsConflict(err, models.ConflictContention))
	assert.Equal(t, int32(2), flaky.calls.Load())
	assert.Empty(t, f.publisher.Events())
}

func TestRevealFinalized(t *testing.T) {
	ctx := context.Background()
	f := newPickFixture(sundayKickoff.Add(-time.Hour), nil)

	_, err := f.service.Upsert(ctx, 1, 2025, 2, models.PickPayload{Selections: map[string]string{"g1": "KC"}, IsFinalized: true})
	require.NoError(t, err)
	_, err = f.service.Upsert(ctx, 2, 2025, 2, models.PickPayload{Selections: map[string]string{"g1": "BUF"}})
	require.NoError(t, err)

	_, err = f.service.RevealFinalized(ctx, 2, false, 2025, 2)
	assert.ErrorIs(t, err, models.ErrRevealForbidden)

	picks, err := f.service.RevealFinalized(ctx, 1, false, 2025, 2)
	require.NoError(t, err)
	assert.Len(t, picks, 1)

	picks, err = f.service.RevealFinalized(ctx, 99, true, 2025, 2)
	require.NoError(t, err)
	assert.Len(t, picks, 1)
}

func TestListWeeksWithFinalizedPicks(t *testing.T) {
	ctx := context.Background()
	f := newPickFixture(sundayKickoff.Add(-time.Hour), nil)

	weeks, err := f.service.ListWeeksWithFinalizedPicks(ctx, 2025, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{}, weeks)

	_, err = f.service.Upsert(ctx, 1, 2025, 2, models.PickPayload{Selections: map[string]string{"g1": "KC"}, IsFinalized: true})
	require.NoError(t, err)

	userID := 1
	weeks, err = f.service.ListWeeksWithFinalizedPicks(ctx, 2025, &userID)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, weeks)

	other := 2
	weeks, err = f.service.ListWeeksWithFinalizedPicks(ctx, 2025, &other)
	require.NoError(t, err)
	assert.Empty(t, weeks)
}

func TestDeletePick(t *testing.T) {
	ctx := context.Background()
	f := newPickFixture(sundayKickoff.Add(-time.Hour), nil)

	assert.ErrorIs(t, f.service.Delete(ctx, 1, 2025, 2), models.ErrNotFound)

	_, err := f.service.Upsert(ctx, 1, 2025, 2, models.PickPayload{Selections: map[string]string{"g1": "KC"}})
	require.NoError(t, err)
	require.NoError(t, f.service.Delete(ctx, 1, 2025, 2))

	pick, err := f.service.Get(ctx, 1, 2025, 2)
	require.NoError(t, err)
	assert.Nil(t, pick)
}

func TestDeleteRefusedOnceSelectionFrozen(t *testing.T) {
	ctx := context.Background()
	early := newPickFixture(sundayKickoff.Add(-time.Hour), nil)
	_, err := early.service.Upsert(ctx, 1, 2025, 2, models.PickPayload{Selections: map[string]string{"g1": "KC"}})
	require.NoError(t, err)

	games := database.NewMemoryGameRepository(sundayGame("g1"), mondayGame("g2"))
	later := NewPickService(early.picks, games, policyAt(sundayKickoff.Add(time.Hour)), &recordingPublisher{})
	assert.True(t, models.IsConflict(later.Delete(ctx, 1, 2025, 2), models.ConflictLocked))
}

func TestUpsertNormalizesTeamCodes(t *testing.T) {
	f := newPickFixture(sundayKickoff.Add(-time.Hour), nil)

	pick, err := f.service.Upsert(context.Background(), 1, 2025, 2, models.PickPayload{
		Selections: map[string]string{"g1": "kc", "g2": " nyg"},
		LockOfWeek: "Kc",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"g1": "KC", "g2": "NYG"}, pick.Selections)
	assert.Equal(t, "KC", pick.LockOfWeek)
}
