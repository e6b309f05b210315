package services

import (
	"testing"
	"time"

	"nfl-pickem/models"

	"github.com/stretchr/testify/assert"
)

// sundayKickoff is 2025-09-14 1:00pm Eastern
var sundayKickoff = time.Date(2025, 9, 14, 17, 0, 0, 0, time.UTC)

func policyAt(now time.Time) *EditWindowPolicy {
	return NewEditWindowPolicy(fixedClock(now), DefaultEngineConfig())
}

func sundayGame(id string) *models.Game {
	return &models.Game{ID: id, Season: 2025, Week: 2, HomeTeam: "KC", AwayTeam: "BUF", ScheduledDate: "20250914", ScheduledTime: "1:00p"}
}

func TestCanEditGameLockoutBuffer(t *testing.T) {
	game := sundayGame("g1")

	assert.True(t, policyAt(sundayKickoff.Add(-15*time.Minute)).CanEditGame(game))
	assert.True(t, policyAt(sundayKickoff.Add(-10*time.Minute)).CanEditGame(game), "boundary is inclusive")
	assert.False(t, policyAt(sundayKickoff.Add(-5*time.Minute)).CanEditGame(game))
	assert.False(t, policyAt(sundayKickoff.Add(time.Hour)).CanEditGame(game))
}

func TestCanEditGameUnknownKickoff(t *testing.T) {
	game := &models.Game{ID: "g1", ScheduledDate: "TBD"}
	assert.False(t, policyAt(sundayKickoff.Add(-48*time.Hour)).CanEditGame(game))
}

func TestCanEditWeek(t *testing.T) {
	early := sundayGame("g1")
	late := &models.Game{ID: "g2", ScheduledDate: "20250915", ScheduledTime: "8:15 pm"}

	// Sunday game final, Monday game not yet played
	policy := policyAt(sundayKickoff.Add(7 * time.Hour))
	assert.True(t, policy.CanEditWeek([]*models.Game{early, late}))

	// Everything done
	policy = policyAt(sundayKickoff.Add(48 * time.Hour))
	assert.False(t, policy.CanEditWeek([]*models.Game{early, late}))

	assert.False(t, policy.CanEditWeek(nil))
}

func TestCanSubmitWeek(t *testing.T) {
	early := sundayGame("g1")
	late := &models.Game{ID: "g2", ScheduledDate: "20250915", ScheduledTime: "8:15 pm"}

	assert.True(t, policyAt(sundayKickoff.Add(time.Hour)).CanSubmitWeek([]*models.Game{early, late}))

	// Monday game is in progress: nothing actionable even though the week is not over
	mondayKickoff := time.Date(2025, 9, 16, 0, 15, 0, 0, time.UTC)
	policy := policyAt(mondayKickoff.Add(30 * time.Minute))
	assert.False(t, policy.CanSubmitWeek([]*models.Game{early, late}))
	assert.True(t, policy.CanEditWeek([]*models.Game{early, late}))
}

func TestCanSubmitWeekIgnoresCompletedStatus(t *testing.T) {
	game := sundayGame("g1")
	game.RawStatus = "final"

	assert.False(t, policyAt(sundayKickoff.Add(-time.Hour)).CanSubmitWeek([]*models.Game{game}))
}

func TestHasStartedIsDistinctFromEditable(t *testing.T) {
	game := sundayGame("g1")

	policy := policyAt(sundayKickoff.Add(-5 * time.Minute))
	assert.False(t, policy.CanEditGame(game))
	assert.False(t, policy.HasStarted(game))

	policy = policyAt(sundayKickoff.Add(10 * time.Minute))
	assert.False(t, policy.HasStarted(game))

	policy = policyAt(sundayKickoff.Add(16 * time.Minute))
	assert.True(t, policy.HasStarted(game))
}

func TestWindowStatus(t *testing.T) {
	early := sundayGame("g1")
	late := &models.Game{ID: "g2", HomeTeam: "DAL", AwayTeam: "NYG", ScheduledDate: "20250915", ScheduledTime: "8:15 pm"}

	window := policyAt(sundayKickoff.Add(20*time.Minute)).WindowStatus(2025, 2, []*models.Game{early, late})

	assert.True(t, window.CanEditWeek)
	assert.True(t, window.CanSubmitWeek)
	if assert.Len(t, window.Games, 2) {
		assert.Equal(t, models.GameWindow{
			GameID: "g1", Matchup: "BUF @ KC", Kickoff: sundayKickoff,
			State: models.GameStateInProgress, Editable: false, Started: true,
		}, window.Games[0])
		assert.True(t, window.Games[1].Editable)
		assert.False(t, window.Games[1].Started)
	}
}
