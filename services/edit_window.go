package services

import (
	"time"

	"nfl-pickem/models"
)

// EditWindowPolicy decides whether games and weeks are still open for pick edits
type EditWindowPolicy struct {
	clock         *GameClock
	lockoutBuffer time.Duration
	startGrace    time.Duration
}

// NewEditWindowPolicy creates a policy on top of clock
func NewEditWindowPolicy(clock *GameClock, cfg EngineConfig) *EditWindowPolicy {
	return &EditWindowPolicy{
		clock:         clock,
		lockoutBuffer: cfg.LockoutBuffer,
		startGrace:    cfg.StartGrace,
	}
}

// Clock returns the underlying game clock
func (p *EditWindowPolicy) Clock() *GameClock {
	return p.clock
}

// CanEditGame is true while now <= kickoff - lockout buffer
func (p *EditWindowPolicy) CanEditGame(game *models.Game) bool {
	return p.canEditGameAt(game, p.clock.Now())
}

// CanEditWeek is false only when every game in the week is completed
func (p *EditWindowPolicy) CanEditWeek(games []*models.Game) bool {
	now := p.clock.Now()
	for _, game := range games {
		if p.clock.classifyAt(game, now).State != models.GameStateCompleted {
			return true
		}
	}
	return false
}

// CanSubmitWeek is true when at least one game is not completed and still editable
func (p *EditWindowPolicy) CanSubmitWeek(games []*models.Game) bool {
	now := p.clock.Now()
	for _, game := range games {
		if p.actionableAt(game, now) {
			return true
		}
	}
	return false
}

// HasStarted is the display cutoff: now > kickoff + grace. Writes close earlier.
func (p *EditWindowPolicy) HasStarted(game *models.Game) bool {
	c := p.clock.Classify(game)
	if !c.KickoffKnown {
		return c.State != models.GameStateScheduled
	}
	return p.clock.Now().After(c.Kickoff.Add(p.startGrace))
}

// WindowStatus reports the edit window of every game in a week
func (p *EditWindowPolicy) WindowStatus(season, week int, games []*models.Game) models.WeekWindow {
	now := p.clock.Now()
	window := models.WeekWindow{
		Season: season,
		Week:   week,
		Games:  make([]models.GameWindow, 0, len(games)),
	}

	for _, game := range games {
		c := p.clock.classifyAt(game, now)
		started := c.State != models.GameStateScheduled
		if c.KickoffKnown {
			started = now.After(c.Kickoff.Add(p.startGrace))
		}
		editable := p.canEditGameAt(game, now)

		window.Games = append(window.Games, models.GameWindow{
			GameID:   game.ID,
			Matchup:  game.Matchup(),
			Kickoff:  c.Kickoff,
			State:    c.State,
			Editable: editable,
			Started:  started,
		})
		if c.State != models.GameStateCompleted {
			window.CanEditWeek = true
			if editable {
				window.CanSubmitWeek = true
			}
		}
	}
	return window
}

func (p *EditWindowPolicy) canEditGameAt(game *models.Game, now time.Time) bool {
	c := p.clock.classifyAt(game, now)
	if !c.KickoffKnown {
		return false
	}
	return !now.After(c.Kickoff.Add(-p.lockoutBuffer))
}

func (p *EditWindowPolicy) actionableAt(game *models.Game, now time.Time) bool {
	return p.clock.classifyAt(game, now).State != models.GameStateCompleted && p.canEditGameAt(game, now)
}
