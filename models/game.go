package models

import (
	"fmt"
	"strings"
	"time"
)

// GameState represents the lifecycle state of a game
type GameState string

const (
	GameStateScheduled  GameState = "scheduled"
	GameStateInProgress GameState = "in_progress"
	GameStateCompleted  GameState = "completed"
)

// ScoringPlayTouchdown is the scoring play type that satisfies a touchdown scorer pick
const ScoringPlayTouchdown = "touchdown"

// ScoringPlay is a single scoring event reported by the result feed
type ScoringPlay struct {
	PlayerID string `json:"playerId" bson:"player_id"`
	Team     string `json:"team" bson:"team"`
	Type     string `json:"type" bson:"type"`
}

// PlayerStatLine is one player's box-score line for a game
type PlayerStatLine struct {
	PlayerID            string  `json:"playerId" bson:"player_id"`
	Team                string  `json:"team" bson:"team"`
	PassingYards        int     `json:"passingYards,omitempty" bson:"passing_yards,omitempty"`
	PassingTDs          int     `json:"passingTds,omitempty" bson:"passing_tds,omitempty"`
	Interceptions       int     `json:"interceptions,omitempty" bson:"interceptions,omitempty"`
	RushingYards        int     `json:"rushingYards,omitempty" bson:"rushing_yards,omitempty"`
	RushingTDs          int     `json:"rushingTds,omitempty" bson:"rushing_tds,omitempty"`
	Receptions          int     `json:"receptions,omitempty" bson:"receptions,omitempty"`
	ReceivingYards      int     `json:"receivingYards,omitempty" bson:"receiving_yards,omitempty"`
	ReceivingTDs        int     `json:"receivingTds,omitempty" bson:"receiving_tds,omitempty"`
	FumblesLost         int     `json:"fumblesLost,omitempty" bson:"fumbles_lost,omitempty"`
	TwoPointConversions int     `json:"twoPointConversions,omitempty" bson:"two_point_conversions,omitempty"`
	FieldGoalsMade      int     `json:"fieldGoalsMade,omitempty" bson:"field_goals_made,omitempty"`
	FieldGoals50Plus    int     `json:"fieldGoals50Plus,omitempty" bson:"field_goals_50_plus,omitempty"` // subset of FieldGoalsMade
	ExtraPointsMade     int     `json:"extraPointsMade,omitempty" bson:"extra_points_made,omitempty"`
	Sacks               float64 `json:"sacks,omitempty" bson:"sacks,omitempty"`
	DefInterceptions    int     `json:"defInterceptions,omitempty" bson:"def_interceptions,omitempty"`
	FumbleRecoveries    int     `json:"fumbleRecoveries,omitempty" bson:"fumble_recoveries,omitempty"`
	DefensiveTDs        int     `json:"defensiveTds,omitempty" bson:"defensive_tds,omitempty"`
}

// Game is a scheduled NFL game as delivered by the schedule/result feed.
// Kickoff and lifecycle state are derived on every read and never stored.
type Game struct {
	ID                   string           `json:"gameId" bson:"id"`
	Season               int              `json:"season" bson:"season"`
	Week                 int              `json:"week" bson:"week"`
	HomeTeam             string           `json:"homeTeam" bson:"home_team"`
	AwayTeam             string           `json:"awayTeam" bson:"away_team"`
	ScheduledDate        string           `json:"scheduledDate" bson:"scheduled_date"`
	ScheduledTime        string           `json:"scheduledTime" bson:"scheduled_time"`
	RawStatus            string           `json:"status,omitempty" bson:"status,omitempty"`
	HomeScore            *int             `json:"homeScore,omitempty" bson:"home_score,omitempty"`
	AwayScore            *int             `json:"awayScore,omitempty" bson:"away_score,omitempty"`
	Spread               *float64         `json:"spread,omitempty" bson:"spread,omitempty"` // home line, negative = home favored
	SpreadCoverageWinner string           `json:"spreadCoverageWinner,omitempty" bson:"spread_coverage_winner,omitempty"`
	ScoringPlays         []ScoringPlay    `json:"scoringPlays,omitempty" bson:"scoring_plays,omitempty"`
	PlayerStats          []PlayerStatLine `json:"playerStats,omitempty" bson:"player_stats,omitempty"`
}

// HasTeam reports whether team is one of the two participants
func (g *Game) HasTeam(team string) bool {
	return team != "" && (team == g.HomeTeam || team == g.AwayTeam)
}

// HasScores returns true once both scores are reported
func (g *Game) HasScores() bool {
	return g.HomeScore != nil && g.AwayScore != nil
}

// SpreadWinner returns the team that covered the spread. ok is false for a
// push or when the feed has not supplied enough data to decide.
func (g *Game) SpreadWinner() (team string, ok bool) {
	if g.SpreadCoverageWinner != "" {
		if !g.HasTeam(g.SpreadCoverageWinner) {
			return "", false
		}
		return g.SpreadCoverageWinner, true
	}
	if !g.HasScores() || g.Spread == nil {
		return "", false
	}

	spreadDiff := float64(*g.HomeScore-*g.AwayScore) + *g.Spread
	switch {
	case spreadDiff > 0:
		return g.HomeTeam, true
	case spreadDiff < 0:
		return g.AwayTeam, true
	default:
		return "", false
	}
}

// ScoredTouchdown reports whether the player has a touchdown scoring play in this game
func (g *Game) ScoredTouchdown(playerID string) bool {
	if playerID == "" {
		return false
	}
	for _, play := range g.ScoringPlays {
		if strings.EqualFold(play.PlayerID, playerID) && play.Type == ScoringPlayTouchdown {
			return true
		}
	}
	return false
}

// StatLine returns the player's box-score line, or nil if they did not record one
func (g *Game) StatLine(playerID string) *PlayerStatLine {
	for i := range g.PlayerStats {
		if strings.EqualFold(g.PlayerStats[i].PlayerID, playerID) {
			return &g.PlayerStats[i]
		}
	}
	return nil
}

// Matchup returns a short "AWAY @ HOME" label
func (g *Game) Matchup() string {
	return fmt.Sprintf("%s @ %s", g.AwayTeam, g.HomeTeam)
}

// GameWindow is the client-facing view of a game's edit window
type GameWindow struct {
	GameID   string    `json:"gameId"`
	Matchup  string    `json:"matchup"`
	Kickoff  time.Time `json:"kickoff"`
	State    GameState `json:"state"`
	Editable bool      `json:"editable"`
	Started  bool      `json:"started"`
}

// WeekWindow is the client-facing view of a week's edit windows
type WeekWindow struct {
	Season        int          `json:"season"`
	Week          int          `json:"week"`
	CanEditWeek   bool         `json:"canEditWeek"`
	CanSubmitWeek bool         `json:"canSubmitWeek"`
	Games         []GameWindow `json:"games"`
}
