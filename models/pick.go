package models

import (
	"fmt"
	"strings"
	"time"
)

// NormalizePlayerID trims and lower-cases a player ID so one player has one claim key
func NormalizePlayerID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Outcome is the resolved result of a single selection
type Outcome string

const (
	OutcomeWon        Outcome = "won"
	OutcomeLost       Outcome = "lost"
	OutcomeUnresolved Outcome = "unresolved"
)

// PropBetStatus is the moderation state of a prop bet
type PropBetStatus string

const (
	PropBetPending  PropBetStatus = "pending"
	PropBetApproved PropBetStatus = "approved"
	PropBetRejected PropBetStatus = "rejected"
)

// PropBet is a free-text proposition that needs admin approval before it can score
type PropBet struct {
	Description string        `json:"description" bson:"description"`
	Odds        string        `json:"odds" bson:"odds"`
	Status      PropBetStatus `json:"status" bson:"status"`
	Outcome     Outcome       `json:"outcome,omitempty" bson:"outcome,omitempty"` // set by the moderator
}

// Eligible returns true if the prop bet can contribute points
func (p *PropBet) Eligible() bool {
	return p != nil && p.Status == PropBetApproved
}

// Won returns true if the prop bet is approved and adjudicated as won
func (p *PropBet) Won() bool {
	return p.Eligible() && p.Outcome == OutcomeWon
}

// Pick is one user's submission for one week. There is exactly one document per
// (user, season, week). Outcomes are written only by the outcome resolver.
type Pick struct {
	UserID          int                `json:"userId" bson:"user_id"`
	Season          int                `json:"season" bson:"season"`
	Week            int                `json:"week" bson:"week"`
	Selections      map[string]string  `json:"selections" bson:"selections"` // gameID -> team code
	LockOfWeek      string             `json:"lockOfWeek,omitempty" bson:"lock_of_week,omitempty"`
	TouchdownScorer string             `json:"touchdownScorer,omitempty" bson:"touchdown_scorer,omitempty"`
	PropBet         *PropBet           `json:"propBet,omitempty" bson:"prop_bet,omitempty"`
	IsFinalized     bool               `json:"isFinalized" bson:"is_finalized"`
	Outcomes        map[string]Outcome `json:"outcomes,omitempty" bson:"outcomes,omitempty"`
	CreatedAt       time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updated_at"`
	FinalizedAt     *time.Time         `json:"finalizedAt,omitempty" bson:"finalized_at,omitempty"`
}

// Key returns a stable identifier for logging
func (p *Pick) Key() string {
	return fmt.Sprintf("user=%d season=%d week=%d", p.UserID, p.Season, p.Week)
}

// LockGameID returns the game whose selection carries the lock of the week
func (p *Pick) LockGameID() (string, bool) {
	if p.LockOfWeek == "" {
		return "", false
	}
	for gameID, team := range p.Selections {
		if team == p.LockOfWeek {
			return gameID, true
		}
	}
	return "", false
}

// OutcomeFor returns the resolved outcome for a game, unresolved when absent
func (p *Pick) OutcomeFor(gameID string) Outcome {
	if outcome, ok := p.Outcomes[gameID]; ok {
		return outcome
	}
	return OutcomeUnresolved
}

// Record tallies won and lost outcomes
func (p *Pick) Record() UserRecord {
	var record UserRecord
	for _, outcome := range p.Outcomes {
		switch outcome {
		case OutcomeWon:
			record.Wins++
		case OutcomeLost:
			record.Losses++
		}
	}
	return record
}

// Clone returns a deep copy so callers can mutate without touching stored state
func (p *Pick) Clone() *Pick {
	if p == nil {
		return nil
	}
	out := *p
	out.Selections = make(map[string]string, len(p.Selections))
	for k, v := range p.Selections {
		out.Selections[k] = v
	}
	if p.Outcomes != nil {
		out.Outcomes = make(map[string]Outcome, len(p.Outcomes))
		for k, v := range p.Outcomes {
			out.Outcomes[k] = v
		}
	}
	if p.PropBet != nil {
		prop := *p.PropBet
		out.PropBet = &prop
	}
	if p.FinalizedAt != nil {
		finalizedAt := *p.FinalizedAt
		out.FinalizedAt = &finalizedAt
	}
	return &out
}

// PropBetInput is the user-editable part of a prop bet
type PropBetInput struct {
	Description string `json:"description" validate:"required,max=280"`
	Odds        string `json:"odds" validate:"max=16"`
}

// PickPayload is the body of a pick submission
type PickPayload struct {
	Selections      map[string]string `json:"selections" validate:"dive,keys,required,max=64,endkeys,required,max=8"`
	LockOfWeek      string            `json:"lockOfWeek" validate:"max=8"`
	TouchdownScorer string            `json:"touchdownScorer" validate:"max=64"`
	PropBet         *PropBetInput     `json:"propBet" validate:"omitempty"`
	IsFinalized     bool              `json:"isFinalized"`
}

// PropBetModeration is the admin decision on a prop bet
type PropBetModeration struct {
	Status  PropBetStatus `json:"status" validate:"required,oneof=approved rejected pending"`
	Outcome Outcome       `json:"outcome" validate:"omitempty,oneof=won lost unresolved"`
}

// UserRecord represents a user's win/loss record
type UserRecord struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// String returns a formatted record string
func (r UserRecord) String() string {
	return fmt.Sprintf("%d-%d", r.Wins, r.Losses)
}

// GetWinPercentage calculates win percentage, 0 when nothing is decided
func (r UserRecord) GetWinPercentage() float64 {
	total := r.Wins + r.Losses
	if total == 0 {
		return 0
	}
	return float64(r.Wins) / float64(total)
}
