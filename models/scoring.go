package models

// Category points
const (
	SpreadPickPoints      = 1
	LockBonusPoints       = 1
	TouchdownScorerPoints = 1
	PropBetPoints         = 1
)

// CategoryScore is the correctness flag and points for one scoring category
type CategoryScore struct {
	Correct bool `json:"correct" bson:"correct"`
	Points  int  `json:"points" bson:"points"`
}

// ScoringRecord holds one user's points for one game. It is overwritten on
// every scoring pass and carries no timestamps so reruns produce identical documents.
type ScoringRecord struct {
	UserID          int           `json:"userId" bson:"user_id"`
	GameID          string        `json:"gameId" bson:"game_id"`
	Season          int           `json:"season" bson:"season"`
	Week            int           `json:"week" bson:"week"`
	SpreadPick      CategoryScore `json:"spreadPick" bson:"spread_pick"`
	LockPick        CategoryScore `json:"lockPick" bson:"lock_pick"`
	TouchdownScorer CategoryScore `json:"touchdownScorer" bson:"touchdown_scorer"`
	PropBet         CategoryScore `json:"propBet" bson:"prop_bet"`
	TotalPoints     int           `json:"totalPoints" bson:"total_points"`
	FantasyPoints   float64       `json:"fantasyPoints" bson:"fantasy_points"`
	HomeTeam        string        `json:"homeTeam" bson:"home_team"`
	AwayTeam        string        `json:"awayTeam" bson:"away_team"`
	HomeScore       *int          `json:"homeScore,omitempty" bson:"home_score,omitempty"`
	AwayScore       *int          `json:"awayScore,omitempty" bson:"away_score,omitempty"`
	IsFinal         bool          `json:"isFinal" bson:"is_final"`
}

// Recalculate sets TotalPoints from the category points
func (r *ScoringRecord) Recalculate() {
	r.TotalPoints = r.SpreadPick.Points + r.LockPick.Points + r.TouchdownScorer.Points + r.PropBet.Points
}
