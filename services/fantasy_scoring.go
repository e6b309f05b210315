package services

import (
	"math"

	"nfl-pickem/models"
)

// FantasyTable is a linear weight per box-score statistic
type FantasyTable struct {
	PassingYard        float64
	PassingTD          float64
	Interception       float64
	RushingYard        float64
	RushingTD          float64
	Reception          float64
	ReceivingYard      float64
	ReceivingTD        float64
	FumbleLost         float64
	TwoPointConversion float64
	FieldGoal          float64
	FieldGoal50Plus    float64
	ExtraPoint         float64
	Sack               float64
	DefInterception    float64
	FumbleRecovery     float64
	DefensiveTD        float64
}

// DefaultFantasyTable is the league's half-PPR table
func DefaultFantasyTable() FantasyTable {
	return FantasyTable{
		PassingYard:        0.04,
		PassingTD:          4,
		Interception:       -2,
		RushingYard:        0.1,
		RushingTD:          6,
		Reception:          0.5,
		ReceivingYard:      0.1,
		ReceivingTD:        6,
		FumbleLost:         -2,
		TwoPointConversion: 2,
		FieldGoal:          3,
		FieldGoal50Plus:    5,
		ExtraPoint:         1,
		Sack:               1,
		DefInterception:    2,
		FumbleRecovery:     2,
		DefensiveTD:        6,
	}
}

// Points scores one stat line, rounded to hundredths. A nil line scores 0.
func (t FantasyTable) Points(line *models.PlayerStatLine) float64 {
	if line == nil {
		return 0
	}

	// FieldGoals50Plus is a subset of FieldGoalsMade
	shortFieldGoals := line.FieldGoalsMade - line.FieldGoals50Plus
	if shortFieldGoals < 0 {
		shortFieldGoals = 0
	}

	points := float64(line.PassingYards)*t.PassingYard +
		float64(line.PassingTDs)*t.PassingTD +
		float64(line.Interceptions)*t.Interception +
		float64(line.RushingYards)*t.RushingYard +
		float64(line.RushingTDs)*t.RushingTD +
		float64(line.Receptions)*t.Reception +
		float64(line.ReceivingYards)*t.ReceivingYard +
		float64(line.ReceivingTDs)*t.ReceivingTD +
		float64(line.FumblesLost)*t.FumbleLost +
		float64(line.TwoPointConversions)*t.TwoPointConversion +
		float64(shortFieldGoals)*t.FieldGoal +
		float64(line.FieldGoals50Plus)*t.FieldGoal50Plus +
		float64(line.ExtraPointsMade)*t.ExtraPoint +
		line.Sacks*t.Sack +
		float64(line.DefInterceptions)*t.DefInterception +
		float64(line.FumbleRecoveries)*t.FumbleRecovery +
		float64(line.DefensiveTDs)*t.DefensiveTD

	return math.Round(points*100) / 100
}
