package models

// LeaderboardRow is a derived standings row. Weekly rows also carry the pick counts.
type LeaderboardRow struct {
	Rank          int     `json:"rank"`
	UserID        int     `json:"userId"`
	DisplayName   string  `json:"displayName"`
	AvatarRef     string  `json:"avatarRef,omitempty"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinPct        float64 `json:"winPct"`
	TotalPoints   int     `json:"totalPoints"`
	FantasyPoints float64 `json:"fantasyPoints"`
	Week          int     `json:"week,omitempty"`
	CorrectPicks  int     `json:"correctPicks,omitempty"`
	TotalPicks    int     `json:"totalPicks,omitempty"`
	WinPercentage float64 `json:"winPercentage,omitempty"`
}
