package models

import (
	"fmt"
	"strings"
)

// Team is a franchise known to the engine
type Team struct {
	Abbr string `json:"abbr"`
	Name string `json:"name"`
	City string `json:"city"`
}

// DisplayName returns the full display name
func (t Team) DisplayName() string {
	return t.City + " " + t.Name
}

// IconURL returns the scoreboard logo for the team
func (t Team) IconURL() string {
	return fmt.Sprintf("https://a.espncdn.com/combiner/i?img=/i/teamlogos/nfl/500/scoreboard/%s.png", strings.ToLower(t.Abbr))
}

var teams = map[string]Team{
	// AFC East
	"BUF": {Abbr: "BUF", Name: "Bills", City: "Buffalo"},
	"MIA": {Abbr: "MIA", Name: "Dolphins", City: "Miami"},
	"NE":  {Abbr: "NE", Name: "Patriots", City: "New England"},
	"NYJ": {Abbr: "NYJ", Name: "Jets", City: "New York"},

	// AFC North
	"BAL": {Abbr: "BAL", Name: "Ravens", City: "Baltimore"},
	"CIN": {Abbr: "CIN", Name: "Bengals", City: "Cincinnati"},
	"CLE": {Abbr: "CLE", Name: "Browns", City: "Cleveland"},
	"PIT": {Abbr: "PIT", Name: "Steelers", City: "Pittsburgh"},

	// AFC South
	"HOU": {Abbr: "HOU", Name: "Texans", City: "Houston"},
	"IND": {Abbr: "IND", Name: "Colts", City: "Indianapolis"},
	"JAX": {Abbr: "JAX", Name: "Jaguars", City: "Jacksonville"},
	"TEN": {Abbr: "TEN", Name: "Titans", City: "Tennessee"},

	// AFC West
	"DEN": {Abbr: "DEN", Name: "Broncos", City: "Denver"},
	"KC":  {Abbr: "KC", Name: "Chiefs", City: "Kansas City"},
	"LV":  {Abbr: "LV", Name: "Raiders", City: "Las Vegas"},
	"LAC": {Abbr: "LAC", Name: "Chargers", City: "Los Angeles"},

	// NFC East
	"DAL": {Abbr: "DAL", Name: "Cowboys", City: "Dallas"},
	"NYG": {Abbr: "NYG", Name: "Giants", City: "New York"},
	"PHI": {Abbr: "PHI", Name: "Eagles", City: "Philadelphia"},
	"WAS": {Abbr: "WAS", Name: "Commanders", City: "Washington"},

	// NFC North
	"CHI": {Abbr: "CHI", Name: "Bears", City: "Chicago"},
	"DET": {Abbr: "DET", Name: "Lions", City: "Detroit"},
	"GB":  {Abbr: "GB", Name: "Packers", City: "Green Bay"},
	"MIN": {Abbr: "MIN", Name: "Vikings", City: "Minnesota"},

	// NFC South
	"ATL": {Abbr: "ATL", Name: "Falcons", City: "Atlanta"},
	"CAR": {Abbr: "CAR", Name: "Panthers", City: "Carolina"},
	"NO":  {Abbr: "NO", Name: "Saints", City: "New Orleans"},
	"TB":  {Abbr: "TB", Name: "Buccaneers", City: "Tampa Bay"},

	// NFC West
	"ARI": {Abbr: "ARI", Name: "Cardinals", City: "Arizona"},
	"LAR": {Abbr: "LAR", Name: "Rams", City: "Los Angeles"},
	"SF":  {Abbr: "SF", Name: "49ers", City: "San Francisco"},
	"SEA": {Abbr: "SEA", Name: "Seahawks", City: "Seattle"},
}

// teamAliases maps alternate feed abbreviations to the canonical code
var teamAliases = map[string]string{
	"WSH": "WAS",
	"JAC": "JAX",
	"LA":  "LAR",
}

// NormalizeTeamCode upper-cases a team code and resolves known aliases.
// Unknown codes are returned trimmed and upper-cased.
func NormalizeTeamCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if canonical, ok := teamAliases[code]; ok {
		return canonical
	}
	return code
}

// LookupTeam returns the team for a code, after normalization
func LookupTeam(code string) (Team, bool) {
	team, ok := teams[NormalizeTeamCode(code)]
	return team, ok
}
