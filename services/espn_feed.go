package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"nfl-pickem/models"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
)

// espnRegularSeason is ESPN's season type for regular season games
const espnRegularSeason = 2

type espnScoreboard struct {
	Events []espnEvent `json:"events"`
}

type espnEvent struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Season struct {
		Year int `json:"year"`
		Type int `json:"type"`
	} `json:"season"`
	Week struct {
		Number int `json:"number"`
	} `json:"week"`
	Status struct {
		Type struct {
			Name      string `json:"name"`
			State     string `json:"state"`
			Completed bool   `json:"completed"`
		} `json:"type"`
	} `json:"status"`
	Competitions []espnCompetition `json:"competitions"`
}

type espnCompetition struct {
	Competitors []struct {
		HomeAway string `json:"homeAway"`
		Score    string `json:"score"`
		Team     struct {
			Abbreviation string `json:"abbreviation"`
		} `json:"team"`
	} `json:"competitors"`
	Odds []struct {
		Details string `json:"details"`
	} `json:"odds"`
}

// espnFormat reads ESPN's public scoreboard. The scoreboard carries schedule,
// status, score and line but no scoring plays or box scores.
type espnFormat struct{}

func (espnFormat) seasonPath(season int) string {
	return fmt.Sprintf("?dates=%d0701-%d0131&seasontype=%d&limit=1000", season, season+1, espnRegularSeason)
}

func (espnFormat) weekPath(season, week int) string {
	return fmt.Sprintf("?dates=%d&seasontype=%d&week=%d&limit=100", season, espnRegularSeason, week)
}

func (espnFormat) decode(body []byte) ([]*models.Game, error) {
	var board espnScoreboard
	if err := sonic.Unmarshal(body, &board); err != nil {
		return nil, errors.Wrap(err, "decode ESPN scoreboard")
	}

	games := make([]*models.Game, 0, len(board.Events))
	for _, event := range board.Events {
		if game, ok := espnGame(event); ok {
			games = append(games, game)
		}
	}
	return games, nil
}

// espnGame converts one scoreboard event. Preseason and postseason events
// and events without two competitors are skipped.
func espnGame(event espnEvent) (*models.Game, bool) {
	if event.Season.Type != espnRegularSeason || len(event.Competitions) == 0 {
		return nil, false
	}
	competition := event.Competitions[0]
	if len(competition.Competitors) < 2 {
		return nil, false
	}

	game := &models.Game{
		ID:            event.ID,
		Season:        event.Season.Year,
		Week:          event.Week.Number,
		ScheduledDate: "TBD",
		RawStatus:     event.Status.Type.Name,
	}
	if event.Status.Type.Completed {
		game.RawStatus = "STATUS_FINAL"
	}

	if kickoff, ok := parseESPNDate(event.Date); ok {
		wall := kickoff.Add(EasternOffset(kickoff.Add(-5 * time.Hour)))
		game.ScheduledDate = wall.Format("20060102")
		game.ScheduledTime = wall.Format("3:04 pm")
	}

	started := !strings.EqualFold(event.Status.Type.State, "pre")
	for _, competitor := range competition.Competitors {
		team := models.NormalizeTeamCode(competitor.Team.Abbreviation)
		var score *int
		if started {
			if value, err := strconv.Atoi(competitor.Score); err == nil {
				score = &value
			}
		}
		if competitor.HomeAway == "home" {
			game.HomeTeam, game.HomeScore = team, score
		} else {
			game.AwayTeam, game.AwayScore = team, score
		}
	}

	if len(competition.Odds) > 0 {
		if spread, ok := parseESPNLine(competition.Odds[0].Details, game.HomeTeam); ok {
			game.Spread = &spread
		}
	}
	return game, true
}

func parseESPNDate(raw string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04Z", time.RFC3339, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseESPNLine turns "KC -3.5" into the home team's line. "EVEN" is a pick'em.
func parseESPNLine(details, homeTeam string) (float64, bool) {
	fields := strings.Fields(details)
	if len(fields) == 1 && strings.EqualFold(fields[0], "EVEN") {
		return 0, true
	}
	if len(fields) != 2 {
		return 0, false
	}
	points, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, false
	}
	points = math.Abs(points)
	if models.NormalizeTeamCode(fields[0]) == homeTeam {
		return -points, true
	}
	return points, true
}
