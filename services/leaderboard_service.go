package services

import (
	"context"
	"sort"

	"nfl-pickem/logging"
	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
)

// LeaderboardService derives standings from finalized picks and scoring records
type LeaderboardService struct {
	picks   PickRepository
	records ScoringRepository
	users   UserDirectory
	logger  *logging.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(picks PickRepository, records ScoringRepository, users UserDirectory) *LeaderboardService {
	return &LeaderboardService{
		picks:   picks,
		records: records,
		users:   users,
		logger:  logging.WithPrefix("Leaderboard"),
	}
}

// SeasonStandings ranks every user with a finalized pick in the season
func (s *LeaderboardService) SeasonStandings(ctx context.Context, season int) ([]models.LeaderboardRow, error) {
	picks, err := s.picks.FindFinalizedBySeason(ctx, season)
	if err != nil {
		return nil, errors.Wrapf(err, "load finalized picks for season %d", season)
	}
	records, err := s.records.FindBySeason(ctx, season)
	if err != nil {
		return nil, errors.Wrapf(err, "load scoring records for season %d", season)
	}
	return s.build(ctx, picks, records, 0), nil
}

// WeeklyStandings ranks users for one week and adds their correct/total pick counts
func (s *LeaderboardService) WeeklyStandings(ctx context.Context, season, week int) ([]models.LeaderboardRow, error) {
	picks, err := s.picks.FindFinalizedByWeek(ctx, season, week)
	if err != nil {
		return nil, errors.Wrapf(err, "load finalized picks for week %d", week)
	}
	records, err := s.records.FindByWeek(ctx, season, week)
	if err != nil {
		return nil, errors.Wrapf(err, "load scoring records for week %d", week)
	}
	return s.build(ctx, picks, records, week), nil
}

func (s *LeaderboardService) build(ctx context.Context, picks []*models.Pick, records []*models.ScoringRecord, week int) []models.LeaderboardRow {
	rows := make(map[int]*models.LeaderboardRow)
	row := func(userID int) *models.LeaderboardRow {
		r, ok := rows[userID]
		if !ok {
			r = &models.LeaderboardRow{UserID: userID, Week: week}
			rows[userID] = r
		}
		return r
	}

	type userWeek struct{ userID, week int }
	submitted := make(map[userWeek]bool, len(picks))
	for _, pick := range picks {
		submitted[userWeek{pick.UserID, pick.Week}] = true
		r := row(pick.UserID)
		record := pick.Record()
		r.Wins += record.Wins
		r.Losses += record.Losses
		if week > 0 {
			r.CorrectPicks += record.Wins
			r.TotalPicks += len(pick.Selections)
		}
	}
	// Records outlive a deleted pick until the next scoring pass
	for _, record := range records {
		if !submitted[userWeek{record.UserID, record.Week}] {
			continue
		}
		r := row(record.UserID)
		r.TotalPoints += record.TotalPoints
		r.FantasyPoints += record.FantasyPoints
	}

	if len(rows) == 0 {
		return []models.LeaderboardRow{}
	}

	ids := make([]int, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Warnf("User directory lookup failed, using fallback names: %v", err)
		users = nil
	}

	out := make([]models.LeaderboardRow, 0, len(rows))
	for _, id := range ids {
		r := rows[id]
		user, ok := users[id]
		if !ok {
			user = models.FallbackUser(id)
		}
		r.DisplayName = user.DisplayName
		r.AvatarRef = user.AvatarRef
		r.WinPct = models.UserRecord{Wins: r.Wins, Losses: r.Losses}.GetWinPercentage()
		if r.TotalPicks > 0 {
			r.WinPercentage = float64(r.CorrectPicks) / float64(r.TotalPicks)
		}
		out = append(out, *r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := compareRows(out[i], out[j]); c != 0 {
			return c < 0
		}
		return out[i].UserID < out[j].UserID
	})
	for i := range out {
		if i > 0 && compareRows(out[i-1], out[i]) == 0 {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}

// compareRows orders by total points, fantasy points, then win percentage, all descending
func compareRows(a, b models.LeaderboardRow) int {
	if a.TotalPoints != b.TotalPoints {
		return b.TotalPoints - a.TotalPoints
	}
	if c := descending(a.FantasyPoints, b.FantasyPoints); c != 0 {
		return c
	}
	return descending(a.WinPct, b.WinPct)
}

func descending(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}
