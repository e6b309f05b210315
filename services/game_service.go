package services

import (
	"context"

	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
)

// GameService serves the schedule with derived timing attached
type GameService struct {
	games  GameRepository
	policy *EditWindowPolicy
}

// NewGameService creates a new game service
func NewGameService(games GameRepository, policy *EditWindowPolicy) *GameService {
	return &GameService{games: games, policy: policy}
}

// WeekGames returns the stored games of a week
func (s *GameService) WeekGames(ctx context.Context, season, week int) ([]*models.Game, error) {
	games, err := s.games.FindByWeek(ctx, season, week)
	if err != nil {
		return nil, errors.Wrapf(err, "load games for week %d", week)
	}
	if games == nil {
		games = []*models.Game{}
	}
	return games, nil
}

// WeekWindow reports kickoff, state and editability for every game of the week
func (s *GameService) WeekWindow(ctx context.Context, season, week int) (models.WeekWindow, error) {
	games, err := s.WeekGames(ctx, season, week)
	if err != nil {
		return models.WeekWindow{}, err
	}
	return s.policy.WindowStatus(season, week, games), nil
}
