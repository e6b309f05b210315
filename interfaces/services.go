package interfaces

import (
	"context"
	"time"

	"nfl-pickem/models"
	"nfl-pickem/services"
)

// PickService defines the pick operations used by handlers
type PickService interface {
	Get(ctx context.Context, userID, season, week int) (*models.Pick, error)
	Upsert(ctx context.Context, userID, season, week int, payload models.PickPayload) (*models.Pick, error)
	Delete(ctx context.Context, userID, season, week int) error
	ListWeeksWithFinalizedPicks(ctx context.Context, season int, userID *int) ([]int, error)
	RevealFinalized(ctx context.Context, viewerID int, isAdmin bool, season, week int) ([]*models.Pick, error)
	ModeratePropBet(ctx context.Context, userID, season, week int, decision models.PropBetModeration) error
}

// GameService defines schedule reads used by handlers
type GameService interface {
	WeekGames(ctx context.Context, season, week int) ([]*models.Game, error)
	WeekWindow(ctx context.Context, season, week int) (models.WeekWindow, error)
}

// LeaderboardService defines standings reads
type LeaderboardService interface {
	SeasonStandings(ctx context.Context, season int) ([]models.LeaderboardRow, error)
	WeeklyStandings(ctx context.Context, season, week int) ([]models.LeaderboardRow, error)
}

// WeekProcessor resolves and scores a week on demand
type WeekProcessor interface {
	Run(ctx context.Context, season, week int) (services.WeekReport, error)
}

// LiveBroker is the subscribe side of the live channel
type LiveBroker interface {
	Subscribe(userID int) *services.Subscription
	Unsubscribe(id string)
	HeartbeatInterval() time.Duration
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	TestConnection(ctx context.Context) error
}
