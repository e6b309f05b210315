package services

import (
	"context"

	"nfl-pickem/models"
)

// GameRepository stores the schedule/result feed's games
type GameRepository interface {
	FindByWeek(ctx context.Context, season, week int) ([]*models.Game, error)
	FindByID(ctx context.Context, gameID string) (*models.Game, error)
	BulkUpsertGames(ctx context.Context, games []*models.Game) error
}

// PickRepository stores one Pick per (user, season, week).
//
// Upsert must enforce week-scoped uniqueness of lock_of_week and
// touchdown_scorer among finalized picks atomically with the write, returning
// a *models.ConflictError with ConflictClaimed when another finalized pick
// already holds the value, or a *models.TransientStoreError on contention.
type PickRepository interface {
	FindByUserAndWeek(ctx context.Context, userID, season, week int) (*models.Pick, error)
	FindFinalizedByWeek(ctx context.Context, season, week int) ([]*models.Pick, error)
	FindFinalizedBySeason(ctx context.Context, season int) ([]*models.Pick, error)
	FinalizedWeeks(ctx context.Context, season int, userID *int) ([]int, error)
	Upsert(ctx context.Context, pick *models.Pick) error
	UpdateOutcomes(ctx context.Context, userID, season, week int, outcomes map[string]models.Outcome) error
	UpdatePropBet(ctx context.Context, userID, season, week int, prop *models.PropBet) error
	Delete(ctx context.Context, userID, season, week int) error
}

// ScoringRepository stores ScoringRecords keyed by (user, game)
type ScoringRepository interface {
	UpsertRecords(ctx context.Context, records []*models.ScoringRecord) error
	FindByWeek(ctx context.Context, season, week int) ([]*models.ScoringRecord, error)
	FindBySeason(ctx context.Context, season int) ([]*models.ScoringRecord, error)
	DeleteByUserWeek(ctx context.Context, userID, season, week int) error
}

// UserDirectory is a read-only lookup of display information
type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []int) (map[int]models.User, error)
}
