package database

import (
	"context"

	"nfl-pickem/logging"
	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoGameRepository struct {
	collection *mongo.Collection
	logger     *logging.Logger
}

func NewMongoGameRepository(db *MongoDB) *MongoGameRepository {
	collection := db.GetCollection("games")
	logger := logging.WithPrefix("MongoGameRepo")

	ctx, cancel := WithShortTimeout()
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "season", Value: 1}, {Key: "week", Value: 1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Errorf("Failed to create indexes on games collection: %v", err)
	}

	return &MongoGameRepository{
		collection: collection,
		logger:     logger,
	}
}

// FindByWeek returns the week's games ordered by schedule
func (r *MongoGameRepository) FindByWeek(ctx context.Context, season, week int) ([]*models.Game, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "scheduled_date", Value: 1},
		{Key: "id", Value: 1},
	})
	cursor, err := r.collection.Find(ctx, bson.M{"season": season, "week": week}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find games for season %d week %d", season, week)
	}
	defer cursor.Close(ctx)

	var games []*models.Game
	if err := cursor.All(ctx, &games); err != nil {
		return nil, errors.Wrap(err, "failed to decode games")
	}
	return games, nil
}

// FindByID returns models.ErrNotFound when the game is unknown
func (r *MongoGameRepository) FindByID(ctx context.Context, gameID string) (*models.Game, error) {
	var game models.Game
	if err := r.collection.FindOne(ctx, bson.M{"id": gameID}).Decode(&game); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to find game %s", gameID)
	}
	return &game, nil
}

// BulkUpsertGames writes the feed snapshot with one unordered bulk write
func (r *MongoGameRepository) BulkUpsertGames(ctx context.Context, games []*models.Game) error {
	if len(games) == 0 {
		return nil
	}

	operations := make([]mongo.WriteModel, 0, len(games))
	for _, game := range games {
		operation := mongo.NewReplaceOneModel().
			SetFilter(bson.M{"id": game.ID}).
			SetReplacement(game).
			SetUpsert(true)
		operations = append(operations, operation)
	}

	result, err := r.collection.BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false))
	if err != nil {
		r.logger.Errorf("Bulk write error details: %v", err)
		return errors.Wrap(err, "bulk upsert games failed")
	}

	r.logger.Debugf("Processed %d games: %d upserted, %d modified",
		len(games), result.UpsertedCount, result.ModifiedCount)
	return nil
}
