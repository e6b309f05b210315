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

// MongoScoringRepository stores one ScoringRecord per (user, game)
type MongoScoringRepository struct {
	collection *mongo.Collection
	logger     *logging.Logger
}

func NewMongoScoringRepository(db *MongoDB) *MongoScoringRepository {
	collection := db.GetCollection("scoring_records")
	logger := logging.WithPrefix("MongoScoringRepo")

	ctx, cancel := WithShortTimeout()
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "game_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "season", Value: 1}, {Key: "week", Value: 1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Errorf("Failed to create indexes on scoring collection: %v", err)
	}

	return &MongoScoringRepository{collection: collection, logger: logger}
}

// UpsertRecords replaces each record wholesale so reruns never accumulate
func (r *MongoScoringRepository) UpsertRecords(ctx context.Context, records []*models.ScoringRecord) error {
	if len(records) == 0 {
		return nil
	}

	operations := make([]mongo.WriteModel, 0, len(records))
	for _, record := range records {
		operations = append(operations, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"user_id": record.UserID, "game_id": record.GameID}).
			SetReplacement(record).
			SetUpsert(true))
	}

	result, err := r.collection.BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return classifyWriteError("upsert scoring records", err, nil)
	}
	r.logger.Debugf("Scoring upsert: %d records, %d upserted, %d modified",
		len(records), result.UpsertedCount, result.ModifiedCount)
	return nil
}

// FindByWeek returns the week's records
func (r *MongoScoringRepository) FindByWeek(ctx context.Context, season, week int) ([]*models.ScoringRecord, error) {
	return r.find(ctx, bson.M{"season": season, "week": week})
}

// FindBySeason returns every record of the season
func (r *MongoScoringRepository) FindBySeason(ctx context.Context, season int) ([]*models.ScoringRecord, error) {
	return r.find(ctx, bson.M{"season": season})
}

// DeleteByUserWeek removes a user's records for one week
func (r *MongoScoringRepository) DeleteByUserWeek(ctx context.Context, userID, season, week int) error {
	result, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID, "season": season, "week": week})
	if err != nil {
		return errors.Wrapf(err, "failed to delete scoring records for user %d week %d", userID, week)
	}
	if result.DeletedCount > 0 {
		r.logger.Debugf("Removed %d scoring records for user %d week %d/%d", result.DeletedCount, userID, season, week)
	}
	return nil
}

func (r *MongoScoringRepository) find(ctx context.Context, filter bson.M) ([]*models.ScoringRecord, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 0}).
		SetSort(bson.D{{Key: "user_id", Value: 1}, {Key: "game_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query scoring records")
	}
	defer cursor.Close(ctx)

	var records []*models.ScoringRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, errors.Wrap(err, "failed to decode scoring records")
	}
	return records, nil
}
