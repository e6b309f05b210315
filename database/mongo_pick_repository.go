package database

import (
	"context"
	"sort"
	"time"

	"nfl-pickem/logging"
	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	picksCollection = "picks"

	pickKeyIndex         = "pick_user_season_week"
	lockClaimIndex       = "finalized_lock_of_week_claim"
	touchdownClaimIndex  = "finalized_touchdown_scorer_claim"
	finalizedByWeekIndex = "finalized_by_week"
)

// MongoPickRepository stores picks. Week-scoped scarcity of the lock of the
// week and the touchdown scorer is enforced by partial unique indexes that only
// cover finalized documents with a non-empty value, so the first finalized
// writer wins and the loser gets a duplicate key error.
type MongoPickRepository struct {
	collection *mongo.Collection
	logger     *logging.Logger
}

// NewMongoPickRepository creates the repository and ensures its indexes
func NewMongoPickRepository(db *MongoDB) (*MongoPickRepository, error) {
	r := &MongoPickRepository{
		collection: db.GetCollection(picksCollection),
		logger:     logging.WithPrefix("MongoPickRepo"),
	}

	ctx, cancel := WithLongTimeout()
	defer cancel()
	if err := r.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// EnsureIndexes creates the document key and claim indexes
func (r *MongoPickRepository) EnsureIndexes(ctx context.Context) error {
	claimFilter := func(field string) bson.M {
		return bson.M{
			"is_finalized": true,
			field:          bson.M{"$gt": ""},
		}
	}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "season", Value: 1}, {Key: "week", Value: 1}},
			Options: options.Index().SetName(pickKeyIndex).SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "season", Value: 1}, {Key: "week", Value: 1}, {Key: "lock_of_week", Value: 1}},
			Options: options.Index().
				SetName(lockClaimIndex).
				SetUnique(true).
				SetPartialFilterExpression(claimFilter("lock_of_week")),
		},
		{
			Keys: bson.D{{Key: "season", Value: 1}, {Key: "week", Value: 1}, {Key: "touchdown_scorer", Value: 1}},
			Options: options.Index().
				SetName(touchdownClaimIndex).
				SetUnique(true).
				SetPartialFilterExpression(claimFilter("touchdown_scorer")),
		},
		{
			Keys:    bson.D{{Key: "season", Value: 1}, {Key: "week", Value: 1}, {Key: "is_finalized", Value: 1}},
			Options: options.Index().SetName(finalizedByWeekIndex),
		},
	}

	names, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return errors.Wrap(err, "failed to create pick indexes")
	}
	r.logger.Debugf("Ensured indexes %v", names)
	return nil
}

// Upsert creates or replaces the user-editable fields of a pick. Outcomes are
// left untouched; they belong to the resolver.
func (r *MongoPickRepository) Upsert(ctx context.Context, pick *models.Pick) error {
	now := time.Now().UTC()
	pick.UpdatedAt = now
	if pick.CreatedAt.IsZero() {
		pick.CreatedAt = now
	}

	filter := bson.M{
		"user_id": pick.UserID,
		"season":  pick.Season,
		"week":    pick.Week,
	}

	set := bson.M{
		"selections":       pick.Selections,
		"lock_of_week":     pick.LockOfWeek,
		"touchdown_scorer": pick.TouchdownScorer,
		"is_finalized":     pick.IsFinalized,
		"updated_at":       pick.UpdatedAt,
	}
	unset := bson.M{}
	if pick.PropBet != nil {
		set["prop_bet"] = pick.PropBet
	} else {
		unset["prop_bet"] = ""
	}
	if pick.FinalizedAt != nil {
		set["finalized_at"] = pick.FinalizedAt
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": pick.CreatedAt},
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return classifyWriteError("upsert pick", err, map[string]claimField{
		lockClaimIndex:      {field: "lockOfWeek", value: pick.LockOfWeek},
		touchdownClaimIndex: {field: "touchdownScorer", value: pick.TouchdownScorer},
	})
}

// FindByUserAndWeek returns nil, nil when the user has no pick for the week
func (r *MongoPickRepository) FindByUserAndWeek(ctx context.Context, userID, season, week int) (*models.Pick, error) {
	filter := bson.M{
		"user_id": userID,
		"season":  season,
		"week":    week,
	}

	var pick models.Pick
	err := r.collection.FindOne(ctx, filter).Decode(&pick)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find pick")
	}
	return &pick, nil
}

// FindFinalizedByWeek returns every finalized pick for a week ordered by user
func (r *MongoPickRepository) FindFinalizedByWeek(ctx context.Context, season, week int) ([]*models.Pick, error) {
	return r.find(ctx, bson.M{"season": season, "week": week, "is_finalized": true})
}

// FindFinalizedBySeason returns every finalized pick for a season
func (r *MongoPickRepository) FindFinalizedBySeason(ctx context.Context, season int) ([]*models.Pick, error) {
	return r.find(ctx, bson.M{"season": season, "is_finalized": true})
}

func (r *MongoPickRepository) find(ctx context.Context, filter bson.M) ([]*models.Pick, error) {
	opts := options.Find().SetSort(bson.D{{Key: "week", Value: 1}, {Key: "user_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query picks")
	}
	defer cursor.Close(ctx)

	var picks []*models.Pick
	if err := cursor.All(ctx, &picks); err != nil {
		return nil, errors.Wrap(err, "failed to decode picks")
	}
	return picks, nil
}

// FinalizedWeeks lists the weeks holding at least one finalized pick,
// optionally for a single user
func (r *MongoPickRepository) FinalizedWeeks(ctx context.Context, season int, userID *int) ([]int, error) {
	filter := bson.M{"season": season, "is_finalized": true}
	if userID != nil {
		filter["user_id"] = *userID
	}

	values, err := r.collection.Distinct(ctx, "week", filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list finalized weeks")
	}
	weeks := toInts(values)
	sort.Ints(weeks)
	return weeks, nil
}

// UpdateOutcomes overwrites only the outcomes map of a pick
func (r *MongoPickRepository) UpdateOutcomes(ctx context.Context, userID, season, week int, outcomes map[string]models.Outcome) error {
	filter := bson.M{"user_id": userID, "season": season, "week": week}
	update := bson.M{"$set": bson.M{"outcomes": outcomes}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return classifyWriteError("update outcomes", err, nil)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePropBet sets the moderation state of a pick's prop bet
func (r *MongoPickRepository) UpdatePropBet(ctx context.Context, userID, season, week int, prop *models.PropBet) error {
	filter := bson.M{
		"user_id":  userID,
		"season":   season,
		"week":     week,
		"prop_bet": bson.M{"$exists": true},
	}
	update := bson.M{"$set": bson.M{
		"prop_bet.status":  prop.Status,
		"prop_bet.outcome": prop.Outcome,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return classifyWriteError("update prop bet", err, nil)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes a user's pick for the week
func (r *MongoPickRepository) Delete(ctx context.Context, userID, season, week int) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID, "season": season, "week": week})
	if err != nil {
		return classifyWriteError("delete pick", err, nil)
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
