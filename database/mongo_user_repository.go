package database

import (
	"context"

	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserRepository is a read-only view over the users collection owned by
// the account service
type MongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(db *MongoDB) *MongoUserRepository {
	return &MongoUserRepository{collection: db.GetCollection("users")}
}

// FindByIDs returns the directory entries that exist for ids
func (r *MongoUserRepository) FindByIDs(ctx context.Context, ids []int) (map[int]models.User, error) {
	users := make(map[int]models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	opts := options.Find().SetProjection(bson.M{"_id": 1, "name": 1, "avatar_ref": 1, "is_admin": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query users")
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var user models.User
		if err := cursor.Decode(&user); err != nil {
			return nil, errors.Wrap(err, "failed to decode user")
		}
		users[user.ID] = user
	}
	return users, cursor.Err()
}
