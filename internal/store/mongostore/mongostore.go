// Package mongostore implements the repositories on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/cinevault/apiserver/internal/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	userCollection    = "users"
	movieCollection   = "movies"
	commentCollection = "comments"
	ratingCollection  = "ratings"
)

// Repositories groups the MongoDB repositories built on one database.
type Repositories struct {
	Users    *UserRepository
	Movies   *MovieRepository
	Comments *CommentRepository
	Ratings  *RatingRepository
}

// New creates the indexes every repository relies on and returns the repositories.
func New(ctx context.Context, db *mongo.Database) (*Repositories, error) {
	if err := ensureIndexes(ctx, db); err != nil {
		return nil, err
	}
	return &Repositories{
		Users:    &UserRepository{db: db},
		Movies:   &MovieRepository{db: db},
		Comments: &CommentRepository{db: db},
		Ratings:  &RatingRepository{db: db},
	}, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		userCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "reset_token_hash", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"reset_token_hash": bson.M{"$exists": true}}),
			},
		},
		movieCollection: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "video_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		commentCollection: {
			{Keys: bson.D{{Key: "movie_ref", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ratingCollection: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "movie_ref", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "movie_ref", Value: 1}}},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", collection, err)
		}
	}
	return nil
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrConflict
	default:
		return err
	}
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
