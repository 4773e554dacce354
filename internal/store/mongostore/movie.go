package mongostore

import (
	"context"
	"time"

	"github.com/cinevault/apiserver/internal/store"
	"github.com/cinevault/apiserver/types"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type MovieRepository struct {
	db *mongo.Database
}

func (r *MovieRepository) collection() *mongo.Collection {
	return r.db.Collection(movieCollection)
}

func (r *MovieRepository) List(ctx context.Context, offset, limit int) ([]types.Movie, int, error) {
	total, err := r.collection().CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().
		SetSort(newestFirst).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := r.collection().Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	movies := make([]types.Movie, 0, limit)
	if err := cursor.All(ctx, &movies); err != nil {
		return nil, 0, err
	}
	return movies, int(total), nil
}

func (r *MovieRepository) Get(ctx context.Context, id string) (types.Movie, error) {
	var movie types.Movie
	if err := r.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&movie); err != nil {
		return types.Movie{}, mapError(err)
	}
	return movie, nil
}

func (r *MovieRepository) Create(ctx context.Context, movie types.Movie) (types.Movie, error) {
	if movie.ID == "" {
		movie.ID = uuid.NewString()
	}
	movie.CreatedAt = time.Now().UTC()

	if _, err := r.collection().InsertOne(ctx, movie); err != nil {
		return types.Movie{}, mapError(err)
	}
	return movie, nil
}

func (r *MovieRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
