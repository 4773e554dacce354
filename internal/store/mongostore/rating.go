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

type RatingRepository struct {
	db *mongo.Database
}

func (r *RatingRepository) collection() *mongo.Collection {
	return r.db.Collection(ratingCollection)
}

func (r *RatingRepository) Get(ctx context.Context, id string) (types.Rating, error) {
	var rating types.Rating
	if err := r.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&rating); err != nil {
		return types.Rating{}, mapError(err)
	}
	return rating, nil
}

func (r *RatingRepository) GetByUserAndMovie(ctx context.Context, userID, movieRef string) (types.Rating, error) {
	var rating types.Rating
	err := r.collection().FindOne(ctx, bson.M{"user_id": userID, "movie_ref": movieRef}).Decode(&rating)
	if err != nil {
		return types.Rating{}, mapError(err)
	}
	return rating, nil
}

// Upsert relies on the unique (user_id, movie_ref) index. The _id is only
// written on insert, so a returned document carrying it was just created.
func (r *RatingRepository) Upsert(ctx context.Context, userID, movieRef string, value int) (types.Rating, bool, error) {
	now := time.Now().UTC()
	newID := uuid.NewString()

	var rating types.Rating
	err := r.collection().FindOneAndUpdate(
		ctx,
		bson.M{"user_id": userID, "movie_ref": movieRef},
		bson.M{
			"$set":         bson.M{"value": value, "updated_at": now},
			"$setOnInsert": bson.M{"_id": newID, "created_at": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&rating)
	if err != nil {
		return types.Rating{}, false, mapError(err)
	}
	return rating, rating.ID == newID, nil
}

func (r *RatingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *RatingRepository) ListByUser(ctx context.Context, userID string) ([]types.Rating, error) {
	sortByUpdate := bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}
	cursor, err := r.collection().Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(sortByUpdate))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	ratings := []types.Rating{}
	if err := cursor.All(ctx, &ratings); err != nil {
		return nil, err
	}
	return ratings, nil
}

func (r *RatingRepository) Summary(ctx context.Context, movieRef string) (float64, int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "movie_ref", Value: movieRef}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "average", Value: bson.D{{Key: "$avg", Value: "$value"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection().Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, err
	}
	defer cursor.Close(ctx)

	var result struct {
		Average float64 `bson:"average"`
		Count   int     `bson:"count"`
	}
	if !cursor.Next(ctx) {
		return 0, 0, cursor.Err()
	}
	if err := cursor.Decode(&result); err != nil {
		return 0, 0, err
	}
	return result.Average, result.Count, nil
}
