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

type CommentRepository struct {
	db *mongo.Database
}

func (r *CommentRepository) collection() *mongo.Collection {
	return r.db.Collection(commentCollection)
}

func (r *CommentRepository) Get(ctx context.Context, id string) (types.Comment, error) {
	var comment types.Comment
	if err := r.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		return types.Comment{}, mapError(err)
	}
	return comment, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	now := time.Now().UTC()
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	comment.CreatedAt = now
	comment.UpdatedAt = now

	if _, err := r.collection().InsertOne(ctx, comment); err != nil {
		return types.Comment{}, mapError(err)
	}
	return comment, nil
}

func (r *CommentRepository) UpdateBody(ctx context.Context, id, body string) (types.Comment, error) {
	var comment types.Comment
	err := r.collection().FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"body": body, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&comment)
	if err != nil {
		return types.Comment{}, mapError(err)
	}
	return comment, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

type commentWithAuthor struct {
	types.Comment `bson:",inline"`
	Author        *types.User `bson:"author,omitempty"`
}

// ListByMovie joins each comment with its author through $lookup.
func (r *CommentRepository) ListByMovie(ctx context.Context, movieRef string) ([]types.CommentView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "movie_ref", Value: movieRef}}}},
		{{Key: "$sort", Value: newestFirst}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: userCollection},
			{Key: "localField", Value: "user_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "author"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$author"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}

	cursor, err := r.collection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var views []types.CommentView
	for cursor.Next(ctx) {
		var doc commentWithAuthor
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		view := types.CommentView{Comment: doc.Comment}
		if doc.Author != nil {
			view.Author = types.CommentAuthor{
				ID:    doc.Author.ID,
				Name:  doc.Author.DisplayName(),
				Email: doc.Author.Email,
			}
		}
		views = append(views, view)
	}
	return views, cursor.Err()
}

func (r *CommentRepository) ListByUser(ctx context.Context, userID string) ([]types.Comment, error) {
	cursor, err := r.collection().Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	comments := []types.Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}
