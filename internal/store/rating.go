package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cinevault/apiserver/types"
	"github.com/google/uuid"
)

// RatingRepository handles persistence for ratings.
type RatingRepository struct {
	db *sql.DB
}

func NewRatingRepository(db *sql.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

const ratingColumns = `id, value, movie_ref, user_id, created_at, updated_at`

func scanRating(row interface{ Scan(...any) error }) (types.Rating, error) {
	var rating types.Rating
	err := row.Scan(
		&rating.ID,
		&rating.Value,
		&rating.MovieRef,
		&rating.UserID,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		return types.Rating{}, mapError(err)
	}
	return rating, nil
}

func (r *RatingRepository) Get(ctx context.Context, id string) (types.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE id = $1`
	return scanRating(r.db.QueryRowContext(ctx, query, id))
}

func (r *RatingRepository) GetByUserAndMovie(ctx context.Context, userID, movieRef string) (types.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE user_id = $1 AND movie_ref = $2`
	return scanRating(r.db.QueryRowContext(ctx, query, userID, movieRef))
}

// Upsert writes the (userID, movieRef) rating in one statement and reports
// whether a new row was inserted.
func (r *RatingRepository) Upsert(ctx context.Context, userID, movieRef string, value int) (types.Rating, bool, error) {
	now := time.Now().UTC()
	const query = `
		INSERT INTO ratings (id, value, movie_ref, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, movie_ref)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		RETURNING id, value, movie_ref, user_id, created_at, updated_at, (xmax = 0) AS inserted`
	var (
		rating   types.Rating
		inserted bool
	)
	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), value, movieRef, userID, now).Scan(
		&rating.ID,
		&rating.Value,
		&rating.MovieRef,
		&rating.UserID,
		&rating.CreatedAt,
		&rating.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return types.Rating{}, false, mapError(err)
	}
	return rating, inserted, nil
}

func (r *RatingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM ratings WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return rowsAffected(result)
}

func (r *RatingRepository) ListByUser(ctx context.Context, userID string) ([]types.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE user_id = $1 ORDER BY updated_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	ratings := []types.Rating{}
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

// Summary returns the mean value and count of ratings for movieRef.
func (r *RatingRepository) Summary(ctx context.Context, movieRef string) (float64, int, error) {
	const query = `
		SELECT COALESCE(AVG(value), 0)::float8, COUNT(*)
		FROM ratings
		WHERE movie_ref = $1`
	var (
		avg   float64
		count int
	)
	if err := r.db.QueryRowContext(ctx, query, movieRef).Scan(&avg, &count); err != nil {
		return 0, 0, err
	}
	return avg, count, nil
}
