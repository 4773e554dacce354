package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cinevault/apiserver/types"
	"github.com/google/uuid"
)

// MovieRepository handles persistence for catalog movies.
type MovieRepository struct {
	db *sql.DB
}

func NewMovieRepository(db *sql.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

func (r *MovieRepository) List(ctx context.Context, offset, limit int) ([]types.Movie, int, error) {
	const countQuery = `SELECT COUNT(*) FROM movies`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = `
		SELECT id, title, video_id, thumbnail_url, user_id, created_at
		FROM movies
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	movies := make([]types.Movie, 0, limit)
	for rows.Next() {
		var movie types.Movie
		if err := rows.Scan(
			&movie.ID,
			&movie.Title,
			&movie.VideoID,
			&movie.ThumbnailURL,
			&movie.UserID,
			&movie.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		movies = append(movies, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return movies, total, nil
}

func (r *MovieRepository) Get(ctx context.Context, id string) (types.Movie, error) {
	const query = `
		SELECT id, title, video_id, thumbnail_url, user_id, created_at
		FROM movies
		WHERE id = $1`
	var movie types.Movie
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&movie.ID,
		&movie.Title,
		&movie.VideoID,
		&movie.ThumbnailURL,
		&movie.UserID,
		&movie.CreatedAt,
	)
	if err != nil {
		return types.Movie{}, mapError(err)
	}
	return movie, nil
}

func (r *MovieRepository) Create(ctx context.Context, movie types.Movie) (types.Movie, error) {
	if movie.ID == "" {
		movie.ID = uuid.NewString()
	}
	movie.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO movies (id, title, video_id, thumbnail_url, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		movie.ID,
		movie.Title,
		movie.VideoID,
		movie.ThumbnailURL,
		movie.UserID,
		movie.CreatedAt,
	); err != nil {
		return types.Movie{}, mapError(err)
	}
	return movie, nil
}

func (r *MovieRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return rowsAffected(result)
}
