package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cinevault/apiserver/types"
	"github.com/google/uuid"
)

// CommentRepository handles persistence for comments.
type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Get(ctx context.Context, id string) (types.Comment, error) {
	const query = `
		SELECT id, body, movie_ref, user_id, created_at, updated_at
		FROM comments
		WHERE id = $1`
	var comment types.Comment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&comment.ID,
		&comment.Body,
		&comment.MovieRef,
		&comment.UserID,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)
	if err != nil {
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

	const query = `
		INSERT INTO comments (id, body, movie_ref, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		comment.ID,
		comment.Body,
		comment.MovieRef,
		comment.UserID,
		comment.CreatedAt,
		comment.UpdatedAt,
	); err != nil {
		return types.Comment{}, mapError(err)
	}
	return comment, nil
}

func (r *CommentRepository) UpdateBody(ctx context.Context, id, body string) (types.Comment, error) {
	const query = `
		UPDATE comments
		SET body = $1, updated_at = $2
		WHERE id = $3
		RETURNING id, body, movie_ref, user_id, created_at, updated_at`
	var comment types.Comment
	err := r.db.QueryRowContext(ctx, query, body, time.Now().UTC(), id).Scan(
		&comment.ID,
		&comment.Body,
		&comment.MovieRef,
		&comment.UserID,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)
	if err != nil {
		return types.Comment{}, mapError(err)
	}
	return comment, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return rowsAffected(result)
}

// ListByMovie returns the comments on movieRef newest-first with authors resolved.
func (r *CommentRepository) ListByMovie(ctx context.Context, movieRef string) ([]types.CommentView, error) {
	const query = `
		SELECT c.id, c.body, c.movie_ref, c.user_id, c.created_at, c.updated_at,
		       u.first_name, u.last_name, u.email
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.movie_ref = $1
		ORDER BY c.created_at DESC, c.id DESC`
	rows, err := r.db.QueryContext(ctx, query, movieRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []types.CommentView
	for rows.Next() {
		var (
			view  types.CommentView
			first string
			last  string
		)
		if err := rows.Scan(
			&view.ID,
			&view.Body,
			&view.MovieRef,
			&view.UserID,
			&view.CreatedAt,
			&view.UpdatedAt,
			&first,
			&last,
			&view.Author.Email,
		); err != nil {
			return nil, err
		}
		view.Author.ID = view.UserID
		view.Author.Name = types.User{FirstName: first, LastName: last}.DisplayName()
		views = append(views, view)
	}
	return views, rows.Err()
}

func (r *CommentRepository) ListByUser(ctx context.Context, userID string) ([]types.Comment, error) {
	const query = `
		SELECT id, body, movie_ref, user_id, created_at, updated_at
		FROM comments
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	comments := []types.Comment{}
	for rows.Next() {
		var comment types.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.Body,
			&comment.MovieRef,
			&comment.UserID,
			&comment.CreatedAt,
			&comment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}
