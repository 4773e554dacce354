package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cinevault/apiserver/types"
)

const MaxCommentLength = 1000

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	Get(ctx context.Context, id string) (types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	UpdateBody(ctx context.Context, id, body string) (types.Comment, error)
	Delete(ctx context.Context, id string) error
	ListByMovie(ctx context.Context, movieRef string) ([]types.CommentView, error)
	ListByUser(ctx context.Context, userID string) ([]types.Comment, error)
}

// CommentService encapsulates comment use-cases. Mutations are owner-only.
type CommentService struct {
	repo CommentRepository
}

func NewCommentService(repo CommentRepository) *CommentService {
	return &CommentService{repo: repo}
}

func (s *CommentService) Create(ctx context.Context, actorID, movieRef, body string) (types.Comment, error) {
	movieRef = strings.TrimSpace(movieRef)
	if movieRef == "" {
		return types.Comment{}, invalid("movieRef", "is required")
	}
	body, err := normalizeBody(body)
	if err != nil {
		return types.Comment{}, err
	}

	comment, err := s.repo.Create(ctx, types.Comment{
		Body:     body,
		MovieRef: movieRef,
		UserID:   actorID,
	})
	if err != nil {
		return types.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// ListByMovie splits the movie's comments into the actor's own and everyone
// else's, both newest first.
func (s *CommentService) ListByMovie(ctx context.Context, actorID, movieRef string) (types.MovieComments, error) {
	views, err := s.repo.ListByMovie(ctx, movieRef)
	if err != nil {
		return types.MovieComments{}, fmt.Errorf("list comments: %w", err)
	}

	result := types.MovieComments{
		Mine:   []types.CommentView{},
		Others: []types.CommentView{},
	}
	for _, view := range views {
		if view.UserID == actorID {
			result.Mine = append(result.Mine, view)
		} else {
			result.Others = append(result.Others, view)
		}
	}
	return result, nil
}

func (s *CommentService) ListByUser(ctx context.Context, userID string) ([]types.Comment, error) {
	comments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		comments = []types.Comment{}
	}
	return comments, nil
}

func (s *CommentService) Update(ctx context.Context, actorID, id, body string) (types.Comment, error) {
	body, err := normalizeBody(body)
	if err != nil {
		return types.Comment{}, err
	}
	if err := s.authorize(ctx, actorID, id); err != nil {
		return types.Comment{}, err
	}
	return s.repo.UpdateBody(ctx, id, body)
}

func (s *CommentService) Delete(ctx context.Context, actorID, id string) error {
	if err := s.authorize(ctx, actorID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *CommentService) authorize(ctx context.Context, actorID, id string) error {
	comment, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if comment.UserID != actorID {
		return ErrForbidden
	}
	return nil
}

func normalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", invalid("body", "is required")
	}
	if utf8.RuneCountInString(body) > MaxCommentLength {
		return "", invalid("body", fmt.Sprintf("must be at most %d characters", MaxCommentLength))
	}
	return body, nil
}
