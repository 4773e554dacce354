package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/cinevault/apiserver/types"
)

// RatingRepository defines persistence operations for ratings.
// Upsert must be atomic per (userID, movieRef).
type RatingRepository interface {
	Get(ctx context.Context, id string) (types.Rating, error)
	GetByUserAndMovie(ctx context.Context, userID, movieRef string) (types.Rating, error)
	Upsert(ctx context.Context, userID, movieRef string, value int) (types.Rating, bool, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]types.Rating, error)
	Summary(ctx context.Context, movieRef string) (float64, int, error)
}

type RatingService struct {
	repo RatingRepository
}

func NewRatingService(repo RatingRepository) *RatingService {
	return &RatingService{repo: repo}
}

// CreateOrUpdate stores the actor's rating for movieRef. The boolean reports
// whether a new rating was created.
func (s *RatingService) CreateOrUpdate(ctx context.Context, actorID, movieRef string, value int) (types.Rating, bool, error) {
	movieRef = strings.TrimSpace(movieRef)
	if movieRef == "" {
		return types.Rating{}, false, invalid("movieRef", "is required")
	}
	if value < types.MinRatingValue || value > types.MaxRatingValue {
		return types.Rating{}, false, invalid("value", fmt.Sprintf("must be between %d and %d", types.MinRatingValue, types.MaxRatingValue))
	}

	rating, created, err := s.repo.Upsert(ctx, actorID, movieRef, value)
	if err != nil {
		return types.Rating{}, false, fmt.Errorf("upsert rating: %w", err)
	}
	return rating, created, nil
}

// Summary returns the average and count for movieRef along with the actor's
// own value, 0 when they have not rated it.
func (s *RatingService) Summary(ctx context.Context, actorID, movieRef string) (types.RatingSummary, error) {
	avg, count, err := s.repo.Summary(ctx, movieRef)
	if err != nil {
		return types.RatingSummary{}, fmt.Errorf("summarize ratings: %w", err)
	}
	summary := types.RatingSummary{MovieRef: movieRef, Average: avg, Count: count}
	if count == 0 {
		summary.Average = 0
		return summary, nil
	}

	own, err := s.repo.GetByUserAndMovie(ctx, actorID, movieRef)
	switch {
	case err == nil:
		summary.UserRating = own.Value
	case isNotFound(err):
	default:
		return types.RatingSummary{}, fmt.Errorf("load own rating: %w", err)
	}
	return summary, nil
}

func (s *RatingService) ListByUser(ctx context.Context, userID string) ([]types.Rating, error) {
	ratings, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	if ratings == nil {
		ratings = []types.Rating{}
	}
	return ratings, nil
}

func (s *RatingService) Delete(ctx context.Context, actorID, id string) error {
	rating, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if rating.UserID != actorID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}
