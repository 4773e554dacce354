package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cinevault/apiserver/internal/logging"
	"github.com/cinevault/apiserver/types"
	"github.com/google/uuid"
)

const (
	defaultMovieLimit = 20
	maxMovieLimit     = 100
)

// MovieRepository defines persistence operations for catalog entries.
type MovieRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Movie, int, error)
	Get(ctx context.Context, id string) (types.Movie, error)
	Create(ctx context.Context, movie types.Movie) (types.Movie, error)
	Delete(ctx context.Context, id string) error
}

// ThumbnailMirror copies thumbnails into storage the service controls.
type ThumbnailMirror interface {
	Mirror(ctx context.Context, movieID, source string) (string, error)
	URL(movieID string) string
	Open(ctx context.Context, movieID string) (io.ReadCloser, error)
	Remove(ctx context.Context, movieID string) error
}

// MovieService encapsulates catalog use-cases.
type MovieService struct {
	repo   MovieRepository
	mirror ThumbnailMirror
}

// NewMovieService builds the service. mirror may be nil, in which case
// thumbnail URLs are stored as given.
func NewMovieService(repo MovieRepository, mirror ThumbnailMirror) *MovieService {
	return &MovieService{repo: repo, mirror: mirror}
}

type CreateMovieParams struct {
	Title        string `json:"title" validate:"required,max=200"`
	VideoID      string `json:"videoId" validate:"required,max=64"`
	ThumbnailURL string `json:"thumbnailUrl" validate:"omitempty,url"`
}

func (s *MovieService) List(ctx context.Context, offset, limit int) ([]types.Movie, int, error) {
	if limit <= 0 {
		limit = defaultMovieLimit
	}
	if limit > maxMovieLimit {
		limit = maxMovieLimit
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list movies: %w", err)
	}
	if items == nil {
		items = []types.Movie{}
	}
	return items, total, nil
}

func (s *MovieService) Get(ctx context.Context, id string) (types.Movie, error) {
	return s.repo.Get(ctx, id)
}

// Create adds a catalog entry owned by actorID. A failed thumbnail mirror
// keeps the original URL.
func (s *MovieService) Create(ctx context.Context, actorID string, params CreateMovieParams) (types.Movie, error) {
	params.Title = strings.TrimSpace(params.Title)
	params.VideoID = strings.TrimSpace(params.VideoID)
	params.ThumbnailURL = strings.TrimSpace(params.ThumbnailURL)
	if err := validateStruct(params); err != nil {
		return types.Movie{}, err
	}

	movie := types.Movie{
		ID:           uuid.NewString(),
		Title:        params.Title,
		VideoID:      params.VideoID,
		ThumbnailURL: params.ThumbnailURL,
		UserID:       actorID,
	}
	mirrored := false
	if s.mirror != nil && movie.ThumbnailURL != "" {
		url, err := s.mirror.Mirror(ctx, movie.ID, movie.ThumbnailURL)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("movie_id", movie.ID).Msg("thumbnail mirror failed, keeping source url")
		} else {
			movie.ThumbnailURL = url
			mirrored = true
		}
	}

	created, err := s.repo.Create(ctx, movie)
	if err != nil {
		if mirrored {
			if rmErr := s.mirror.Remove(ctx, movie.ID); rmErr != nil {
				logging.Ctx(ctx).Warn().Err(rmErr).Str("movie_id", movie.ID).Msg("failed to remove orphaned thumbnail")
			}
		}
		return types.Movie{}, fmt.Errorf("create movie: %w", err)
	}
	return created, nil
}

// Delete removes a catalog entry. Only its owner may delete it.
func (s *MovieService) Delete(ctx context.Context, actorID, id string) error {
	movie, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if movie.UserID != actorID {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.mirror != nil && movie.ThumbnailURL == s.mirror.URL(movie.ID) {
		if err := s.mirror.Remove(ctx, movie.ID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("movie_id", movie.ID).Msg("failed to remove mirrored thumbnail")
		}
	}
	return nil
}

// OpenThumbnail streams a mirrored thumbnail. Movies whose thumbnail was not
// mirrored report ErrNotFound.
func (s *MovieService) OpenThumbnail(ctx context.Context, id string) (io.ReadCloser, error) {
	if s.mirror == nil {
		return nil, ErrNotFound
	}
	movie, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if movie.ThumbnailURL != s.mirror.URL(movie.ID) {
		return nil, ErrNotFound
	}
	rc, err := s.mirror.Open(ctx, movie.ID)
	if err != nil {
		return nil, fmt.Errorf("open thumbnail: %w", err)
	}
	return rc, nil
}
