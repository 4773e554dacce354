package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cinevault/apiserver/internal/video"
	"github.com/cinevault/apiserver/types"
)

// VideoProvider searches the external video catalog.
type VideoProvider interface {
	Search(ctx context.Context, query, pageToken string, maxResults int64) (types.VideoPage, error)
	Get(ctx context.Context, id string) (types.Video, error)
}

// VideoService passes searches through to the provider.
type VideoService struct {
	provider VideoProvider
}

// NewVideoService builds the service. A nil provider makes every call
// return ErrProviderUnavailable.
func NewVideoService(provider VideoProvider) *VideoService {
	return &VideoService{provider: provider}
}

func (s *VideoService) Search(ctx context.Context, query, pageToken string, maxResults int64) (types.VideoPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return types.VideoPage{}, invalid("q", "is required")
	}
	if maxResults < 0 {
		return types.VideoPage{}, invalid("maxResults", "must not be negative")
	}
	if s.provider == nil {
		return types.VideoPage{}, ErrProviderUnavailable
	}

	page, err := s.provider.Search(ctx, query, pageToken, maxResults)
	if err != nil {
		return types.VideoPage{}, mapProviderError(err)
	}
	if page.Items == nil {
		page.Items = []types.Video{}
	}
	return page, nil
}

func (s *VideoService) Get(ctx context.Context, id string) (types.Video, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Video{}, invalid("videoId", "is required")
	}
	if s.provider == nil {
		return types.Video{}, ErrProviderUnavailable
	}

	v, err := s.provider.Get(ctx, id)
	if err != nil {
		return types.Video{}, mapProviderError(err)
	}
	return v, nil
}

func mapProviderError(err error) error {
	switch {
	case errors.Is(err, video.ErrVideoNotFound):
		return ErrNotFound
	case errors.Is(err, video.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	default:
		return err
	}
}
