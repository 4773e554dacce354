// Package video talks to the YouTube Data API behind a circuit breaker.
package video

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cinevault/apiserver/config"
	"github.com/cinevault/apiserver/internal/logging"
	"github.com/cinevault/apiserver/internal/metrics"
	"github.com/cinevault/apiserver/types"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	breakerName       = "youtube-api"
	defaultMaxResults = 12
	maxResultsCap     = 50
)

var (
	ErrVideoNotFound = errors.New("video not found")
	ErrUnavailable   = errors.New("video provider unavailable")
)

// YouTubeClient searches and looks up videos.
type YouTubeClient struct {
	service    *youtube.Service
	cb         *gobreaker.CircuitBreaker[any]
	maxResults int64
}

// NewYouTubeClient builds a client authenticated with the configured API key.
// Extra options are appended, which lets tests point the client at a fake endpoint.
func NewYouTubeClient(ctx context.Context, cfg config.YouTubeConfig, opts ...option.ClientOption) (*YouTubeClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("youtube api key is required")
	}

	clientOpts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	service, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &YouTubeClient{service: service, cb: cb, maxResults: maxResults}, nil
}

// Search runs a video-only search. maxResults <= 0 uses the configured default.
func (c *YouTubeClient) Search(ctx context.Context, query, pageToken string, maxResults int64) (types.VideoPage, error) {
	if maxResults <= 0 {
		maxResults = c.maxResults
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}

	result, err := c.cb.Execute(func() (any, error) {
		call := c.service.Search.List([]string{"snippet"}).
			Q(query).
			Type("video").
			MaxResults(maxResults).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		return call.Do()
	})
	if err != nil {
		return types.VideoPage{}, unavailable(err)
	}

	resp := result.(*youtube.SearchListResponse)
	page := types.VideoPage{
		Items:         make([]types.Video, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
		PrevPageToken: resp.PrevPageToken,
	}
	if resp.PageInfo != nil {
		page.TotalResults = resp.PageInfo.TotalResults
	}
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		page.Items = append(page.Items, types.Video{
			ID:           item.Id.VideoId,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelTitle: item.Snippet.ChannelTitle,
			ThumbnailURL: bestThumbnail(item.Snippet.Thumbnails),
			PublishedAt:  item.Snippet.PublishedAt,
		})
	}
	return page, nil
}

// Get looks up a single video by id.
func (c *YouTubeClient) Get(ctx context.Context, id string) (types.Video, error) {
	result, err := c.cb.Execute(func() (any, error) {
		return c.service.Videos.List([]string{"snippet"}).Id(id).Context(ctx).Do()
	})
	if err != nil {
		return types.Video{}, unavailable(err)
	}

	resp := result.(*youtube.VideoListResponse)
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return types.Video{}, ErrVideoNotFound
	}
	item := resp.Items[0]
	return types.Video{
		ID:           item.Id,
		Title:        item.Snippet.Title,
		Description:  item.Snippet.Description,
		ChannelTitle: item.Snippet.ChannelTitle,
		ThumbnailURL: bestThumbnail(item.Snippet.Thumbnails),
		PublishedAt:  item.Snippet.PublishedAt,
	}, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func bestThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, candidate := range []*youtube.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if candidate != nil && candidate.Url != "" {
			return candidate.Url
		}
	}
	return ""
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
