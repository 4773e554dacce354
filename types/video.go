package types

// Video is a provider search or lookup result.
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelTitle string `json:"channelTitle"`
	ThumbnailURL string `json:"thumbnailUrl"`
	PublishedAt  string `json:"publishedAt"`
}

// VideoPage is one page of provider search results.
type VideoPage struct {
	Items         []Video `json:"items"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	PrevPageToken string  `json:"prevPageToken,omitempty"`
	TotalResults  int64   `json:"totalResults"`
}
