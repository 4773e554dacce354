package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cinevault/apiserver/internal/store"
)

const (
	thumbnailPrefix       = "thumbnails/"
	defaultMaxImageBytes  = 5 << 20
	defaultFetchTimeout   = 10 * time.Second
	localThumbnailURLPath = "/thumbnails/"
)

var (
	ErrUnsupportedSource = errors.New("thumbnail source must be an https url")
	ErrNotAnImage        = errors.New("thumbnail source is not an image")
	ErrImageTooLarge     = errors.New("thumbnail exceeds size limit")
)

// ThumbnailMirror copies remote thumbnails into object storage.
type ThumbnailMirror struct {
	store         ObjectStorage
	client        *http.Client
	publicBaseURL string
	maxBytes      int64
}

// NewThumbnailMirror builds a mirror. When publicBaseURL is empty the mirrored
// images are served by the API under /thumbnails/{movieID}.
func NewThumbnailMirror(store ObjectStorage, client *http.Client, publicBaseURL string, maxBytes int64) *ThumbnailMirror {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	return &ThumbnailMirror{
		store:         store,
		client:        client,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxBytes:      maxBytes,
	}
}

// ThumbnailKey is the object key of a movie's mirrored thumbnail.
func ThumbnailKey(movieID string) string {
	return thumbnailPrefix + movieID
}

// Mirror downloads source and stores it under the movie's key, returning the URL clients should use.
func (m *ThumbnailMirror) Mirror(ctx context.Context, movieID, source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return "", ErrUnsupportedSource
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build thumbnail request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch thumbnail: unexpected status %d", resp.StatusCode)
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "", ErrNotAnImage
	}
	if resp.ContentLength > m.maxBytes {
		return "", ErrImageTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, m.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read thumbnail: %w", err)
	}
	if int64(len(data)) > m.maxBytes {
		return "", ErrImageTooLarge
	}

	key := ThumbnailKey(movieID)
	if err := m.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mediaType); err != nil {
		return "", fmt.Errorf("store thumbnail: %w", err)
	}
	return m.URL(movieID), nil
}

// URL returns where the mirrored thumbnail of movieID is served.
func (m *ThumbnailMirror) URL(movieID string) string {
	if m.publicBaseURL != "" {
		return m.publicBaseURL + "/" + ThumbnailKey(movieID)
	}
	return localThumbnailURLPath + movieID
}

// Open streams a mirrored thumbnail. A missing object reports store.ErrNotFound.
func (m *ThumbnailMirror) Open(ctx context.Context, movieID string) (io.ReadCloser, error) {
	rc, err := m.store.Get(ctx, ThumbnailKey(movieID))
	if errors.Is(err, ErrObjectNotFound) {
		return nil, fmt.Errorf("thumbnail %s: %w", movieID, store.ErrNotFound)
	}
	return rc, err
}

// Remove deletes a mirrored thumbnail. Missing objects are not an error.
func (m *ThumbnailMirror) Remove(ctx context.Context, movieID string) error {
	return m.store.Delete(ctx, ThumbnailKey(movieID))
}
