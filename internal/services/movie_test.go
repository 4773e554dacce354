package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/cinevault/apiserver/internal/store/memstore"
)

type fakeMirror struct {
	objects map[string][]byte
	fail    error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{objects: make(map[string][]byte)}
}

func (m *fakeMirror) Mirror(_ context.Context, movieID, source string) (string, error) {
	if m.fail != nil {
		return "", m.fail
	}
	m.objects[movieID] = []byte(source)
	return m.URL(movieID), nil
}

func (m *fakeMirror) URL(movieID string) string { return "/thumbnails/" + movieID }

func (m *fakeMirror) Open(_ context.Context, movieID string) (io.ReadCloser, error) {
	data, ok := m.objects[movieID]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *fakeMirror) Remove(_ context.Context, movieID string) error {
	delete(m.objects, movieID)
	return nil
}

func TestMovieCreateAndList(t *testing.T) {
	svc := NewMovieService(memstore.New().Movies(), nil)
	ctx := context.Background()

	movie, err := svc.Create(ctx, "owner", CreateMovieParams{Title: " Alien ", VideoID: "abc123", ThumbnailURL: "https://i.ytimg.com/a.jpg"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if movie.Title != "Alien" || movie.UserID != "owner" || movie.ThumbnailURL != "https://i.ytimg.com/a.jpg" {
		t.Fatalf("unexpected movie: %+v", movie)
	}

	if _, err := svc.Create(ctx, "owner", CreateMovieParams{Title: "Alien again", VideoID: "abc123"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var verr *ValidationError
	if _, err := svc.Create(ctx, "owner", CreateMovieParams{VideoID: "x"}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	items, total, err := svc.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != movie.ID {
		t.Fatalf("unexpected list: total=%d items=%+v", total, items)
	}
}

func TestMovieDeleteOwnership(t *testing.T) {
	mirror := newFakeMirror()
	svc := NewMovieService(memstore.New().Movies(), mirror)
	ctx := context.Background()

	movie, err := svc.Create(ctx, "owner", CreateMovieParams{Title: "Alien", VideoID: "abc123", ThumbnailURL: "https://i.ytimg.com/a.jpg"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if movie.ThumbnailURL != "/thumbnails/"+movie.ID {
		t.Fatalf("thumbnail not mirrored: %s", movie.ThumbnailURL)
	}

	rc, err := svc.OpenThumbnail(ctx, movie.ID)
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	rc.Close()

	if err := svc.Delete(ctx, "intruder", movie.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, "owner", movie.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := mirror.objects[movie.ID]; ok {
		t.Fatalf("mirrored thumbnail not removed")
	}
	if err := svc.Delete(ctx, "owner", movie.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMovieMirrorFailureKeepsSource(t *testing.T) {
	mirror := newFakeMirror()
	mirror.fail = errors.New("bucket unavailable")
	svc := NewMovieService(memstore.New().Movies(), mirror)
	ctx := context.Background()

	movie, err := svc.Create(ctx, "owner", CreateMovieParams{Title: "Alien", VideoID: "abc123", ThumbnailURL: "https://i.ytimg.com/a.jpg"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if movie.ThumbnailURL != "https://i.ytimg.com/a.jpg" {
		t.Fatalf("expected source url kept, got %s", movie.ThumbnailURL)
	}
	if _, err := svc.OpenThumbnail(ctx, movie.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unmirrored thumbnail, got %v", err)
	}
}

func TestMovieCreateConflictRemovesMirroredThumbnail(t *testing.T) {
	mirror := newFakeMirror()
	svc := NewMovieService(memstore.New().Movies(), mirror)
	ctx := context.Background()

	params := CreateMovieParams{Title: "Alien", VideoID: "abc123", ThumbnailURL: "https://i.ytimg.com/a.jpg"}
	first, err := svc.Create(ctx, "owner", params)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Create(ctx, "owner", params); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(mirror.objects) != 1 {
		t.Fatalf("expected only the first thumbnail to remain, got %d objects", len(mirror.objects))
	}
	if _, ok := mirror.objects[first.ID]; !ok {
		t.Fatalf("first movie's thumbnail must be kept")
	}
}
