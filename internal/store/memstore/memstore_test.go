package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cinevault/apiserver/internal/store"
	"github.com/cinevault/apiserver/types"
)

func TestUserDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := New()

	owner, err := s.Users().Create(ctx, types.User{Email: "owner@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	other, err := s.Users().Create(ctx, types.User{Email: "other@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create other: %v", err)
	}

	if _, err := s.Comments().Create(ctx, types.Comment{UserID: owner.ID, MovieRef: "tt1", Body: "mine"}); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if _, _, err := s.Ratings().Upsert(ctx, owner.ID, "tt1", 4); err != nil {
		t.Fatalf("upsert owner rating: %v", err)
	}
	if _, _, err := s.Ratings().Upsert(ctx, other.ID, "tt1", 2); err != nil {
		t.Fatalf("upsert other rating: %v", err)
	}

	if err := s.Users().Delete(ctx, owner.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if comments, _ := s.Comments().ListByUser(ctx, owner.ID); len(comments) != 0 {
		t.Fatalf("expected owner comments removed, got %d", len(comments))
	}
	avg, count, err := s.Ratings().Summary(ctx, "tt1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if count != 1 || avg != 2 {
		t.Fatalf("expected only the other rating to remain, got avg=%v count=%d", avg, count)
	}
	if err := s.Users().Delete(ctx, owner.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestConsumeResetTokenOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return now })

	user, err := s.Users().Create(ctx, types.User{Email: "a@example.com", PasswordHash: "old"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Users().SetResetToken(ctx, user.ID, "digest", now.Add(time.Hour)); err != nil {
		t.Fatalf("set token: %v", err)
	}

	updated, err := s.Users().ConsumeResetToken(ctx, "digest", now.Add(30*time.Minute), "new")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if updated.PasswordHash != "new" || updated.ResetTokenHash != nil || updated.ResetTokenExpiry != nil {
		t.Fatalf("token fields not cleared: %+v", updated)
	}
	if _, err := s.Users().ConsumeResetToken(ctx, "digest", now.Add(31*time.Minute), "again"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on reuse, got %v", err)
	}
}

func TestConsumeResetTokenRejectsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New()

	user, _ := s.Users().Create(ctx, types.User{Email: "b@example.com", PasswordHash: "old"})
	_ = s.Users().SetResetToken(ctx, user.ID, "digest", now)

	if _, err := s.Users().ConsumeResetToken(ctx, "digest", now, "new"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound at expiry, got %v", err)
	}
	stored, _ := s.Users().GetByID(ctx, user.ID)
	if stored.PasswordHash != "old" {
		t.Fatalf("password must not change on expired token")
	}
}

func TestMovieCreateRejectsDuplicateVideoPerOwner(t *testing.T) {
	ctx := context.Background()
	s := New()

	movie := types.Movie{UserID: "u1", VideoID: "abc", Title: "First"}
	if _, err := s.Movies().Create(ctx, movie); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Movies().Create(ctx, movie); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	movie.UserID = "u2"
	if _, err := s.Movies().Create(ctx, movie); err != nil {
		t.Fatalf("other owner may add the same video: %v", err)
	}
}
