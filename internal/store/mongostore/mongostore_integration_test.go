//go:build integration

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cinevault/apiserver/config"
	"github.com/cinevault/apiserver/internal/db"
	"github.com/cinevault/apiserver/internal/store"
	"github.com/cinevault/apiserver/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Run with: docker compose -f development/docker-compose.yml up -d mongo
//
//	go test -tags integration ./internal/store/mongostore/
func newTestRepositories(t *testing.T) (*Repositories, *mongo.Database) {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, database, err := db.OpenMongo(ctx, config.DatabaseConfig{
		MongoURI:      uri,
		MongoDatabase: fmt.Sprintf("cinevault_test_%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("open mongo: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	repos, err := New(ctx, database)
	if err != nil {
		t.Fatalf("new repositories: %v", err)
	}
	return repos, database
}

func TestRatingUpsertKeepsOneDocument(t *testing.T) {
	repos, database := newTestRepositories(t)
	ctx := context.Background()

	first, created, err := repos.Ratings.Upsert(ctx, "u1", "tt1", 5)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created {
		t.Fatalf("expected first upsert to create")
	}

	second, created, err := repos.Ratings.Upsert(ctx, "u1", "tt1", 3)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Fatalf("expected second upsert to update")
	}
	if second.ID != first.ID || second.Value != 3 {
		t.Fatalf("unexpected rating after update: %+v", second)
	}

	count, err := database.Collection(ratingCollection).CountDocuments(ctx, bson.M{"user_id": "u1", "movie_ref": "tt1"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one rating document, got %d", count)
	}
}

func TestRatingUpsertConcurrent(t *testing.T) {
	repos, database := newTestRepositories(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		creates int
	)
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(value int) {
			defer wg.Done()
			_, created, err := repos.Ratings.Upsert(ctx, "u1", "tt2", value%5+1)
			// A racing insert may lose on the unique index; that is the only acceptable error.
			if err != nil && !errors.Is(err, store.ErrConflict) {
				t.Errorf("upsert: %v", err)
				return
			}
			if created {
				mu.Lock()
				creates++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	count, err := database.Collection(ratingCollection).CountDocuments(ctx, bson.M{"user_id": "u1", "movie_ref": "tt2"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 || creates != 1 {
		t.Fatalf("expected one document created once, got count=%d creates=%d", count, creates)
	}
}

func TestDuplicateEmailConflicts(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	if _, err := repos.Users.Create(ctx, types.User{Email: "ada@example.com", PasswordHash: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repos.Users.Create(ctx, types.User{Email: "other@example.com", PasswordHash: "x"}); err != nil {
		t.Fatalf("second user without reset token must not collide: %v", err)
	}
	if _, err := repos.Users.Create(ctx, types.User{Email: "ada@example.com", PasswordHash: "y"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestConsumeResetTokenIsSingleUse(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user, err := repos.Users.Create(ctx, types.User{Email: "ada@example.com", PasswordHash: "old"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repos.Users.SetResetToken(ctx, user.ID, "digest", now.Add(time.Hour)); err != nil {
		t.Fatalf("set token: %v", err)
	}

	updated, err := repos.Users.ConsumeResetToken(ctx, "digest", now, "new")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if updated.PasswordHash != "new" || updated.ResetTokenHash != nil || updated.ResetTokenExpiry != nil {
		t.Fatalf("token fields not cleared: %+v", updated)
	}
	if _, err := repos.Users.ConsumeResetToken(ctx, "digest", now, "again"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on reuse, got %v", err)
	}
}

func TestConsumeResetTokenRejectsExpired(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user, err := repos.Users.Create(ctx, types.User{Email: "ada@example.com", PasswordHash: "old"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repos.Users.SetResetToken(ctx, user.ID, "digest", now.Add(-time.Minute)); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if _, err := repos.Users.ConsumeResetToken(ctx, "digest", now, "new"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired token, got %v", err)
	}
	stored, err := repos.Users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.PasswordHash != "old" {
		t.Fatalf("password must not change on expired token")
	}
}

func TestUserDeleteRemovesOwnedDocuments(t *testing.T) {
	repos, database := newTestRepositories(t)
	ctx := context.Background()

	owner, err := repos.Users.Create(ctx, types.User{Email: "owner@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if _, err := repos.Comments.Create(ctx, types.Comment{UserID: owner.ID, MovieRef: "tt1", Body: "mine"}); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if _, _, err := repos.Ratings.Upsert(ctx, owner.ID, "tt1", 4); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, _, err := repos.Ratings.Upsert(ctx, "someone-else", "tt1", 2); err != nil {
		t.Fatalf("upsert other: %v", err)
	}

	if err := repos.Users.Delete(ctx, owner.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, name := range []string{commentCollection, ratingCollection} {
		n, err := database.Collection(name).CountDocuments(ctx, bson.M{"user_id": owner.ID})
		if err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		if n != 0 {
			t.Fatalf("expected owned %s removed, got %d", name, n)
		}
	}
	if _, count, _ := repos.Ratings.Summary(ctx, "tt1"); count != 1 {
		t.Fatalf("expected the other rating to remain, got %d", count)
	}
	if err := repos.Users.Delete(ctx, owner.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
