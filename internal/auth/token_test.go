package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer := NewTokenIssuer("secret", "cinevault", 2*time.Hour).WithClock(clock.Now)

	token, issued, err := issuer.Issue("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	id, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "user-1" || id.Email != "a@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.TokenID == "" || id.TokenID != issued.TokenID {
		t.Fatalf("token id mismatch: %q vs %q", id.TokenID, issued.TokenID)
	}
	if !id.ExpiresAt.Equal(clock.Now().Add(2 * time.Hour)) {
		t.Fatalf("unexpected expiry: %s", id.ExpiresAt)
	}
}

func TestTokenIssuerRejectsExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer := NewTokenIssuer("secret", "cinevault", 2*time.Hour).WithClock(clock.Now)

	token, _, err := issuer.Issue("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.Advance(2*time.Hour + time.Minute)

	if _, err := issuer.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenIssuerRejectsForeignTokens(t *testing.T) {
	issuer := NewTokenIssuer("secret", "cinevault", time.Hour)

	other := NewTokenIssuer("other-secret", "cinevault", time.Hour)
	token, _, _ := other.Issue("user-1", "a@example.com")
	if _, err := issuer.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong secret, got %v", err)
	}

	wrongIssuer := NewTokenIssuer("secret", "someone-else", time.Hour)
	token, _, _ = wrongIssuer.Issue("user-1", "a@example.com")
	if _, err := issuer.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong issuer, got %v", err)
	}

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "cinevault",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("build unsigned token: %v", err)
	}
	if _, err := issuer.Verify(unsigned); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for alg none, got %v", err)
	}

	if _, err := issuer.Verify("garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestMemoryDenylist(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	list := NewMemoryDenylist()
	list.now = clock.Now

	if err := list.Revoke(ctx, "jti-1", clock.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := list.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v %v", revoked, err)
	}
	if revoked, _ := list.IsRevoked(ctx, "jti-2"); revoked {
		t.Fatalf("unexpected revocation of unknown id")
	}

	clock.Advance(time.Hour)
	if revoked, _ := list.IsRevoked(ctx, "jti-1"); revoked {
		t.Fatalf("entry should lapse at token expiry")
	}
}
