package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoginIssuesToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "ada@example.com")

	session, err := env.auth.Login(ctx, "ada@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Token == "" || session.User.ID != id {
		t.Fatalf("unexpected session: %+v", session)
	}

	identity, err := env.auth.Authenticate(ctx, session.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.UserID != id || identity.Email != "ada@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if !identity.ExpiresAt.Equal(env.clock.Now().Add(2 * time.Hour)) {
		t.Fatalf("unexpected expiry: %s", identity.ExpiresAt)
	}
}

func TestLoginLocksAfterFiveFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ada@example.com")

	for i := 0; i < 5; i++ {
		if _, err := env.auth.Login(ctx, "ada@example.com", "Wr0ng$pass"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := env.auth.Login(ctx, "ada@example.com", testPassword)
	var locked *LockedError
	if !errors.As(err, &locked) || !errors.Is(err, ErrLocked) {
		t.Fatalf("expected LockedError with correct password, got %v", err)
	}
	if got := locked.Until.Sub(env.clock.Now()); got < 15*time.Minute {
		t.Fatalf("lockout too short: %s", got)
	}

	env.clock.Advance(14 * time.Minute)
	if _, err := env.auth.Login(ctx, "ada@example.com", testPassword); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected still locked, got %v", err)
	}

	env.clock.Advance(time.Minute)
	if _, err := env.auth.Login(ctx, "ada@example.com", testPassword); err != nil {
		t.Fatalf("expected login after lockout: %v", err)
	}
}

func TestLoginFailureAfterExpiredLockRelocks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ada@example.com")

	for i := 0; i < 5; i++ {
		_, _ = env.auth.Login(ctx, "ada@example.com", "Wr0ng$pass")
	}
	env.clock.Advance(16 * time.Minute)

	if _, err := env.auth.Login(ctx, "ada@example.com", "Wr0ng$pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.auth.Login(ctx, "ada@example.com", testPassword); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected relock after failure past expiry, got %v", err)
	}
}

func TestSuccessfulLoginResetsFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ada@example.com")

	for i := 0; i < 4; i++ {
		_, _ = env.auth.Login(ctx, "ada@example.com", "Wr0ng$pass")
	}
	if _, err := env.auth.Login(ctx, "ada@example.com", testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := env.auth.Login(ctx, "ada@example.com", "Wr0ng$pass"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d after reset: %v", i+1, err)
		}
	}
	if _, err := env.auth.Login(ctx, "ada@example.com", testPassword); err != nil {
		t.Fatalf("counter was not reset by the earlier success: %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := env.auth.Login(ctx, "ghost@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if _, err := env.auth.Login(ctx, "ghost@example.com", testPassword); !errors.Is(err, ErrLocked) {
		t.Fatalf("unknown emails should lock like known ones, got %v", err)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ada@example.com")
	session, err := env.auth.Login(ctx, "ada@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := env.auth.Authenticate(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := env.auth.Authenticate(ctx, session.Token+"x"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for tampered token, got %v", err)
	}

	env.clock.Advance(2*time.Hour + time.Second)
	if _, err := env.auth.Authenticate(ctx, session.Token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for expired token, got %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ada@example.com")
	session, err := env.auth.Login(ctx, "ada@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := env.auth.Logout(ctx, session.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.auth.Authenticate(ctx, session.Token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
	if err := env.auth.Logout(ctx, "garbage"); err != nil {
		t.Fatalf("logout with garbage token should succeed: %v", err)
	}
}

func TestPasswordResetRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ada@example.com")

	if err := env.auth.ForgotPassword(ctx, "ada@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	token := env.mail.lastResetToken(t)
	if !strings.Contains(env.mail.sent[0].Body, "https://app.example/reset-password/"+token) {
		t.Fatalf("unexpected link in body: %q", env.mail.sent[0].Body)
	}

	user, _ := env.store.Users().GetByEmail(ctx, "ada@example.com")
	if user.ResetTokenHash == nil || *user.ResetTokenHash == token {
		t.Fatalf("reset token must be stored hashed")
	}

	const newPassword = "N3w$ecret!"
	if err := env.auth.ResetPassword(ctx, token, newPassword); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := env.auth.ResetPassword(ctx, token, "An0ther$one"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on reuse, got %v", err)
	}

	user, _ = env.store.Users().GetByEmail(ctx, "ada@example.com")
	if user.ResetTokenHash != nil || user.ResetTokenExpiry != nil {
		t.Fatalf("reset fields not cleared: %+v", user)
	}
	if _, err := env.auth.Login(ctx, "ada@example.com", newPassword); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := env.auth.Login(ctx, "ada@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
}

func TestPasswordResetExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ada@example.com")

	if err := env.auth.ForgotPassword(ctx, "ada@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	token := env.mail.lastResetToken(t)

	env.clock.Advance(time.Hour + time.Second)
	if err := env.auth.ResetPassword(ctx, token, "N3w$ecret!"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestPasswordResetClearsLockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ada@example.com")

	for i := 0; i < 5; i++ {
		_, _ = env.auth.Login(ctx, "ada@example.com", "Wr0ng$pass")
	}
	if err := env.auth.ForgotPassword(ctx, "ada@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	if err := env.auth.ResetPassword(ctx, env.mail.lastResetToken(t), "N3w$ecret!"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := env.auth.Login(ctx, "ada@example.com", "N3w$ecret!"); err != nil {
		t.Fatalf("expected lockout cleared by reset: %v", err)
	}
}

func TestPasswordResetValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.auth.ForgotPassword(ctx, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(env.mail.sent) != 0 {
		t.Fatalf("no email expected for unknown address")
	}

	var verr *ValidationError
	if err := env.auth.ResetPassword(ctx, "whatever", "weak"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if err := env.auth.ResetPassword(ctx, "whatever", "Aa$"+strings.Repeat("x", 80)); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for oversized password, got %v", err)
	}
	if err := env.auth.ResetPassword(ctx, "unknown-token", "N3w$ecret!"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
