package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cinevault/apiserver/internal/auth"
	"github.com/cinevault/apiserver/internal/logging"
	"github.com/cinevault/apiserver/internal/mailer"
	"github.com/cinevault/apiserver/internal/metrics"
	"github.com/cinevault/apiserver/types"
)

const (
	resetTokenBytes      = 32
	defaultResetTokenTTL = time.Hour
)

// AuthConfig holds the collaborators of AuthService.
type AuthConfig struct {
	Users         UserRepository
	Hasher        *auth.PasswordHasher
	Policy        *auth.PasswordPolicy
	Tokens        *auth.TokenIssuer
	Guard         *auth.LoginGuard
	Denylist      auth.Denylist
	Mailer        mailer.Sender
	AppURL        string
	ResetTokenTTL time.Duration
	Now           func() time.Time
}

// AuthService handles login, session verification and password resets.
type AuthService struct {
	users    UserRepository
	hasher   *auth.PasswordHasher
	policy   *auth.PasswordPolicy
	tokens   *auth.TokenIssuer
	guard    *auth.LoginGuard
	denylist auth.Denylist
	mailer   mailer.Sender
	appURL   string
	resetTTL time.Duration
	now      func() time.Time
}

func NewAuthService(cfg AuthConfig) *AuthService {
	s := &AuthService{
		users:    cfg.Users,
		hasher:   cfg.Hasher,
		policy:   cfg.Policy,
		tokens:   cfg.Tokens,
		guard:    cfg.Guard,
		denylist: cfg.Denylist,
		mailer:   cfg.Mailer,
		appURL:   strings.TrimRight(cfg.AppURL, "/"),
		resetTTL: cfg.ResetTokenTTL,
		now:      cfg.Now,
	}
	if s.policy == nil {
		s.policy = auth.NewPasswordPolicy()
	}
	if s.guard == nil {
		s.guard = auth.NewLoginGuard(auth.NewMemoryAttemptCounter(), auth.DefaultMaxAttempts, auth.DefaultLockoutDuration)
	}
	if s.mailer == nil {
		s.mailer = mailer.LogMailer{}
	}
	if s.resetTTL <= 0 {
		s.resetTTL = defaultResetTokenTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Session is the result of a successful login.
type Session struct {
	Token    string
	Identity auth.Identity
	User     types.User
}

// Login checks credentials against the lockout policy and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Session{}, invalid("email", "is required")
	}
	if password == "" {
		return Session{}, invalid("password", "is required")
	}

	if err := s.guard.Check(ctx, email); err != nil {
		var locked *auth.LockedError
		if errors.As(err, &locked) {
			metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
			return Session{}, &LockedError{Until: locked.Until}
		}
		return Session{}, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return Session{}, fmt.Errorf("load user: %w", err)
		}
		s.hasher.CompareDummy(password)
		return Session{}, s.fail(ctx, email)
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, s.fail(ctx, email)
	}

	if err := s.guard.Succeed(ctx, email); err != nil {
		return Session{}, err
	}

	token, identity, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return Session{}, err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	logging.Ctx(ctx).Info().Str("user_id", user.ID).Msg("user logged in")
	return Session{Token: token, Identity: identity, User: user}, nil
}

func (s *AuthService) fail(ctx context.Context, email string) error {
	state, err := s.guard.Fail(ctx, email)
	if err != nil {
		return err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
	if state.Locked(s.now()) {
		metrics.LockoutsTotal.Inc()
		logging.Ctx(ctx).Warn().
			Str("email", logging.MaskEmail(email)).
			Int("failures", state.Failures).
			Time("locked_until", *state.LockedUntil).
			Msg("login locked")
	}
	return ErrInvalidCredentials
}

// Authenticate verifies a session token and returns its identity.
func (s *AuthService) Authenticate(ctx context.Context, token string) (auth.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return auth.Identity{}, ErrUnauthenticated
	}

	identity, err := s.tokens.Verify(token)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, identity.TokenID)
		if err != nil {
			return auth.Identity{}, fmt.Errorf("check denylist: %w", err)
		}
		if revoked {
			return auth.Identity{}, fmt.Errorf("%w: token revoked", ErrInvalidSession)
		}
	}
	return identity, nil
}

// Logout revokes the presented token when it is still valid. Invalid or
// missing tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	identity, err := s.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrInvalidSession) {
			return nil
		}
		return err
	}
	return s.Revoke(ctx, identity)
}

// Revoke denies the identity's token until it would have expired.
func (s *AuthService) Revoke(ctx context.Context, identity auth.Identity) error {
	if s.denylist == nil || identity.TokenID == "" {
		return nil
	}
	if err := s.denylist.Revoke(ctx, identity.TokenID, identity.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// ForgotPassword stores a single-use reset token for the account and mails
// the reset link. Unknown emails return ErrNotFound.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email", "is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.PasswordResetsTotal.WithLabelValues("unknown").Inc()
			logging.Ctx(ctx).Info().Str("email", logging.MaskEmail(email)).Msg("password reset requested for unknown email")
			return ErrNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, hashResetToken(token), s.now().Add(s.resetTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := s.appURL + "/reset-password/" + token
	msg, err := mailer.PasswordResetEmail(user.Email, user.FirstName, link, s.resetTTL)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	metrics.PasswordResetsTotal.WithLabelValues("requested").Inc()
	logging.Ctx(ctx).Info().Str("user_id", user.ID).Msg("password reset requested")
	return nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	if err := checkPassword(s.policy, password); err != nil {
		return err
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	user, err := s.users.ConsumeResetToken(ctx, hashResetToken(token), s.now(), hashed)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.PasswordResetsTotal.WithLabelValues("rejected").Inc()
			return ErrInvalidToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	if err := s.guard.Succeed(ctx, user.Email); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", user.ID).Msg("failed to clear login attempts after reset")
	}
	metrics.PasswordResetsTotal.WithLabelValues("completed").Inc()
	logging.Ctx(ctx).Info().Str("user_id", user.ID).Msg("password reset completed")
	return nil
}

func newResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// hashResetToken is the form a reset token is stored in.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
