package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/cinevault/apiserver/internal/auth"
	"github.com/cinevault/apiserver/internal/mailer"
	"github.com/cinevault/apiserver/internal/store/memstore"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Sup3r$ecret"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Email
}

func (m *recordingMailer) Send(_ context.Context, email mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}

var resetLinkPattern = regexp.MustCompile(`/reset-password/([0-9a-f]{64})`)

// lastResetToken extracts the token from the most recent reset email.
func (m *recordingMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("no email sent")
	}
	match := resetLinkPattern.FindStringSubmatch(m.sent[len(m.sent)-1].Body)
	if match == nil {
		t.Fatalf("reset link not found in body: %q", m.sent[len(m.sent)-1].Body)
	}
	return match[1]
}

type testEnv struct {
	clock  *fakeClock
	store  *memstore.Store
	mail   *recordingMailer
	hasher *auth.PasswordHasher
	users  *UserService
	auth   *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()
	st := memstore.New().WithClock(clock.Now)
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	mail := &recordingMailer{}
	policy := auth.NewPasswordPolicy()

	guard := auth.NewLoginGuard(auth.NewMemoryAttemptCounter(), 5, 15*time.Minute).WithClock(clock.Now)
	tokens := auth.NewTokenIssuer("test-secret", "cinevault-test", 2*time.Hour).WithClock(clock.Now)

	return &testEnv{
		clock:  clock,
		store:  st,
		mail:   mail,
		hasher: hasher,
		users:  NewUserService(st.Users(), hasher, policy),
		auth: NewAuthService(AuthConfig{
			Users:         st.Users(),
			Hasher:        hasher,
			Policy:        policy,
			Tokens:        tokens,
			Guard:         guard,
			Denylist:      auth.NewMemoryDenylist().WithClock(clock.Now),
			Mailer:        mail,
			AppURL:        "https://app.example/",
			ResetTokenTTL: time.Hour,
			Now:           clock.Now,
		}),
	}
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	user, err := e.users.Register(context.Background(), RegisterParams{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Age:       36,
		Email:     email,
		Password:  testPassword,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user.ID
}
