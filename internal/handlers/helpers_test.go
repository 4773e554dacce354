package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/cinevault/apiserver/internal/auth"
	"github.com/cinevault/apiserver/internal/mailer"
	"github.com/cinevault/apiserver/internal/services"
	"github.com/cinevault/apiserver/internal/store/memstore"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Sup3r$ecret"

type captureMailer struct {
	mu   sync.Mutex
	sent []mailer.Email
}

func (m *captureMailer) Send(_ context.Context, email mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}

var tokenPattern = regexp.MustCompile(`/reset-password/([0-9a-f]{64})`)

func (m *captureMailer) token(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("no email sent")
	}
	match := tokenPattern.FindStringSubmatch(m.sent[len(m.sent)-1].Body)
	if match == nil {
		t.Fatalf("no reset link in email")
	}
	return match[1]
}

type testServer struct {
	*httptest.Server
	mail *captureMailer
}

type serverOptions struct {
	revealUnknownEmail bool
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()

	st := memstore.New()
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	mail := &captureMailer{}
	userService := services.NewUserService(st.Users(), hasher, nil)
	authService := services.NewAuthService(services.AuthConfig{
		Users:    st.Users(),
		Hasher:   hasher,
		Tokens:   auth.NewTokenIssuer("handler-secret", "cinevault-test", time.Hour),
		Guard:    auth.NewLoginGuard(auth.NewMemoryAttemptCounter(), 5, 15*time.Minute),
		Denylist: auth.NewMemoryDenylist(),
		Mailer:   mail,
		AppURL:   "http://frontend.test",
	})
	cookies := CookieConfig{Name: "session", TTL: time.Hour}
	authHandler := NewAuthHandler(userService, authService, cookies, opts.revealUnknownEmail)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authHandler, nil)
	})
	r.Route("/comments", func(r chi.Router) {
		CommentRouter(r, services.NewCommentService(st.Comments()), authHandler.RequireSession)
	})
	r.Route("/ratings", func(r chi.Router) {
		RatingRouter(r, services.NewRatingService(st.Ratings()), authHandler.RequireSession)
	})
	r.Route("/movies", func(r chi.Router) {
		MovieRouter(r, services.NewMovieService(st.Movies(), nil), authHandler.RequireSession)
	})
	r.Route("/videos", func(r chi.Router) {
		VideoRouter(r, services.NewVideoService(nil))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, mail: mail}
}

// client returns an HTTP client with its own cookie jar.
func (s *testServer) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func (s *testServer) do(t *testing.T, c *http.Client, method, path string, body any, out any) *http.Response {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp
}

func (s *testServer) signup(t *testing.T, email string) (*http.Client, string) {
	t.Helper()
	c := s.client(t)

	var created UserIDResponse
	resp := s.do(t, c, http.MethodPost, "/auth/register", RegisterRequest{
		FirstName: "Ada", LastName: "Lovelace", Age: 36, Email: email, Password: testPassword,
	}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, resp.StatusCode)
	}

	resp = s.do(t, c, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: testPassword}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", email, resp.StatusCode)
	}
	return c, created.UserID
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected %d, got %d", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode)
	}
}
