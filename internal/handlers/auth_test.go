package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"
)

func TestRegisterAndLoginFlow(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	c := srv.client(t)

	var created UserIDResponse
	resp := srv.do(t, c, http.MethodPost, "/auth/register", RegisterRequest{
		FirstName: "Ada", LastName: "Lovelace", Age: 36, Email: "ada@example.com", Password: testPassword,
	}, &created)
	expectStatus(t, resp, http.StatusCreated)
	if created.UserID == "" {
		t.Fatalf("missing userId")
	}

	var errResp ErrorResponse
	resp = srv.do(t, c, http.MethodPost, "/auth/register", RegisterRequest{
		FirstName: "Ada", LastName: "Lovelace", Age: 36, Email: "ada@example.com", Password: testPassword,
	}, &errResp)
	expectStatus(t, resp, http.StatusConflict)
	if errResp.Error != "email already exists" {
		t.Fatalf("unexpected error: %q", errResp.Error)
	}

	resp = srv.do(t, c, http.MethodPost, "/auth/register", RegisterRequest{
		FirstName: "Bob", LastName: "B", Age: 30, Email: "bob@example.com", Password: "weakpass",
	}, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	var session SessionResponse
	resp = srv.do(t, c, http.MethodGet, "/auth/session", nil, &session)
	expectStatus(t, resp, http.StatusUnauthorized)
	if session.LoggedIn {
		t.Fatalf("expected loggedIn=false before login")
	}

	var login UserIDResponse
	resp = srv.do(t, c, http.MethodPost, "/auth/login", LoginRequest{Email: "ada@example.com", Password: testPassword}, &login)
	expectStatus(t, resp, http.StatusOK)
	if login.UserID != created.UserID {
		t.Fatalf("login returned %q, want %q", login.UserID, created.UserID)
	}

	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == "session" {
			cookie = ck
		}
	}
	if cookie == nil || !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode || cookie.Secure {
		t.Fatalf("unexpected session cookie: %+v", cookie)
	}

	resp = srv.do(t, c, http.MethodGet, "/auth/session", nil, &session)
	expectStatus(t, resp, http.StatusOK)
	if !session.LoggedIn || session.User == nil || session.User.Email != "ada@example.com" {
		t.Fatalf("unexpected session: %+v", session)
	}

	resp = srv.do(t, c, http.MethodPost, "/auth/logout", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	resp = srv.do(t, c, http.MethodGet, "/auth/session", nil, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestLogoutRevokesStolenCookie(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	c, _ := srv.signup(t, "ada@example.com")

	u, _ := url.Parse(srv.URL)
	stolen := srv.client(t)
	stolen.Jar.SetCookies(u, c.Jar.Cookies(u))

	expectStatus(t, srv.do(t, stolen, http.MethodGet, "/auth/profile", nil, nil), http.StatusOK)
	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/logout", nil, nil), http.StatusOK)
	expectStatus(t, srv.do(t, stolen, http.MethodGet, "/auth/profile", nil, nil), http.StatusUnauthorized)
}

func TestLoginLockout(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	c := srv.client(t)
	srv.signup(t, "ada@example.com")

	for i := 0; i < 5; i++ {
		resp := srv.do(t, c, http.MethodPost, "/auth/login", LoginRequest{Email: "ada@example.com", Password: "Wr0ng$pass"}, nil)
		expectStatus(t, resp, http.StatusUnauthorized)
	}

	resp := srv.do(t, c, http.MethodPost, "/auth/login", LoginRequest{Email: "ada@example.com", Password: testPassword}, nil)
	expectStatus(t, resp, http.StatusLocked)
	retry, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retry < 14*60 {
		t.Fatalf("unexpected Retry-After: %q", resp.Header.Get("Retry-After"))
	}
}

func TestLoginValidation(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	c := srv.client(t)

	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/login", LoginRequest{Email: "ada@example.com"}, nil), http.StatusBadRequest)
	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/login", "not an object", nil), http.StatusBadRequest)
	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/login", LoginRequest{Email: "ghost@example.com", Password: testPassword}, nil), http.StatusUnauthorized)
}

func TestForgotPasswordHidesUnknownEmail(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	c := srv.client(t)
	srv.signup(t, "ada@example.com")

	var known, unknown MessageResponse
	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/forgot-password", ForgotPasswordRequest{Email: "ada@example.com"}, &known), http.StatusOK)
	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/forgot-password", ForgotPasswordRequest{Email: "ghost@example.com"}, &unknown), http.StatusOK)
	if known != unknown {
		t.Fatalf("responses differ: %+v vs %+v", known, unknown)
	}
	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/forgot-password", ForgotPasswordRequest{}, nil), http.StatusBadRequest)
}

func TestForgotPasswordRevealsUnknownEmailWhenConfigured(t *testing.T) {
	srv := newTestServer(t, serverOptions{revealUnknownEmail: true})
	c := srv.client(t)

	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/forgot-password", ForgotPasswordRequest{Email: "ghost@example.com"}, nil), http.StatusNotFound)
}

func TestResetPasswordFlow(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	c := srv.client(t)
	srv.signup(t, "ada@example.com")

	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/forgot-password", ForgotPasswordRequest{Email: "ada@example.com"}, nil), http.StatusOK)
	token := srv.mail.token(t)

	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/reset-password/"+token, ResetPasswordRequest{Password: "weak"}, nil), http.StatusBadRequest)
	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/reset-password/"+token, ResetPasswordRequest{Password: "N3w$ecret!"}, nil), http.StatusOK)
	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/reset-password/"+token, ResetPasswordRequest{Password: "An0ther$one"}, nil), http.StatusBadRequest)

	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/login", LoginRequest{Email: "ada@example.com", Password: "N3w$ecret!"}, nil), http.StatusOK)
}

func TestProfileLifecycle(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	anon := srv.client(t)
	expectStatus(t, srv.do(t, anon, http.MethodGet, "/auth/profile", nil, nil), http.StatusUnauthorized)

	c, id := srv.signup(t, "ada@example.com")

	var profile struct {
		ID        string `json:"id"`
		FirstName string `json:"firstName"`
		Age       int    `json:"age"`
		Password  string `json:"passwordHash"`
	}
	expectStatus(t, srv.do(t, c, http.MethodGet, "/auth/profile", nil, &profile), http.StatusOK)
	if profile.ID != id || profile.Password != "" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	name := "Augusta"
	expectStatus(t, srv.do(t, c, http.MethodPut, "/auth/profile", UpdateProfileRequest{FirstName: &name}, &profile), http.StatusOK)
	if profile.FirstName != "Augusta" || profile.Age != 36 {
		t.Fatalf("unexpected profile after update: %+v", profile)
	}
	expectStatus(t, srv.do(t, c, http.MethodPut, "/auth/profile", UpdateProfileRequest{}, nil), http.StatusBadRequest)

	expectStatus(t, srv.do(t, c, http.MethodDelete, "/auth/profile", DeleteProfileRequest{Password: "Wr0ng$pass"}, nil), http.StatusUnauthorized)
	expectStatus(t, srv.do(t, c, http.MethodDelete, "/auth/profile", DeleteProfileRequest{Password: testPassword}, nil), http.StatusOK)
	expectStatus(t, srv.do(t, c, http.MethodGet, "/auth/profile", nil, nil), http.StatusUnauthorized)
	expectStatus(t, srv.do(t, c, http.MethodPost, "/auth/login", LoginRequest{Email: "ada@example.com", Password: testPassword}, nil), http.StatusUnauthorized)
}
