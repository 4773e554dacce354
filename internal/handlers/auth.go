package handlers

import (
	"errors"
	"net/http"

	"github.com/cinevault/apiserver/internal/logging"
	"github.com/cinevault/apiserver/internal/services"
	"github.com/cinevault/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const forgotPasswordMessage = "if an account exists for that email, a reset link has been sent"

// AuthHandler provides account, session and password reset endpoints.
type AuthHandler struct {
	userService        *services.UserService
	authService        *services.AuthService
	cookies            CookieConfig
	revealUnknownEmail bool
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, authService *services.AuthService, cookies CookieConfig, revealUnknownEmail bool) *AuthHandler {
	return &AuthHandler{
		userService:        userService,
		authService:        authService,
		cookies:            cookies,
		revealUnknownEmail: revealUnknownEmail,
	}
}

// AuthRouter registers auth routes on the given router. sensitive wraps the
// credential endpoints and may be nil.
func AuthRouter(r chi.Router, handler *AuthHandler, sensitive func(http.Handler) http.Handler) {
	limited := r
	if sensitive != nil {
		limited = r.With(sensitive)
	}

	r.Post("/register", handler.Register)
	limited.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	limited.Post("/forgot-password", handler.ForgotPassword)
	limited.Post("/reset-password/{token}", handler.ResetPassword)
	r.Get("/session", handler.Session)

	r.Route("/profile", func(r chi.Router) {
		r.Use(handler.RequireSession)
		r.Get("/", handler.GetProfile)
		r.Put("/", handler.UpdateProfile)
		r.Delete("/", handler.DeleteProfile)
	})
}

// RequireSession enforces cookie authentication for other routers.
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return RequireSession(h.authService, h.cookies)(next)
}

// Register creates a new user account. It does not sign the user in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.Register(r.Context(), services.RegisterParams(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("user_id", user.ID).Msg("user registered")
	writeJSON(w, http.StatusCreated, UserIDResponse{UserID: user.ID})
}

// Login verifies credentials and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.cookies.set(w, session.Token, session.Identity.ExpiresAt)
	writeJSON(w, http.StatusOK, UserIDResponse{UserID: session.User.ID})
}

// Logout revokes the presented session and clears the cookie. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), h.cookies.token(r)); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("failed to revoke session on logout")
	}
	h.cookies.clear(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.authService.ForgotPassword(r.Context(), req.Email)
	if errors.Is(err, services.ErrNotFound) && !h.revealUnknownEmail {
		err = nil
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: forgotPasswordMessage})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "password updated"})
}

// Session reports whether the request carries a valid session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authService.Authenticate(r.Context(), h.cookies.token(r))
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) || errors.Is(err, services.ErrInvalidSession) {
			writeJSON(w, http.StatusUnauthorized, SessionResponse{LoggedIn: false})
			return
		}
		writeServiceError(w, r, err)
		return
	}

	user, err := h.userService.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSession) {
			writeJSON(w, http.StatusUnauthorized, SessionResponse{LoggedIn: false})
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{LoggedIn: true, User: &user})
}

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       int    `json:"age"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

type UserIDResponse struct {
	UserID string `json:"userId"`
}

type SessionResponse struct {
	LoggedIn bool        `json:"loggedIn"`
	User     *types.User `json:"user,omitempty"`
}
