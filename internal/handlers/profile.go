package handlers

import (
	"net/http"

	"github.com/cinevault/apiserver/internal/logging"
	"github.com/cinevault/apiserver/internal/services"
)

func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, services.UpdateProfileParams(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteProfile removes the account after re-checking the password, then
// ends the session.
func (h *AuthHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req DeleteProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.DeleteProfile(r.Context(), identity.UserID, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.authService.Revoke(r.Context(), identity); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("user_id", identity.UserID).Msg("failed to revoke session after account deletion")
	}
	h.cookies.clear(w)
	logging.Ctx(r.Context()).Info().Str("user_id", identity.UserID).Msg("account deleted")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "account deleted"})
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Age       *int    `json:"age"`
	Email     *string `json:"email"`
}

type DeleteProfileRequest struct {
	Password string `json:"password"`
}
