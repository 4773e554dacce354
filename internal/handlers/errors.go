package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/cinevault/apiserver/internal/logging"
	"github.com/cinevault/apiserver/internal/services"
)

// writeServiceError maps service errors to HTTP responses. Unknown errors
// are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *services.ValidationError
	var locked *services.LockedError

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &locked):
		retry := int(math.Ceil(time.Until(locked.Until).Seconds()))
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeError(w, http.StatusLocked, "too many failed attempts, try again later")
	case errors.Is(err, services.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "invalid or expired token")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, services.ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, "invalid session")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already exists")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, services.ErrProviderUnavailable):
		logging.Ctx(r.Context()).Warn().Err(err).Msg("video provider unavailable")
		writeError(w, http.StatusServiceUnavailable, "video provider unavailable")
	default:
		event := logging.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path)
		if identity, ok := identityFromContext(r.Context()); ok {
			event = event.Str("user_id", identity.UserID)
		}
		event.Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

