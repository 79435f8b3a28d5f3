package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/agrismart-api/internal/domain"
)

// httpError maps a service error onto a status code and a client-safe
// message. Unknown errors are logged and reported as 500.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidOTP):
		writeError(w, http.StatusBadRequest, domain.ErrInvalidOTP.Error())
	case errors.Is(err, domain.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken.Error())
	case errors.Is(err, domain.ErrUserConflict):
		writeError(w, http.StatusConflict, "user with this phone already exists")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found, please register first")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
