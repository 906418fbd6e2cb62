// Package httpx holds the JSON response helpers shared by every handler and
// the mapping from domain errors to HTTP status codes.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ayush/zakat-tracker/internal/models"
)

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Detail writes a {"detail": msg} error body.
func Detail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"detail": msg})
}

// Unauthorized answers 401 with the bearer challenge header.
func Unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	Detail(w, http.StatusUnauthorized, msg)
}

// Error maps err onto the error taxonomy. Causes of 500s are logged and never
// sent to the client.
func Error(w http.ResponseWriter, log *slog.Logger, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		Detail(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, models.ErrInvalidID):
		Detail(w, http.StatusBadRequest, "Invalid zakat ID")
	case errors.Is(err, models.ErrEmailTaken):
		Detail(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, models.ErrUsernameTaken):
		Detail(w, http.StatusBadRequest, "Username already taken")
	case errors.Is(err, models.ErrConflict):
		Detail(w, http.StatusBadRequest, "Email or username already registered")
	case errors.Is(err, models.ErrUnauthorized):
		Unauthorized(w, "Could not validate credentials")
	case errors.Is(err, models.ErrUserNotFound):
		Detail(w, http.StatusNotFound, "User not found")
	case errors.Is(err, models.ErrEntryNotFound):
		Detail(w, http.StatusNotFound, "Zakat entry not found")
	case errors.Is(err, models.ErrNotFound):
		Detail(w, http.StatusNotFound, "Not found")
	default:
		log.Error("request failed", slog.String("error", err.Error()))
		Detail(w, http.StatusInternalServerError, "Internal server error")
	}
}
