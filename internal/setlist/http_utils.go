package setlist

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}

// writeServiceError maps an error kind to its status. Anything unclassified is logged
// and reported without detail.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Error("setlist-service: "+op, "err", err)
		writeError(w, status, "database error")
		return
	}

	msg := http.StatusText(status)
	var se *Error
	if errors.As(err, &se) {
		msg = se.msg
	} else if status == http.StatusConflict {
		msg = "conflicting update, retry"
	}
	writeError(w, status, msg)
}
