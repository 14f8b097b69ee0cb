// Package handlers contains the HTTP handlers for the JSON API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opsdesk/server/internal/api/middleware"
	"github.com/opsdesk/server/internal/api/problem"
	"github.com/opsdesk/server/internal/auth"
	"github.com/opsdesk/server/internal/domain"
	"github.com/opsdesk/server/internal/storage"
	"github.com/opsdesk/server/internal/tracked"
)

const (
	problemValidation = "about:blank#validation"
	problemNotFound   = "about:blank#not-found"
	problemServer     = "about:blank#server-error"
	problemConflict   = "about:blank#conflict"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// actorFromRequest builds the mutation actor from the verified claims placed
// in context by the auth middleware.
func actorFromRequest(r *http.Request) (tracked.Actor, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return tracked.Actor{}, false
	}
	return tracked.Actor{ID: claims.UserID(), Username: claims.Username}, true
}

// writeServiceError maps domain and storage errors onto problem responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, env string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problemNotFound, "Not Found", err, env)
	case errors.Is(err, domain.ErrInvalid):
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, env)
	case errors.Is(err, auth.ErrUnauthenticated):
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", err, env)
	case errors.Is(err, auth.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, "about:blank", "Forbidden", err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problemServer, "Server error", err, env)
	}
}
