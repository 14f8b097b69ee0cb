package handlers

import (
	"errors"
	"net/http"

	"github.com/opsdesk/server/internal/api/problem"
	"github.com/opsdesk/server/internal/domain/users"
)

type UsersHandler struct {
	Service *users.Service
	Env     string
}

func NewUsersHandler(service *users.Service, env string) *UsersHandler {
	return &UsersHandler{Service: service, Env: env}
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Service.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", nil, h.Env)
		return
	}

	var params users.CreateParams
	if err := decodeJSON(r, &params); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	user, err := h.Service.Create(r.Context(), actor, params)
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			problem.Write(w, r, http.StatusConflict, problemConflict, "Conflict", err, h.Env)
			return
		}
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", nil, h.Env)
		return
	}

	var params users.UpdateParams
	if err := decodeJSON(r, &params); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	user, err := h.Service.Update(r.Context(), actor, r.PathValue("id"), params)
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			problem.Write(w, r, http.StatusConflict, problemConflict, "Conflict", err, h.Env)
			return
		}
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", nil, h.Env)
		return
	}

	if err := h.Service.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}
