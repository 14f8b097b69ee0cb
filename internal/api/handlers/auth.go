package handlers

import (
	"errors"
	"net/http"

	"github.com/opsdesk/server/internal/api/middleware"
	"github.com/opsdesk/server/internal/api/problem"
	"github.com/opsdesk/server/internal/domain/users"
	"github.com/opsdesk/server/internal/storage"
)

type AuthHandler struct {
	Users *users.Service
	Env   string
}

func NewAuthHandler(usersService *users.Service, env string) *AuthHandler {
	return &AuthHandler{Users: usersService, Env: env}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  storage.User `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	token, user, err := h.Users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", err, h.Env,
				problem.WithDetail("invalid credentials"))
			return
		}
		writeServiceError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// Me echoes the identity behind the presented token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", nil, h.Env)
		return
	}

	user, err := h.Users.GetByID(r.Context(), claims.UserID())
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
