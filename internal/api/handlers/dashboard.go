package handlers

import (
	"net/http"

	"github.com/opsdesk/server/internal/api/problem"
	"github.com/opsdesk/server/internal/domain/dashboard"
)

type DashboardHandler struct {
	Service *dashboard.Service
	Env     string
}

func NewDashboardHandler(service *dashboard.Service, env string) *DashboardHandler {
	return &DashboardHandler{Service: service, Env: env}
}

func (h *DashboardHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *DashboardHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", nil, h.Env)
		return
	}

	var params dashboard.CreateParams
	if err := decodeJSON(r, &params); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	item, err := h.Service.Create(r.Context(), actor, params)
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *DashboardHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", nil, h.Env)
		return
	}

	var params dashboard.UpdateParams
	if err := decodeJSON(r, &params); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	item, err := h.Service.Update(r.Context(), actor, r.PathValue("id"), params)
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *DashboardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", nil, h.Env)
		return
	}

	if err := h.Service.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Item deleted successfully"})
}
