package handlers

import (
	"net/http"

	"github.com/opsdesk/server/internal/api/problem"
	"github.com/opsdesk/server/internal/domain/maintenance"
)

type MaintenanceHandler struct {
	Service *maintenance.Service
	Env     string
}

func NewMaintenanceHandler(service *maintenance.Service, env string) *MaintenanceHandler {
	return &MaintenanceHandler{Service: service, Env: env}
}

func (h *MaintenanceHandler) List(w http.ResponseWriter, r *http.Request) {
	headings, err := h.Service.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, headings)
}

func (h *MaintenanceHandler) CreateHeading(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", nil, h.Env)
		return
	}

	var params maintenance.CreateHeadingParams
	if err := decodeJSON(r, &params); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	heading, err := h.Service.CreateHeading(r.Context(), actor, params)
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, heading)
}

func (h *MaintenanceHandler) DeleteHeading(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", nil, h.Env)
		return
	}

	if err := h.Service.DeleteHeading(r.Context(), actor, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Maintenance heading deleted"})
}

func (h *MaintenanceHandler) AddIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", nil, h.Env)
		return
	}

	var params maintenance.AddIssueParams
	if err := decodeJSON(r, &params); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	heading, err := h.Service.AddIssue(r.Context(), actor, r.PathValue("id"), params)
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, heading)
}

func (h *MaintenanceHandler) UpdateIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", nil, h.Env)
		return
	}

	var params maintenance.UpdateIssueParams
	if err := decodeJSON(r, &params); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	heading, err := h.Service.UpdateIssue(r.Context(), actor, r.PathValue("id"), r.PathValue("issueID"), params)
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, heading)
}

func (h *MaintenanceHandler) DeleteIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", nil, h.Env)
		return
	}

	heading, err := h.Service.DeleteIssue(r.Context(), actor, r.PathValue("id"), r.PathValue("issueID"))
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, heading)
}
