package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opsdesk/server/internal/api/problem"
	"github.com/opsdesk/server/internal/audit"
	"github.com/opsdesk/server/internal/storage"
)

type LogsHandler struct {
	Service *audit.Service
	Env     string
}

func NewLogsHandler(service *audit.Service, env string) *LogsHandler {
	return &LogsHandler{Service: service, Env: env}
}

// List serves the admin log viewer. Query parameters keep their original
// names: type filters on action, user on the acting user's id, startDate and
// endDate bound the timestamp.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := parseLogFilters(r.URL.Query())
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	records, err := h.Service.Query(r.Context(), filters)
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *LogsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseLogFilters(values url.Values) (storage.AuditFilters, error) {
	filters := storage.AuditFilters{
		Action:  strings.TrimSpace(values.Get("type")),
		ActorID: strings.TrimSpace(values.Get("user")),
	}

	start, err := parseLogDate("startDate", values.Get("startDate"))
	if err != nil {
		return filters, err
	}
	end, err := parseLogDate("endDate", values.Get("endDate"))
	if err != nil {
		return filters, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return filters, fmt.Errorf("endDate must be on or after startDate")
	}
	filters.Start = start
	filters.End = end
	return filters, nil
}

// parseLogDate accepts a full RFC 3339 timestamp or a bare date; a bare
// endDate covers the whole day.
func parseLogDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		ts = ts.UTC()
		return &ts, nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", field, value)
	}
	ts := day.UTC()
	if field == "endDate" {
		ts = ts.Add(24*time.Hour - time.Nanosecond)
	}
	return &ts, nil
}
