// Package audit records one immutable entry for every tracked mutation and
// serves the admin log viewer: filtered queries and grouped statistics.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsdesk/server/internal/domain/ids"
	"github.com/opsdesk/server/internal/metrics"
	"github.com/opsdesk/server/internal/storage"
)

// Actions recorded in the log.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Entity kinds routed through audit and broadcast.
const (
	KindPassOn      = "pass-on"
	KindComplaint   = "complaint"
	KindReminder    = "reminder"
	KindMaintenance = "maintenance"
	KindUser        = "user"
)

// TopActorsLimit matches the log viewer's "most active staff" widget.
const TopActorsLimit = 5

type Service struct {
	repo   storage.AuditLogRepository
	logger zerolog.Logger
}

func NewService(repo storage.AuditLogRepository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Append writes one record. The id and timestamp are assigned here so records
// are fully formed before they hit the store; the ULID id doubles as the
// tie-break for records sharing a timestamp.
func (s *Service) Append(ctx context.Context, action, entityKind, entityID, actorID, actorName, detail string) (storage.AuditRecord, error) {
	id, err := ids.NewULID()
	if err != nil {
		metrics.AuditAppendsTotal.WithLabelValues("error").Inc()
		return storage.AuditRecord{}, fmt.Errorf("audit id: %w", err)
	}

	record := storage.AuditRecord{
		ID:         id,
		Action:     action,
		EntityKind: entityKind,
		EntityID:   entityID,
		ActorID:    actorID,
		ActorName:  actorName,
		Detail:     detail,
		Timestamp:  time.Now().UTC(),
	}

	if err := s.repo.Append(ctx, record); err != nil {
		metrics.AuditAppendsTotal.WithLabelValues("error").Inc()
		return storage.AuditRecord{}, fmt.Errorf("append audit record: %w", err)
	}

	metrics.AuditAppendsTotal.WithLabelValues("ok").Inc()
	return record, nil
}

// Query returns the newest matching records, capped at storage.AuditQueryLimit.
func (s *Service) Query(ctx context.Context, filters storage.AuditFilters) ([]storage.AuditRecord, error) {
	records, err := s.repo.Query(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	if records == nil {
		records = []storage.AuditRecord{}
	}
	return records, nil
}

// Stats combines the three aggregations over a point-in-time snapshot of the
// log. Each view only needs to reflect records appended before the query
// began.
type Stats struct {
	ByAction     []storage.ActionCount `json:"actionStats"`
	ByActor      []storage.ActorCount  `json:"userStats"`
	ByEntityKind []storage.KindCount   `json:"itemTypeStats"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	byAction, err := s.repo.CountByAction(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate by action: %w", err)
	}
	byActor, err := s.repo.TopActors(ctx, TopActorsLimit)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate by actor: %w", err)
	}
	byKind, err := s.repo.CountByEntityKind(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate by entity kind: %w", err)
	}

	if byAction == nil {
		byAction = []storage.ActionCount{}
	}
	if byActor == nil {
		byActor = []storage.ActorCount{}
	}
	if byKind == nil {
		byKind = []storage.KindCount{}
	}
	return Stats{ByAction: byAction, ByActor: byActor, ByEntityKind: byKind}, nil
}
