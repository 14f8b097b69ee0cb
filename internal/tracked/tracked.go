// Package tracked coordinates the side effects every recorded mutation
// carries: exactly one audit record and at most one domain broadcast per
// successful state change, and neither when the change fails.
package tracked

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/opsdesk/server/internal/audit"
	"github.com/opsdesk/server/internal/realtime"
)

// Audience selects who receives the domain event for a mutation.
type Audience int

const (
	AudienceAll Audience = iota
	AudienceAdmins
)

// Broadcaster is the slice of the realtime hub the coordinator needs.
type Broadcaster interface {
	PublishToAll(event realtime.Event)
	PublishToAdmins(event realtime.Event)
}

// Actor identifies who performed a mutation, taken from the verified token.
type Actor struct {
	ID       string
	Username string
}

// Request describes one mutation. Apply performs the state change and, on
// success, reports what to record and what to broadcast.
type Request struct {
	Action     string
	EntityKind string
	Actor      Actor
	Apply      func(ctx context.Context) (Outcome, error)
}

// Outcome is what a successful Apply produced. EntityKind, when set,
// overrides the request's kind; mutations that only learn the kind after
// loading the entity fill it here.
type Outcome struct {
	EntityID   string
	EntityKind string
	Detail     string
	Event      realtime.Event
	Audience   Audience
}

type Coordinator struct {
	audit  *audit.Service
	hub    Broadcaster
	logger zerolog.Logger
}

func NewCoordinator(auditSvc *audit.Service, hub Broadcaster, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		audit:  auditSvc,
		hub:    hub,
		logger: logger.With().Str("component", "tracked").Logger(),
	}
}

// Perform runs the mutation and, if it succeeds, appends the audit record and
// publishes the domain event. A failed mutation produces neither. An audit
// append that fails after the state change committed is logged and does not
// fail the request; the admin log events are skipped in that case so the log
// viewer never sees a record that was not stored.
func (c *Coordinator) Perform(ctx context.Context, req Request) (Outcome, error) {
	outcome, err := req.Apply(ctx)
	if err != nil {
		return Outcome{}, err
	}

	entityKind := req.EntityKind
	if outcome.EntityKind != "" {
		entityKind = outcome.EntityKind
	}

	record, auditErr := c.audit.Append(ctx,
		req.Action, entityKind, outcome.EntityID,
		req.Actor.ID, req.Actor.Username, outcome.Detail)
	if auditErr != nil {
		c.logger.Error().Err(auditErr).
			Str("action", req.Action).
			Str("entity_kind", entityKind).
			Str("entity_id", outcome.EntityID).
			Str("actor_id", req.Actor.ID).
			Msg("mutation committed but audit append failed")
	}

	switch outcome.Audience {
	case AudienceAdmins:
		c.hub.PublishToAdmins(outcome.Event)
	default:
		c.hub.PublishToAll(outcome.Event)
	}

	if auditErr == nil {
		c.hub.PublishToAdmins(realtime.NewEvent(realtime.EventLogAdded, record))
		c.hub.PublishToAdmins(realtime.NewEvent(realtime.EventStatsUpdated, nil))
	}

	return outcome, nil
}
