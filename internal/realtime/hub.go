package realtime

import (
	"github.com/rs/zerolog"

	"github.com/opsdesk/server/internal/metrics"
)

// Hub fans events out to registered connections. Delivery is best effort,
// at most once: a slow consumer whose buffer is full has the event dropped
// rather than blocking the publisher, and publishing to an empty group or an
// absent user is a silent no-op.
type Hub struct {
	registry *Registry
	logger   zerolog.Logger
}

func NewHub(registry *Registry, logger zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		logger:   logger.With().Str("component", "realtime").Logger(),
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

// PublishToAll delivers the event to every connection.
func (h *Hub) PublishToAll(event Event) {
	h.publishGroup(GroupAll, event)
}

// PublishToAdmins delivers the event to admin connections only.
func (h *Hub) PublishToAdmins(event Event) {
	h.publishGroup(GroupAdmin, event)
}

// PublishToUser delivers the event to the user's most recent connection, if
// any.
func (h *Hub) PublishToUser(userID string, event Event) {
	connID, ok := h.registry.Lookup(userID)
	if !ok {
		return
	}
	conn, ok := h.registry.get(connID)
	if !ok {
		return
	}
	metrics.RealtimeEventsTotal.WithLabelValues("user").Inc()
	h.send(conn, event)
}

func (h *Hub) publishGroup(group Group, event Event) {
	members := h.registry.snapshotGroup(group)
	if len(members) == 0 {
		return
	}
	metrics.RealtimeEventsTotal.WithLabelValues(string(group)).Inc()
	for _, conn := range members {
		h.send(conn, event)
	}
}

func (h *Hub) send(conn *Conn, event Event) {
	defer func() {
		// The send channel closes on unregister; a publish racing that
		// close is treated as a drop.
		if recover() != nil {
			metrics.RealtimeEventsDropped.Inc()
		}
	}()

	select {
	case conn.send <- event:
	default:
		metrics.RealtimeEventsDropped.Inc()
		h.logger.Debug().
			Str("conn_id", conn.id).
			Str("event", event.Name).
			Msg("dropping event for slow consumer")
	}
}
