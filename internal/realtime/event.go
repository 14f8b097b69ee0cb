// Package realtime pushes mutation events to connected staff clients over
// websockets. Delivery is at-most-once and best-effort: a missed event only
// means stale state until the client's next full re-fetch, which is the
// correctness backstop.
package realtime

// Event is an ephemeral broadcast message. It is never stored and never
// redelivered; clients re-fetch authoritative state after reconnecting.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

func NewEvent(name string, payload any) Event {
	return Event{Name: name, Payload: payload}
}

// Event names emitted by the server.
const (
	EventDashboardItemAdded   = "dashboardItem:added"
	EventDashboardItemUpdated = "dashboardItem:updated"
	EventDashboardItemDeleted = "dashboardItem:deleted"

	EventMaintenanceHeadingAdded   = "maintenance:headingAdded"
	EventMaintenanceHeadingDeleted = "maintenance:headingDeleted"
	EventMaintenanceIssueAdded     = "maintenance:issueAdded"
	EventMaintenanceIssueUpdated   = "maintenance:issueUpdated"
	EventMaintenanceIssueDeleted   = "maintenance:issueDeleted"

	EventUserAdded   = "user:added"
	EventUserUpdated = "user:updated"
	EventUserDeleted = "user:deleted"

	EventLogAdded     = "log:added"
	EventStatsUpdated = "stats:updated"
)
