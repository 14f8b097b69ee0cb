package storage

import "time"

// DashboardItem is a hand-off note, complaint, or reminder shown on the
// shared staff dashboard.
type DashboardItem struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"` // pass-on | complaint | reminder
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Priority      string    `json:"priority"` // low | medium | high
	Status        string    `json:"status"`   // pending | in-progress | resolved
	CreatedBy     string    `json:"createdBy"`
	CreatedByName string    `json:"createdByName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// MaintenanceHeading groups maintenance issues under a common label.
// Issues are embedded: a heading and its issues are read and written as one
// document, so concurrent issue edits resolve last-write-wins at the store.
type MaintenanceHeading struct {
	ID            string             `json:"id"`
	Heading       string             `json:"heading"`
	Issues        []MaintenanceIssue `json:"issues"`
	CreatedBy     string             `json:"createdBy"`
	CreatedByName string             `json:"createdByName,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}

type MaintenanceIssue struct {
	ID          string    `json:"id"`
	RoomNumber  string    `json:"roomNumber"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"` // pending | in-progress | resolved
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"` // staff | admin
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

// AuditRecord is immutable once appended. There is no update or delete path.
type AuditRecord struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`     // create | update | delete
	EntityKind string    `json:"entityKind"` // pass-on | complaint | reminder | maintenance | user
	EntityID   string    `json:"entityId"`
	ActorID    string    `json:"actorId"`
	ActorName  string    `json:"actorName,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuditFilters narrows an audit query. Nil/zero fields match everything.
type AuditFilters struct {
	Action  string
	ActorID string
	Start   *time.Time
	End     *time.Time
}

type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

type ActorCount struct {
	ActorID  string `json:"actorId"`
	Username string `json:"username"`
	Count    int64  `json:"count"`
}

type KindCount struct {
	EntityKind string `json:"entityKind"`
	Count      int64  `json:"count"`
}
