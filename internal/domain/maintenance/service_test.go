package maintenance

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/server/internal/audit"
	"github.com/opsdesk/server/internal/domain"
	"github.com/opsdesk/server/internal/realtime"
	"github.com/opsdesk/server/internal/storage"
	"github.com/opsdesk/server/internal/storage/memory"
	"github.com/opsdesk/server/internal/tracked"
)

type captureHub struct {
	all    []realtime.Event
	admins []realtime.Event
}

func (h *captureHub) PublishToAll(event realtime.Event)    { h.all = append(h.all, event) }
func (h *captureHub) PublishToAdmins(event realtime.Event) { h.admins = append(h.admins, event) }

func newService(t *testing.T) (*Service, *memory.Repository, *captureHub) {
	t.Helper()
	store := memory.NewRepository()
	hub := &captureHub{}
	coord := tracked.NewCoordinator(audit.NewService(store.AuditLogs(), zerolog.Nop()), hub, zerolog.Nop())
	return NewService(store.Maintenance(), coord, zerolog.Nop()), store, hub
}

var staff = tracked.Actor{ID: "u1", Username: "alice"}

func TestCreateHeading(t *testing.T) {
	svc, store, hub := newService(t)

	heading, err := svc.CreateHeading(context.Background(), staff, CreateHeadingParams{Heading: "Second floor"})
	require.NoError(t, err)
	assert.NotEmpty(t, heading.ID)
	assert.NotNil(t, heading.Issues)
	assert.Empty(t, heading.Issues)

	records, err := store.AuditLogs().Query(context.Background(), storage.AuditFilters{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Created new maintenance heading: Second floor", records[0].Detail)
	assert.Equal(t, audit.KindMaintenance, records[0].EntityKind)

	require.Len(t, hub.all, 1)
	assert.Equal(t, realtime.EventMaintenanceHeadingAdded, hub.all[0].Name)
}

func TestDeleteHeading_PayloadIsHeadingID(t *testing.T) {
	svc, store, hub := newService(t)

	heading, err := svc.CreateHeading(context.Background(), staff, CreateHeadingParams{Heading: "Roof"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteHeading(context.Background(), staff, heading.ID))

	_, err = store.Maintenance().GetByID(context.Background(), heading.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	records, err := store.AuditLogs().Query(context.Background(), storage.AuditFilters{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Deleted maintenance heading: Roof", records[0].Detail)

	require.Len(t, hub.all, 2)
	assert.Equal(t, realtime.EventMaintenanceHeadingDeleted, hub.all[1].Name)
	assert.Equal(t, heading.ID, hub.all[1].Payload)
}

func TestAddIssue(t *testing.T) {
	svc, store, hub := newService(t)

	heading, err := svc.CreateHeading(context.Background(), staff, CreateHeadingParams{Heading: "Plumbing"})
	require.NoError(t, err)

	updated, err := svc.AddIssue(context.Background(), staff, heading.ID, AddIssueParams{
		RoomNumber:  "204",
		Description: "Leaking faucet",
	})
	require.NoError(t, err)
	require.Len(t, updated.Issues, 1)
	issue := updated.Issues[0]
	assert.NotEmpty(t, issue.ID)
	assert.Equal(t, "204", issue.RoomNumber)
	assert.Equal(t, StatusPending, issue.Status)

	records, err := store.AuditLogs().Query(context.Background(), storage.AuditFilters{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Added issue for room 204 under Plumbing", records[0].Detail)

	require.Len(t, hub.all, 2)
	assert.Equal(t, realtime.EventMaintenanceIssueAdded, hub.all[1].Name)
	payload, ok := hub.all[1].Payload.(IssueEventPayload)
	require.True(t, ok)
	assert.Equal(t, heading.ID, payload.HeadingID)
	assert.Len(t, payload.UpdatedHeading.Issues, 1)
}

func TestUpdateIssueStatus(t *testing.T) {
	svc, store, hub := newService(t)

	heading, err := svc.CreateHeading(context.Background(), staff, CreateHeadingParams{Heading: "Electrics"})
	require.NoError(t, err)
	withIssue, err := svc.AddIssue(context.Background(), staff, heading.ID, AddIssueParams{RoomNumber: "101"})
	require.NoError(t, err)
	issueID := withIssue.Issues[0].ID

	updated, err := svc.UpdateIssue(context.Background(), staff, heading.ID, issueID, UpdateIssueParams{Status: StatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, updated.Issues[0].Status)
	assert.True(t, updated.Issues[0].UpdatedAt.After(withIssue.Issues[0].CreatedAt) ||
		updated.Issues[0].UpdatedAt.Equal(withIssue.Issues[0].CreatedAt))

	records, err := store.AuditLogs().Query(context.Background(), storage.AuditFilters{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Updated issue status to in-progress for room 101", records[0].Detail)

	assert.Equal(t, realtime.EventMaintenanceIssueUpdated, hub.all[len(hub.all)-1].Name)
}

func TestUpdateIssue_RejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newService(t)

	heading, err := svc.CreateHeading(context.Background(), staff, CreateHeadingParams{Heading: "HVAC"})
	require.NoError(t, err)
	withIssue, err := svc.AddIssue(context.Background(), staff, heading.ID, AddIssueParams{RoomNumber: "305"})
	require.NoError(t, err)

	_, err = svc.UpdateIssue(context.Background(), staff, heading.ID, withIssue.Issues[0].ID, UpdateIssueParams{Status: "done"})
	require.ErrorIs(t, err, domain.ErrInvalid)
}

func TestDeleteIssue(t *testing.T) {
	svc, store, hub := newService(t)

	heading, err := svc.CreateHeading(context.Background(), staff, CreateHeadingParams{Heading: "Plumbing"})
	require.NoError(t, err)
	withIssue, err := svc.AddIssue(context.Background(), staff, heading.ID, AddIssueParams{RoomNumber: "204"})
	require.NoError(t, err)

	updated, err := svc.DeleteIssue(context.Background(), staff, heading.ID, withIssue.Issues[0].ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Issues)

	records, err := store.AuditLogs().Query(context.Background(), storage.AuditFilters{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Deleted issue for room 204", records[0].Detail)
	assert.Equal(t, audit.ActionDelete, records[0].Action)

	last := hub.all[len(hub.all)-1]
	assert.Equal(t, realtime.EventMaintenanceIssueDeleted, last.Name)
	payload, ok := last.Payload.(IssueEventPayload)
	require.True(t, ok)
	assert.Equal(t, heading.ID, payload.HeadingID)
	assert.Empty(t, payload.UpdatedHeading.Issues)
}

func TestIssueOpsOnMissingHeadingOrIssue(t *testing.T) {
	svc, _, hub := newService(t)

	_, err := svc.AddIssue(context.Background(), staff, "missing", AddIssueParams{RoomNumber: "1"})
	require.ErrorIs(t, err, storage.ErrNotFound)

	heading, err := svc.CreateHeading(context.Background(), staff, CreateHeadingParams{Heading: "Lobby"})
	require.NoError(t, err)

	_, err = svc.UpdateIssue(context.Background(), staff, heading.ID, "missing", UpdateIssueParams{Status: StatusResolved})
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.DeleteIssue(context.Background(), staff, heading.ID, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Only the successful heading creation broadcast.
	assert.Len(t, hub.all, 1)
}
