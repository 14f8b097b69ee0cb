package users

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/server/internal/audit"
	"github.com/opsdesk/server/internal/auth"
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
	jwt := auth.NewJWTManager("test-secret", time.Hour, "opsdesk")
	return NewService(store.Users(), coord, jwt, zerolog.Nop()), store, hub
}

var admin = tracked.Actor{ID: "admin-1", Username: "root"}

func TestCreate_BroadcastsToAdminsOnly(t *testing.T) {
	svc, store, hub := newService(t)

	user, err := svc.Create(context.Background(), admin, CreateParams{
		Username: "alice",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, string(auth.RoleStaff), user.Role)
	assert.NotEqual(t, "hunter2hunter2", user.PasswordHash)

	records, err := store.AuditLogs().Query(context.Background(), storage.AuditFilters{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, audit.KindUser, records[0].EntityKind)
	assert.Equal(t, "Created new user: alice", records[0].Detail)

	// User events never reach the general group.
	assert.Empty(t, hub.all)
	require.Len(t, hub.admins, 3)
	assert.Equal(t, realtime.EventUserAdded, hub.admins[0].Name)
}

func TestCreate_DuplicateUsername(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Create(context.Background(), admin, CreateParams{Username: "alice", Password: "hunter2hunter2"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), admin, CreateParams{Username: "alice", Password: "otherpassword"})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestCreate_RejectsShortPassword(t *testing.T) {
	svc, _, hub := newService(t)

	_, err := svc.Create(context.Background(), admin, CreateParams{Username: "bob", Password: "short"})
	require.ErrorIs(t, err, domain.ErrInvalid)
	assert.Empty(t, hub.admins)
}

func TestLogin(t *testing.T) {
	svc, store, _ := newService(t)

	created, err := svc.Create(context.Background(), admin, CreateParams{
		Username: "alice",
		Password: "hunter2hunter2",
		Role:     "admin",
	})
	require.NoError(t, err)

	token, user, err := svc.Login(context.Background(), "alice", "hunter2hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, created.ID, user.ID)

	// The token round-trips through the verifier with the right identity.
	jwt := auth.NewJWTManager("test-secret", time.Hour, "opsdesk")
	claims, err := jwt.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID())
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)

	stored, err := store.Users().GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)

	_, _, err = svc.Login(context.Background(), "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(context.Background(), "nobody", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdate_RoleAndPassword(t *testing.T) {
	svc, _, hub := newService(t)

	created, err := svc.Create(context.Background(), admin, CreateParams{Username: "alice", Password: "hunter2hunter2"})
	require.NoError(t, err)

	role := "admin"
	password := "replacement-pass"
	updated, err := svc.Update(context.Background(), admin, created.ID, UpdateParams{Role: &role, Password: &password})
	require.NoError(t, err)
	assert.Equal(t, "admin", updated.Role)

	_, _, err = svc.Login(context.Background(), "alice", "replacement-pass")
	require.NoError(t, err)
	_, _, err = svc.Login(context.Background(), "alice", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, realtime.EventUserUpdated, hub.admins[3].Name)
}

func TestUpdate_UsernameCollision(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Create(context.Background(), admin, CreateParams{Username: "alice", Password: "hunter2hunter2"})
	require.NoError(t, err)
	bob, err := svc.Create(context.Background(), admin, CreateParams{Username: "bob", Password: "hunter2hunter2"})
	require.NoError(t, err)

	taken := "alice"
	_, err = svc.Update(context.Background(), admin, bob.ID, UpdateParams{Username: &taken})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestDelete(t *testing.T) {
	svc, store, hub := newService(t)

	created, err := svc.Create(context.Background(), admin, CreateParams{Username: "carol", Password: "hunter2hunter2"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), admin, created.ID))
	_, err = store.Users().GetByID(context.Background(), created.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	last := hub.admins[len(hub.admins)-3]
	assert.Equal(t, realtime.EventUserDeleted, last.Name)
	payload, ok := last.Payload.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, created.ID, payload["id"])
}

func TestDelete_SelfIsRejected(t *testing.T) {
	svc, _, _ := newService(t)

	created, err := svc.Create(context.Background(), admin, CreateParams{Username: "dave", Password: "hunter2hunter2"})
	require.NoError(t, err)

	self := tracked.Actor{ID: created.ID, Username: "dave"}
	err = svc.Delete(context.Background(), self, created.ID)
	require.ErrorIs(t, err, domain.ErrInvalid)
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	svc, _, _ := newService(t)

	user, created, err := svc.EnsureAdmin(context.Background(), "root", "bootstrap-password")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, string(auth.RoleAdmin), user.Role)

	again, created, err := svc.EnsureAdmin(context.Background(), "root", "different-password")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)

	// The original password still works.
	_, _, err = svc.Login(context.Background(), "root", "bootstrap-password")
	require.NoError(t, err)
}
