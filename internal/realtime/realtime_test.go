package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/server/internal/auth"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	registry := NewRegistry(8)
	t.Cleanup(registry.CloseAll)
	return NewHub(registry, zerolog.Nop())
}

func drain(t *testing.T, conn *Conn) Event {
	t.Helper()
	select {
	case event := <-conn.Events():
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertEmpty(t *testing.T, conn *Conn) {
	t.Helper()
	select {
	case event := <-conn.Events():
		t.Fatalf("unexpected event %q", event.Name)
	default:
	}
}

func TestRegistry_GroupsFollowRole(t *testing.T) {
	hub := testHub(t)
	staff := hub.Registry().Register("c1", Identity{UserID: "u1", Username: "alice", Role: "staff"})
	admin := hub.Registry().Register("c2", Identity{UserID: "u2", Username: "bob", Role: "admin"})

	hub.PublishToAll(NewEvent(EventDashboardItemAdded, map[string]string{"id": "x"}))
	require.Equal(t, EventDashboardItemAdded, drain(t, staff).Name)
	require.Equal(t, EventDashboardItemAdded, drain(t, admin).Name)

	hub.PublishToAdmins(NewEvent(EventLogAdded, nil))
	require.Equal(t, EventLogAdded, drain(t, admin).Name)
	assertEmpty(t, staff)
}

func TestRegistry_UnknownRoleTreatedAsStaff(t *testing.T) {
	hub := testHub(t)
	conn := hub.Registry().Register("c1", Identity{UserID: "u1", Role: "superuser"})

	hub.PublishToAdmins(NewEvent(EventStatsUpdated, nil))
	assertEmpty(t, conn)

	hub.PublishToAll(NewEvent(EventUserUpdated, nil))
	require.Equal(t, EventUserUpdated, drain(t, conn).Name)
}

func TestRegistry_ReconnectWinsUserIndex(t *testing.T) {
	registry := NewRegistry(8)
	defer registry.CloseAll()

	registry.Register("old", Identity{UserID: "u1", Role: "staff"})
	registry.Register("new", Identity{UserID: "u1", Role: "staff"})

	connID, ok := registry.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "new", connID)
	assert.Equal(t, 2, registry.Len())

	// Tearing down the stale connection must not evict the fresh one from
	// the user index.
	registry.Unregister("old")
	connID, ok = registry.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "new", connID)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	registry := NewRegistry(8)
	registry.Register("c1", Identity{UserID: "u1", Role: "staff"})

	registry.Unregister("c1")
	registry.Unregister("c1")
	registry.Unregister("never-existed")

	assert.Equal(t, 0, registry.Len())
	_, ok := registry.Lookup("u1")
	assert.False(t, ok)
}

func TestHub_PublishToUser(t *testing.T) {
	hub := testHub(t)
	alice := hub.Registry().Register("c1", Identity{UserID: "u1", Username: "alice", Role: "staff"})
	bob := hub.Registry().Register("c2", Identity{UserID: "u2", Username: "bob", Role: "staff"})

	hub.PublishToUser("u1", NewEvent(EventDashboardItemUpdated, nil))
	require.Equal(t, EventDashboardItemUpdated, drain(t, alice).Name)
	assertEmpty(t, bob)

	// Absent user: silent no-op.
	hub.PublishToUser("nobody", NewEvent(EventDashboardItemUpdated, nil))
}

func TestHub_SlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	registry := NewRegistry(1)
	defer registry.CloseAll()
	hub := NewHub(registry, zerolog.Nop())

	conn := registry.Register("c1", Identity{UserID: "u1", Role: "staff"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			hub.PublishToAll(NewEvent(EventDashboardItemAdded, i))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow consumer")
	}

	// The buffer held exactly one event; the rest were dropped.
	require.Equal(t, EventDashboardItemAdded, drain(t, conn).Name)
	assertEmpty(t, conn)
}

func TestHub_PublishAfterUnregisterIsNoOp(t *testing.T) {
	hub := testHub(t)
	hub.Registry().Register("c1", Identity{UserID: "u1", Role: "admin"})
	hub.Registry().Unregister("c1")

	hub.PublishToAll(NewEvent(EventDashboardItemAdded, nil))
	hub.PublishToAdmins(NewEvent(EventLogAdded, nil))
	hub.PublishToUser("u1", NewEvent(EventStatsUpdated, nil))
}

func newTestHandler(t *testing.T, hub *Hub, jwt *auth.JWTManager) *httptest.Server {
	t.Helper()
	handler := NewHandler(hub, jwt, []string{"*"}, time.Second, zerolog.Nop())
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHandler_RejectsBadTokenBeforeUpgrade(t *testing.T) {
	jwt := auth.NewJWTManager("test-secret", time.Hour, "opsdesk")
	hub := testHub(t)
	srv := newTestHandler(t, hub, jwt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, url := range []string{
		wsURL(srv),                           // no token at all
		wsURL(srv) + "?token=not-a-jwt",      // garbage token
		wsURL(srv) + "?token=" + expiredToken(t), // valid shape, expired
	} {
		_, resp, err := websocket.Dial(ctx, url, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, 401, resp.StatusCode)
	}

	assert.Equal(t, 0, hub.Registry().Len())
}

func expiredToken(t *testing.T) string {
	t.Helper()
	expired := auth.NewJWTManager("test-secret", -time.Hour, "opsdesk")
	token, err := expired.Generate("u1", "alice", "staff")
	require.NoError(t, err)
	return token
}

func TestHandler_DeliversEventsToDialedClient(t *testing.T) {
	jwt := auth.NewJWTManager("test-secret", time.Hour, "opsdesk")
	hub := testHub(t)
	srv := newTestHandler(t, hub, jwt)

	token, err := jwt.Generate("u1", "alice", "admin")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, wsURL(srv)+"?token="+token, nil)
	require.NoError(t, err)
	defer ws.Close(websocket.StatusNormalClosure, "")

	// Registration happens inside the handler goroutine after the upgrade
	// completes; wait for it to land.
	require.Eventually(t, func() bool {
		return hub.Registry().Len() == 1
	}, time.Second, 10*time.Millisecond)

	hub.PublishToAdmins(NewEvent(EventLogAdded, map[string]string{"action": "create"}))

	var got Event
	require.NoError(t, wsjson.Read(ctx, ws, &got))
	assert.Equal(t, EventLogAdded, got.Name)
}
