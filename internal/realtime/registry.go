package realtime

import (
	"sync"

	"github.com/opsdesk/server/internal/auth"
	"github.com/opsdesk/server/internal/metrics"
)

// Group is a broadcast audience. Membership is computed once at registration
// from the connection's role and never changes; a role change requires a
// reconnect.
type Group string

const (
	GroupAll   Group = "all"
	GroupAdmin Group = "admin"
)

// Identity is the authenticated principal behind a connection.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// Conn is one live realtime connection. Process-local; its lifetime is
// bounded by the underlying socket.
type Conn struct {
	id       string
	identity Identity
	groups   map[Group]struct{}
	send     chan Event

	closeOnce sync.Once
}

func (c *Conn) ID() string         { return c.id }
func (c *Conn) Identity() Identity { return c.identity }

// Events is the channel drained by the connection's write pump. It is closed
// when the connection is unregistered.
func (c *Conn) Events() <-chan Event { return c.send }

func (c *Conn) inGroup(group Group) bool {
	_, ok := c.groups[group]
	return ok
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Registry tracks live connections and their group memberships. It is the
// only shared mutable state in the realtime layer and synchronizes
// internally; callers never lock.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	byUser map[string]string // user id -> most recently registered conn id

	sendBuffer int
}

func NewRegistry(sendBuffer int) *Registry {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Registry{
		conns:      make(map[string]*Conn),
		byUser:     make(map[string]string),
		sendBuffer: sendBuffer,
	}
}

// Register adds a connection, assigning groups from the identity's role:
// everyone joins "all", admins additionally join "admin". If the user already
// has a connection the new one wins the user index; the stale connection is
// not closed, it just can no longer be targeted by user-directed sends.
func (r *Registry) Register(connID string, identity Identity) *Conn {
	groups := map[Group]struct{}{GroupAll: {}}
	if auth.NormalizeRole(identity.Role) == string(auth.RoleAdmin) {
		groups[GroupAdmin] = struct{}{}
	}

	conn := &Conn{
		id:       connID,
		identity: identity,
		groups:   groups,
		send:     make(chan Event, r.sendBuffer),
	}

	r.mu.Lock()
	r.conns[connID] = conn
	r.byUser[identity.UserID] = connID
	r.mu.Unlock()

	metrics.RealtimeConnections.Inc()
	return conn
}

// Unregister removes a connection and its memberships. Idempotent: safe to
// call on both explicit disconnect and cleanup sweep, or for ids never
// registered.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
		// Only drop the user index entry if it still points at this
		// connection; a reconnect may have overwritten it already.
		if current, exists := r.byUser[conn.identity.UserID]; exists && current == connID {
			delete(r.byUser, conn.identity.UserID)
		}
	}
	r.mu.Unlock()

	if ok {
		conn.close()
		metrics.RealtimeConnections.Dec()
	}
}

// Lookup returns the connection id most recently registered for the user.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// snapshotGroup returns the current members of a group.
func (r *Registry) snapshotGroup(group Group) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var members []*Conn
	for _, conn := range r.conns {
		if conn.inGroup(group) {
			members = append(members, conn)
		}
	}
	return members
}

// get returns the connection with the given id.
func (r *Registry) get(connID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// CloseAll unregisters every connection, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]*Conn)
	r.byUser = make(map[string]string)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.close()
		metrics.RealtimeConnections.Dec()
	}
}
