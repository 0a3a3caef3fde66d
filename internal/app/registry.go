package app

import (
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/core"
	"github.com/nasty-codes-software/resonance/internal/domain"
)

// conn is one live transport connection. user stays zero until the client
// authenticates; an unauthenticated conn can do nothing but auth.
type conn struct {
	id     core.ConnID
	signal core.SignalConnection
	user   domain.UserID
}

// binding ties an authenticated user to exactly one conn and caches the
// profile plus per-identity media flags for the binding's lifetime.
type binding struct {
	connID        core.ConnID
	user          *domain.User
	screenSharing bool
}

// registry owns both lookup directions: conn by id and binding by user.
// It holds no lock of its own; the hub serializes every call.
type registry struct {
	nextID   core.ConnID
	conns    map[core.ConnID]*conn
	bindings map[domain.UserID]*binding
}

func newRegistry() *registry {
	return &registry{
		conns:    make(map[core.ConnID]*conn),
		bindings: make(map[domain.UserID]*binding),
	}
}

// open admits a new transport connection and assigns its id.
func (r *registry) open(sc core.SignalConnection) *conn {
	r.nextID++
	c := &conn{id: r.nextID, signal: sc}
	r.conns[c.id] = c
	log.Debug().Str("module", "app.registry").Uint64("conn", uint64(c.id)).Msg("connection opened")
	return c
}

func (r *registry) get(id core.ConnID) (*conn, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// bound returns the conn together with its binding, or false when the conn
// is unknown or has not completed auth.
func (r *registry) bound(id core.ConnID) (*conn, *binding, bool) {
	c, ok := r.conns[id]
	if !ok || c.user == 0 {
		return nil, nil, false
	}
	b, ok := r.bindings[c.user]
	if !ok || b.connID != id {
		return nil, nil, false
	}
	return c, b, true
}

// lookupUser resolves a user's current conn, if any.
func (r *registry) lookupUser(id domain.UserID) (*conn, bool) {
	b, ok := r.bindings[id]
	if !ok {
		return nil, false
	}
	c, ok := r.conns[b.connID]
	return c, ok
}

func (r *registry) binding(id domain.UserID) (*binding, bool) {
	b, ok := r.bindings[id]
	return b, ok
}

// install binds user to c, replacing any previous binding for the same
// user. The caller must have torn the previous conn down first.
func (r *registry) install(c *conn, user *domain.User) *binding {
	c.user = user.ID
	b := &binding{connID: c.id, user: user}
	r.bindings[user.ID] = b
	log.Info().Str("module", "app.registry").
		Uint64("conn", uint64(c.id)).
		Int64("user", int64(user.ID)).
		Str("username", user.Username).
		Msg("identity bound")
	return b
}

// owns reports whether c is the current binding for its user. A false
// answer means another conn took the identity over.
func (r *registry) owns(c *conn) bool {
	if c.user == 0 {
		return false
	}
	b, ok := r.bindings[c.user]
	return ok && b.connID == c.id
}

// unbind drops the user binding held by c, if c still owns it.
func (r *registry) unbind(c *conn) {
	if !r.owns(c) {
		return
	}
	delete(r.bindings, c.user)
	log.Debug().Str("module", "app.registry").
		Uint64("conn", uint64(c.id)).
		Int64("user", int64(c.user)).
		Msg("identity unbound")
}

// remove forgets the conn entirely. Bindings must be gone already.
func (r *registry) remove(id core.ConnID) {
	delete(r.conns, id)
	log.Debug().Str("module", "app.registry").Uint64("conn", uint64(id)).Msg("connection removed")
}

func (r *registry) connCount() int  { return len(r.conns) }
func (r *registry) boundCount() int { return len(r.bindings) }
