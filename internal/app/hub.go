// Package app is the realtime core: one hub owns every connection,
// identity binding and room group, and applies client events to them.
package app

import (
	"sync"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/nasty-codes-software/resonance/internal/core"
	"github.com/nasty-codes-software/resonance/internal/domain"
)

// Deps are the storage collaborators the hub consults while holding its
// lock. Implementations must not call back into the hub.
type Deps struct {
	Identity core.IdentityStore
	Social   core.SocialGraph
	Messages core.MessageStore
	Voice    core.VoiceRoomStore
	Authz    core.Authorizer
	Tokens   core.TokenVerifier

	// ICEServers is handed to every client in auth_success so peers agree
	// on STUN/TURN without a second round trip.
	ICEServers []webrtc.ICEServer
}

// Hub serializes all realtime state behind one mutex. Every exported entry
// point takes the lock for its whole duration, so handlers never observe a
// half-applied event and fan-outs keep a total order per receiver.
type Hub struct {
	mu sync.Mutex

	reg      *registry
	rooms    *rooms
	deps     Deps
	validate *validator.Validate
}

func NewHub(deps Deps) *Hub {
	return &Hub{
		reg:      newRegistry(),
		rooms:    newRooms(),
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// OnOpen admits a transport connection and returns its id. The connection
// stays mute for everything except auth until an identity is bound.
func (h *Hub) OnOpen(sc core.SignalConnection) core.ConnID {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.reg.open(sc)
	connectionsGauge.Set(float64(h.reg.connCount()))
	return c.id
}

// OnClose finalizes a closed transport: groups, voice side effects,
// presence. Safe to call for ids the hub already evicted.
func (h *Hub) OnClose(id core.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.reg.get(id)
	if !ok {
		return
	}
	h.teardown(c, false)
}

// teardown removes every trace of c. With evicted set the identity is being
// taken over by a newer conn, so the user does not go offline.
func (h *Hub) teardown(c *conn, evicted bool) {
	h.leaveVoiceRoom(c)
	h.rooms.dropConn(c.id)

	ownedIdentity := h.reg.owns(c)
	var profile *domain.User
	if ownedIdentity {
		b, _ := h.reg.binding(c.user)
		profile = b.user
		h.reg.unbind(c)
	}
	h.reg.remove(c.id)

	if ownedIdentity && !evicted {
		h.markOffline(profile)
	}

	connectionsGauge.Set(float64(h.reg.connCount()))
	boundUsersGauge.Set(float64(h.reg.boundCount()))
	log.Info().Str("module", "app.hub").
		Uint64("conn", uint64(c.id)).
		Bool("evicted", evicted).
		Msg("connection torn down")
}

// encode marshals an outbound event exactly once per fan-out.
func (h *Hub) encode(v any) (core.Frame, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Str("module", "app.hub").Err(err).Msg("encode outbound event")
		return nil, false
	}
	return core.Frame(data), true
}

func (h *Hub) sendFrame(c *conn, f core.Frame) {
	if err := c.signal.TrySend(f); err != nil {
		droppedFramesTotal.Inc()
		log.Warn().Str("module", "app.hub").
			Uint64("conn", uint64(c.id)).
			Err(err).
			Msg("frame dropped")
	}
}

// sendTo delivers one event to one conn.
func (h *Hub) sendTo(c *conn, v any) {
	f, ok := h.encode(v)
	if !ok {
		return
	}
	h.sendFrame(c, f)
}

// sendError is the uniform recoverable-failure reply.
func (h *Hub) sendError(c *conn, msg string) {
	h.sendTo(c, struct {
		Type    EventType `json:"type"`
		Message string    `json:"message"`
	}{OutError, msg})
}

// fanGroup delivers v to every conn in the group except exclude (0 excludes
// nobody). Delivery is non-blocking; a saturated receiver just loses the
// frame and stays connected.
func (h *Hub) fanGroup(group map[core.ConnID]struct{}, v any, exclude core.ConnID) {
	if len(group) == 0 {
		return
	}
	f, ok := h.encode(v)
	if !ok {
		return
	}
	for id := range group {
		if id == exclude {
			continue
		}
		if c, ok := h.reg.get(id); ok {
			h.sendFrame(c, f)
		}
	}
}

// fanBound delivers v to every authenticated conn except exclude.
func (h *Hub) fanBound(v any, exclude core.ConnID) {
	f, ok := h.encode(v)
	if !ok {
		return
	}
	for _, c := range h.reg.conns {
		if c.id == exclude || !h.reg.owns(c) {
			continue
		}
		h.sendFrame(c, f)
	}
}

// voiceMembers snapshots a room's occupants for event payloads, skipping
// exclude (0 skips nobody).
func (h *Hub) voiceMembers(room *voiceRoom, exclude core.ConnID) []domain.VoiceMember {
	ids := lo.Keys(room.occupants)
	return lo.FilterMap(ids, func(id core.ConnID, _ int) (domain.VoiceMember, bool) {
		if id == exclude {
			return domain.VoiceMember{}, false
		}
		c, ok := h.reg.get(id)
		if !ok {
			return domain.VoiceMember{}, false
		}
		b, ok := h.reg.binding(c.user)
		if !ok {
			return domain.VoiceMember{}, false
		}
		return domain.NewVoiceMember(b.user, b.screenSharing), true
	})
}
