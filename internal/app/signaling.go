package app

import (
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/domain"
)

// relayToUser forwards one event to the target's current conn. Offline
// targets are a normal condition, reported to the caller, never an error
// frame on the wire.
func (h *Hub) relayToUser(target domain.UserID, v any) bool {
	tc, found := h.reg.lookupUser(target)
	if !found {
		return false
	}
	h.sendTo(tc, v)
	return true
}

// handleWebRTC routes offer, answer and ICE frames between peers. The
// payload stays opaque: the hub neither parses SDP nor caches candidates,
// it only rewrites the address from target to sender.
func (h *Hub) handleWebRTC(c *conn, b *binding, t EventType, data []byte) {
	p, ok := decode[relayPayload](h.validate, data)
	if !ok {
		return
	}
	delivered := h.relayToUser(p.TargetUserID, struct {
		Type       EventType       `json:"type"`
		FromUserID domain.UserID   `json:"from_user_id"`
		Payload    json.RawMessage `json:"payload"`
	}{t, b.user.ID, p.Payload})
	if !delivered {
		log.Debug().Str("module", "app.hub").
			Str("type", string(t)).
			Int64("from", int64(b.user.ID)).
			Int64("to", int64(p.TargetUserID)).
			Msg("signaling target offline")
	}
}

// handleFriendRequest pushes the realtime nudge to the target. The request
// record itself is written by the REST API; the hub only tells a live
// target to refresh.
func (h *Hub) handleFriendRequest(c *conn, b *binding, data []byte) {
	p, ok := decode[targetPayload](h.validate, data)
	if !ok {
		return
	}
	h.relayToUser(p.TargetUserID, struct {
		Type     EventType    `json:"type"`
		FromUser *domain.User `json:"from_user"`
	}{OutFriendRequestReceived, b.user})
}

// handleFriendResponse relays acceptance back to the requester. A decline
// relays nothing; the requester's client times the request out on its own.
func (h *Hub) handleFriendResponse(c *conn, b *binding, data []byte) {
	p, ok := decode[friendResponsePayload](h.validate, data)
	if !ok {
		return
	}
	if !p.Accepted {
		return
	}
	h.relayToUser(p.TargetUserID, struct {
		Type     EventType    `json:"type"`
		FromUser *domain.User `json:"from_user"`
	}{OutFriendRequestAccepted, b.user})
}
