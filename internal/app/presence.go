package app

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/core"
	"github.com/nasty-codes-software/resonance/internal/domain"
)

// handleAuth verifies the presented token, binds the identity to this conn
// and announces presence. A user holds at most one binding: when the same
// identity is already bound elsewhere the older conn is torn down and its
// transport closed before the new binding is installed, so two tabs never
// share an identity and the reconnect wins over the zombie.
func (h *Hub) handleAuth(c *conn, data []byte) {
	p, ok := decode[authPayload](h.validate, data)
	if !ok {
		return
	}

	uid, err := h.deps.Tokens.Verify(p.Token)
	if err != nil {
		log.Warn().Str("module", "app.hub").Uint64("conn", uint64(c.id)).Err(err).Msg("token rejected")
		h.sendTo(c, struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
		}{OutAuthError, "invalid token"})
		return
	}

	user, err := h.deps.Identity.FindUser(uid)
	if err != nil {
		log.Warn().Str("module", "app.hub").Int64("user", int64(uid)).Err(err).Msg("unknown user on auth")
		h.sendTo(c, struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
		}{OutAuthError, "unknown user"})
		return
	}

	// A conn switching identities releases the old one first.
	if c.user != 0 && c.user != uid && h.reg.owns(c) {
		old, _ := h.reg.binding(c.user)
		h.reg.unbind(c)
		h.markOffline(old.user)
	}

	wasOnline := false
	if prev, found := h.reg.lookupUser(uid); found {
		if prev.id == c.id {
			// Repeated auth on the same conn refreshes nothing; reply again.
			h.sendAuthSuccess(c, user)
			return
		}
		wasOnline = true
		h.teardown(prev, true)
		prev.signal.Close()
		log.Info().Str("module", "app.hub").
			Int64("user", int64(uid)).
			Uint64("old_conn", uint64(prev.id)).
			Uint64("new_conn", uint64(c.id)).
			Msg("stale connection evicted")
	}

	h.reg.install(c, user)
	boundUsersGauge.Set(float64(h.reg.boundCount()))
	h.sendAuthSuccess(c, user)

	// The user was never offline during a takeover, so going online again
	// would only spam the roster.
	if !wasOnline {
		h.markOnline(user, c.id)
	}
}

func (h *Hub) sendAuthSuccess(c *conn, user *domain.User) {
	h.sendTo(c, struct {
		Type       EventType          `json:"type"`
		User       *domain.User       `json:"user"`
		ICEServers []webrtc.ICEServer `json:"ice_servers"`
	}{OutAuthSuccess, user, h.deps.ICEServers})
}

// markOnline persists the flag, tells friends directly and announces to
// everyone else. The announcement skips the user's own conn.
func (h *Hub) markOnline(user *domain.User, self core.ConnID) {
	if err := h.deps.Identity.SetOnline(user.ID); err != nil {
		log.Error().Str("module", "app.hub").Int64("user", int64(user.ID)).Err(err).Msg("persist online flag")
	}
	h.notifyFriends(user.ID, domain.StatusOnline)
	h.fanBound(struct {
		Type EventType    `json:"type"`
		User *domain.User `json:"user"`
	}{OutUserOnline, user}, self)
}

// markOffline is the inverse; the closing conn is already out of the
// registry so no exclusion is needed.
func (h *Hub) markOffline(user *domain.User) {
	if err := h.deps.Identity.SetOffline(user.ID); err != nil {
		log.Error().Str("module", "app.hub").Int64("user", int64(user.ID)).Err(err).Msg("persist offline flag")
	}
	h.notifyFriends(user.ID, domain.StatusOffline)
	h.fanBound(struct {
		Type   EventType     `json:"type"`
		UserID domain.UserID `json:"user_id"`
	}{OutUserOffline, user.ID}, 0)
}

// notifyFriends pushes a targeted status update to each online friend.
func (h *Hub) notifyFriends(uid domain.UserID, status domain.Status) {
	friends, err := h.deps.Social.FriendsOf(uid)
	if err != nil {
		log.Error().Str("module", "app.hub").Int64("user", int64(uid)).Err(err).Msg("load friends")
		return
	}
	if len(friends) == 0 {
		return
	}
	f, ok := h.encode(struct {
		Type   EventType     `json:"type"`
		UserID domain.UserID `json:"user_id"`
		Status domain.Status `json:"status"`
	}{OutFriendStatusUpdate, uid, status})
	if !ok {
		return
	}
	for _, friend := range friends {
		if fc, online := h.reg.lookupUser(friend); online {
			h.sendFrame(fc, f)
		}
	}
}
