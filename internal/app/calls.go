package app

import (
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/domain"
)

// handleCallInvite rings the callee. Calls ride on the pair's persisted
// dm_voice channel, so the hub keeps no invite state: an unanswered ring
// simply expires on the caller's client.
func (h *Hub) handleCallInvite(c *conn, b *binding, data []byte) {
	p, ok := decode[callInvitePayload](h.validate, data)
	if !ok {
		return
	}
	friends, err := h.deps.Social.AreFriends(b.user.ID, p.TargetUserID)
	if err != nil {
		log.Error().Str("module", "app.hub").Int64("user", int64(b.user.ID)).Err(err).Msg("friendship lookup")
		h.sendError(c, "you can only call friends")
		return
	}
	if !friends {
		h.sendError(c, "you can only call friends")
		return
	}
	delivered := h.relayToUser(p.TargetUserID, struct {
		Type           EventType        `json:"type"`
		VoiceChannelID domain.ChannelID `json:"voice_channel_id"`
		FromUser       *domain.User     `json:"from_user"`
		HasVideo       bool             `json:"has_video"`
	}{OutDMCallIncoming, p.VoiceChannelID, b.user, p.HasVideo})
	if !delivered {
		h.sendTo(c, struct {
			Type           EventType        `json:"type"`
			VoiceChannelID domain.ChannelID `json:"voice_channel_id"`
		}{OutDMCallUnavailable, p.VoiceChannelID})
	}
}

// handleCallResponse carries accept or decline back to the caller. A
// vanished caller is dropped silently.
func (h *Hub) handleCallResponse(c *conn, b *binding, data []byte) {
	p, ok := decode[callResponsePayload](h.validate, data)
	if !ok {
		return
	}
	out := OutDMCallDeclined
	if p.Accepted {
		out = OutDMCallAccepted
	}
	h.relayToUser(p.TargetUserID, struct {
		Type           EventType        `json:"type"`
		VoiceChannelID domain.ChannelID `json:"voice_channel_id"`
		FromUserID     domain.UserID    `json:"from_user_id"`
	}{out, p.VoiceChannelID, b.user.ID})
}

// endCall tells both persisted participants the call is over. It fires on
// the occupancy transition to zero, which deletes the room, so a finished
// call signals exactly once no matter how the last occupant left.
func (h *Hub) endCall(ch domain.ChannelID) {
	participants, err := h.deps.Voice.ParticipantsOf(ch)
	if err != nil {
		log.Error().Str("module", "app.hub").Int64("channel", int64(ch)).Err(err).Msg("load call participants")
		return
	}
	f, ok := h.encode(struct {
		Type      EventType        `json:"type"`
		ChannelID domain.ChannelID `json:"channel_id"`
	}{OutDMCallEnded, ch})
	if !ok {
		return
	}
	for _, uid := range participants {
		if pc, online := h.reg.lookupUser(uid); online {
			h.sendFrame(pc, f)
		}
	}
	log.Info().Str("module", "app.hub").Int64("channel", int64(ch)).Msg("call ended")
}
