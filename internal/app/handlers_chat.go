package app

import (
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/domain"
)

// handleChatMessage persists the line and fans it out to every conn viewing
// the channel, author included, so all clients render from the same record.
func (h *Hub) handleChatMessage(c *conn, b *binding, data []byte) {
	p, ok := decode[messagePayload](h.validate, data)
	if !ok {
		return
	}
	msg, ok := h.persistMessage(c, p.ChannelID, b.user.ID, p.Content)
	if !ok {
		return
	}
	h.fanGroup(h.rooms.textGroup(p.ChannelID), struct {
		Type    EventType       `json:"type"`
		Message *domain.Message `json:"message"`
	}{OutNewMessage, msg}, 0)
}

// handleDMMessage is the private variant: only persisted participants may
// write, and fan-out goes to the DM subscription group.
func (h *Hub) handleDMMessage(c *conn, b *binding, data []byte) {
	p, ok := decode[messagePayload](h.validate, data)
	if !ok {
		return
	}
	if !h.requireParticipant(c, p.ChannelID, b.user.ID) {
		return
	}
	msg, ok := h.persistMessage(c, p.ChannelID, b.user.ID, p.Content)
	if !ok {
		return
	}
	h.fanGroup(h.rooms.dmGroup(p.ChannelID), struct {
		Type    EventType       `json:"type"`
		Message *domain.Message `json:"message"`
	}{OutDMNewMessage, msg}, 0)
}

func (h *Hub) persistMessage(c *conn, ch domain.ChannelID, author domain.UserID, content string) (*domain.Message, bool) {
	id, err := h.deps.Messages.CreateMessage(ch, author, content)
	if err != nil {
		log.Error().Str("module", "app.hub").Int64("channel", int64(ch)).Err(err).Msg("persist message")
		h.sendError(c, "failed to save message")
		return nil, false
	}
	msg, err := h.deps.Messages.MessageWithAuthor(id)
	if err != nil {
		log.Error().Str("module", "app.hub").Str("message", string(id)).Err(err).Msg("load message after save")
		h.sendError(c, "failed to save message")
		return nil, false
	}
	return msg, true
}

// handleJoinChannel switches the conn's active text view and confirms.
// Text membership is view tracking, not authorization, so there is no
// broadcast to either group.
func (h *Hub) handleJoinChannel(c *conn, data []byte) {
	p, ok := decode[channelPayload](h.validate, data)
	if !ok {
		return
	}
	h.rooms.joinText(p.ChannelID, c.id)
	h.sendTo(c, struct {
		Type      EventType        `json:"type"`
		ChannelID domain.ChannelID `json:"channel_id"`
	}{OutChannelJoined, p.ChannelID})
}

func (h *Hub) handleLeaveChannel(c *conn, data []byte) {
	p, ok := decode[channelPayload](h.validate, data)
	if !ok {
		return
	}
	h.rooms.leaveText(p.ChannelID, c.id)
}

// handleJoinDM subscribes the conn to a DM thread after the participant
// check. Rejections answer with an error and change nothing.
func (h *Hub) handleJoinDM(c *conn, b *binding, data []byte) {
	p, ok := decode[channelPayload](h.validate, data)
	if !ok {
		return
	}
	if !h.requireParticipant(c, p.ChannelID, b.user.ID) {
		return
	}
	h.rooms.joinDM(p.ChannelID, c.id)
	h.sendTo(c, struct {
		Type      EventType        `json:"type"`
		ChannelID domain.ChannelID `json:"channel_id"`
	}{OutDMJoined, p.ChannelID})
}

func (h *Hub) handleLeaveDM(c *conn, data []byte) {
	p, ok := decode[channelPayload](h.validate, data)
	if !ok {
		return
	}
	h.rooms.leaveDM(p.ChannelID, c.id)
}

// handleTyping relays the indicator to everyone else in the group.
func (h *Hub) handleTyping(c *conn, b *binding, data []byte, dm bool) {
	p, ok := decode[channelPayload](h.validate, data)
	if !ok {
		return
	}
	group, out := h.rooms.textGroup(p.ChannelID), OutUserTyping
	if dm {
		group, out = h.rooms.dmGroup(p.ChannelID), OutDMUserTyping
	}
	h.fanGroup(group, struct {
		Type      EventType        `json:"type"`
		ChannelID domain.ChannelID `json:"channel_id"`
		User      *domain.User     `json:"user"`
	}{out, p.ChannelID, b.user}, c.id)
}

// requireParticipant answers the uniform authorization error when uid is
// not a persisted participant of the private channel.
func (h *Hub) requireParticipant(c *conn, ch domain.ChannelID, uid domain.UserID) bool {
	ok, err := h.deps.Messages.IsParticipant(ch, uid)
	if err != nil {
		log.Error().Str("module", "app.hub").Int64("channel", int64(ch)).Err(err).Msg("participant lookup")
		h.sendError(c, "not a participant of this channel")
		return false
	}
	if !ok {
		h.sendError(c, "not a participant of this channel")
		return false
	}
	return true
}
