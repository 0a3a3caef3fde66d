package app

import (
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/domain"
)

// handleJoinVoice places the conn into a server voice channel. Joining
// while in another room leaves that room first, with every departure side
// effect, so a conn never occupies two rooms.
func (h *Hub) handleJoinVoice(c *conn, b *binding, data []byte) {
	p, ok := decode[channelPayload](h.validate, data)
	if !ok {
		return
	}
	info, err := h.deps.Voice.ChannelInfo(p.ChannelID)
	if err != nil {
		log.Warn().Str("module", "app.hub").Int64("channel", int64(p.ChannelID)).Err(err).Msg("voice channel lookup")
		h.sendError(c, "unknown voice channel")
		return
	}
	if info.Kind != domain.ChannelVoice {
		h.sendError(c, "not a voice channel")
		return
	}
	h.joinVoiceRoom(c, b, info)
}

// handleJoinDMVoice is the private variant. The capacity check runs before
// the participant check so an intruding third client learns the room is
// full rather than probing who belongs to it. A rejected join changes no
// state at all, including the joiner's current room.
func (h *Hub) handleJoinDMVoice(c *conn, b *binding, data []byte) {
	p, ok := decode[channelPayload](h.validate, data)
	if !ok {
		return
	}
	info, err := h.deps.Voice.ChannelInfo(p.ChannelID)
	if err != nil {
		log.Warn().Str("module", "app.hub").Int64("channel", int64(p.ChannelID)).Err(err).Msg("dm voice channel lookup")
		h.sendError(c, "unknown voice channel")
		return
	}
	if info.Kind != domain.ChannelDMVoice {
		h.sendError(c, "not a call channel")
		return
	}
	if ch, room, joined := h.rooms.voiceRoomOf(c.id); joined && ch == info.ID {
		h.sendVoiceJoined(c, room)
		return
	}
	if room, live := h.rooms.liveRoom(info.ID); live && info.MaxUsers > 0 && len(room.occupants) >= info.MaxUsers {
		h.sendError(c, "call is full")
		return
	}
	if !h.requireParticipant(c, info.ID, b.user.ID) {
		return
	}
	h.joinVoiceRoom(c, b, info)
}

// joinVoiceRoom is the shared tail of both join flows: kind and capacity
// are already settled. The joiner gets the pre-join roster, sitting
// occupants get the newcomer, and public rooms update the whole server.
func (h *Hub) joinVoiceRoom(c *conn, b *binding, info *domain.Channel) {
	if ch, room, joined := h.rooms.voiceRoomOf(c.id); joined {
		if ch == info.ID {
			h.sendVoiceJoined(c, room)
			return
		}
		h.leaveVoiceRoom(c)
	}

	room := h.rooms.addVoice(info, c.id)
	if err := h.deps.Voice.AddMember(info.ID, b.user.ID); err != nil {
		log.Error().Str("module", "app.hub").Int64("channel", int64(info.ID)).Err(err).Msg("persist voice member")
	}
	voiceRoomsGauge.Set(float64(h.rooms.voiceRoomCount()))

	h.sendVoiceJoined(c, room)
	h.fanGroup(room.occupants, struct {
		Type      EventType          `json:"type"`
		ChannelID domain.ChannelID   `json:"channel_id"`
		User      domain.VoiceMember `json:"user"`
	}{OutVoiceUserJoined, info.ID, domain.NewVoiceMember(b.user, b.screenSharing)}, c.id)

	if info.Kind == domain.ChannelVoice {
		h.broadcastVoiceState(room)
	}

	log.Info().Str("module", "app.hub").
		Int64("user", int64(b.user.ID)).
		Int64("channel", int64(info.ID)).
		Int("occupants", len(room.occupants)).
		Msg("joined voice room")
}

func (h *Hub) sendVoiceJoined(c *conn, room *voiceRoom) {
	h.sendTo(c, struct {
		Type        EventType            `json:"type"`
		ChannelID   domain.ChannelID     `json:"channel_id"`
		ChannelName string               `json:"channel_name"`
		ChannelType domain.ChannelKind   `json:"channel_type"`
		Members     []domain.VoiceMember `json:"members"`
	}{OutVoiceJoined, room.channel.ID, room.channel.Name, room.channel.Kind, h.voiceMembers(room, c.id)})
}

func (h *Hub) handleLeaveVoice(c *conn) {
	h.leaveVoiceRoom(c)
}

// leaveVoiceRoom removes c from its current room, if any, and runs every
// departure side effect: the targeted leave notice, the public state
// broadcast, the persisted membership row, and the call-over signal when
// this departure emptied a private room. The cached screen-share flag is
// deliberately left as is; only an explicit screen_share_state changes it.
func (h *Hub) leaveVoiceRoom(c *conn) bool {
	room, emptied, ok := h.rooms.removeVoice(c.id)
	if !ok {
		return false
	}
	if c.user != 0 {
		if err := h.deps.Voice.RemoveMember(c.user); err != nil {
			log.Error().Str("module", "app.hub").Int64("user", int64(c.user)).Err(err).Msg("remove persisted voice member")
		}
	}
	voiceRoomsGauge.Set(float64(h.rooms.voiceRoomCount()))

	h.fanGroup(room.occupants, struct {
		Type      EventType        `json:"type"`
		ChannelID domain.ChannelID `json:"channel_id"`
		UserID    domain.UserID    `json:"user_id"`
	}{OutVoiceUserLeft, room.channel.ID, c.user}, 0)

	if room.channel.Kind == domain.ChannelVoice {
		h.broadcastVoiceState(room)
	}
	if emptied && room.channel.Kind.Private() {
		h.endCall(room.channel.ID)
	}

	log.Info().Str("module", "app.hub").
		Int64("user", int64(c.user)).
		Int64("channel", int64(room.channel.ID)).
		Bool("emptied", emptied).
		Msg("left voice room")
	return true
}

// broadcastVoiceState pushes the full occupant list of a public room to
// every authenticated conn so channel sidebars stay current. Private rooms
// never reach this; their occupancy is only visible to participants.
func (h *Hub) broadcastVoiceState(room *voiceRoom) {
	h.fanBound(struct {
		Type      EventType            `json:"type"`
		ChannelID domain.ChannelID     `json:"channel_id"`
		Members   []domain.VoiceMember `json:"members"`
	}{OutVoiceStateUpdate, room.channel.ID, h.voiceMembers(room, 0)}, 0)
}

// handleForceDisconnect lets a moderator eject a user from voice. The
// target hears a direct notice first, then the room sees a normal leave.
func (h *Hub) handleForceDisconnect(c *conn, b *binding, data []byte) {
	p, ok := decode[targetPayload](h.validate, data)
	if !ok {
		return
	}
	allowed, err := h.deps.Authz.HasCapability(b.user.ID, domain.CapModerateVoice)
	if err != nil {
		log.Error().Str("module", "app.hub").Int64("user", int64(b.user.ID)).Err(err).Msg("capability lookup")
		h.sendError(c, "insufficient permissions")
		return
	}
	if !allowed {
		h.sendError(c, "insufficient permissions")
		return
	}
	target, found := h.reg.lookupUser(p.TargetUserID)
	if !found {
		return
	}
	ch, _, joined := h.rooms.voiceRoomOf(target.id)
	if !joined {
		return
	}
	h.sendTo(target, struct {
		Type      EventType        `json:"type"`
		ChannelID domain.ChannelID `json:"channel_id"`
		By        *domain.User     `json:"by"`
	}{OutVoiceForceDisconnected, ch, b.user})
	h.leaveVoiceRoom(target)
	log.Info().Str("module", "app.hub").
		Int64("moderator", int64(b.user.ID)).
		Int64("target", int64(p.TargetUserID)).
		Msg("voice force disconnect")
}

// handlePlaySound relays a soundboard trigger to the rest of the room.
func (h *Hub) handlePlaySound(c *conn, b *binding, data []byte) {
	p, ok := decode[soundPayload](h.validate, data)
	if !ok {
		return
	}
	ch, room, joined := h.rooms.voiceRoomOf(c.id)
	if !joined {
		return
	}
	h.fanGroup(room.occupants, struct {
		Type      EventType        `json:"type"`
		ChannelID domain.ChannelID `json:"channel_id"`
		UserID    domain.UserID    `json:"user_id"`
		Sound     string           `json:"sound"`
	}{OutPlaySound, ch, b.user.ID, p.Sound}, c.id)
}

func (h *Hub) handleSpeaking(c *conn, b *binding, data []byte) {
	p, ok := decode[speakingPayload](h.validate, data)
	if !ok {
		return
	}
	ch, room, joined := h.rooms.voiceRoomOf(c.id)
	if !joined {
		return
	}
	h.fanGroup(room.occupants, struct {
		Type      EventType        `json:"type"`
		ChannelID domain.ChannelID `json:"channel_id"`
		UserID    domain.UserID    `json:"user_id"`
		Speaking  bool             `json:"speaking"`
	}{OutUserSpeaking, ch, b.user.ID, p.Speaking}, c.id)
}

func (h *Hub) handleCameraState(c *conn, b *binding, data []byte) {
	p, ok := decode[cameraPayload](h.validate, data)
	if !ok {
		return
	}
	ch, room, joined := h.rooms.voiceRoomOf(c.id)
	if !joined {
		return
	}
	h.fanGroup(room.occupants, struct {
		Type      EventType        `json:"type"`
		ChannelID domain.ChannelID `json:"channel_id"`
		UserID    domain.UserID    `json:"user_id"`
		Enabled   bool             `json:"enabled"`
	}{OutUserCameraState, ch, b.user.ID, p.Enabled}, c.id)
}

// handleScreenShare flips the cached per-identity flag and, when the conn
// is in a room, tells the rest of it. The flag outlives room membership so
// a rejoin keeps advertising an ongoing share.
func (h *Hub) handleScreenShare(c *conn, b *binding, data []byte) {
	p, ok := decode[screenSharePayload](h.validate, data)
	if !ok {
		return
	}
	b.screenSharing = p.Active
	ch, room, joined := h.rooms.voiceRoomOf(c.id)
	if !joined {
		return
	}
	h.fanGroup(room.occupants, struct {
		Type      EventType        `json:"type"`
		ChannelID domain.ChannelID `json:"channel_id"`
		UserID    domain.UserID    `json:"user_id"`
		Active    bool             `json:"active"`
	}{OutUserScreenShare, ch, b.user.ID, p.Active}, c.id)
}
