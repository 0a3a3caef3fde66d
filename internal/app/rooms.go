package app

import (
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/core"
	"github.com/nasty-codes-software/resonance/internal/domain"
)

// voiceRoom is the live occupancy of one voice channel. The channel info is
// cached at first join so later broadcasts skip the store.
type voiceRoom struct {
	channel   *domain.Channel
	occupants map[core.ConnID]struct{}
}

// rooms tracks which connections view which text channels, subscribe to
// which DM threads, and occupy which voice rooms. Groups are created on
// first join and deleted when the last member leaves; an empty group never
// survives as a key. Like the registry it relies on the hub for locking.
type rooms struct {
	text       map[domain.ChannelID]map[core.ConnID]struct{}
	textByConn map[core.ConnID]domain.ChannelID

	dm       map[domain.ChannelID]map[core.ConnID]struct{}
	dmByConn map[core.ConnID]map[domain.ChannelID]struct{}

	voice       map[domain.ChannelID]*voiceRoom
	voiceByConn map[core.ConnID]domain.ChannelID
}

func newRooms() *rooms {
	return &rooms{
		text:        make(map[domain.ChannelID]map[core.ConnID]struct{}),
		textByConn:  make(map[core.ConnID]domain.ChannelID),
		dm:          make(map[domain.ChannelID]map[core.ConnID]struct{}),
		dmByConn:    make(map[core.ConnID]map[domain.ChannelID]struct{}),
		voice:       make(map[domain.ChannelID]*voiceRoom),
		voiceByConn: make(map[core.ConnID]domain.ChannelID),
	}
}

// joinText sets the conn's active text view. A client reads one text
// channel at a time, so joining a new one leaves the previous group.
func (rs *rooms) joinText(ch domain.ChannelID, id core.ConnID) {
	if prev, ok := rs.textByConn[id]; ok {
		if prev == ch {
			return
		}
		rs.dropFromGroup(rs.text, prev, id)
	}
	if rs.text[ch] == nil {
		rs.text[ch] = make(map[core.ConnID]struct{})
	}
	rs.text[ch][id] = struct{}{}
	rs.textByConn[id] = ch
}

func (rs *rooms) leaveText(ch domain.ChannelID, id core.ConnID) {
	if rs.textByConn[id] != ch {
		return
	}
	rs.dropFromGroup(rs.text, ch, id)
	delete(rs.textByConn, id)
}

// joinDM subscribes the conn to a DM thread. Unlike text views a conn may
// hold any number of DM subscriptions at once.
func (rs *rooms) joinDM(ch domain.ChannelID, id core.ConnID) {
	if rs.dm[ch] == nil {
		rs.dm[ch] = make(map[core.ConnID]struct{})
	}
	rs.dm[ch][id] = struct{}{}
	if rs.dmByConn[id] == nil {
		rs.dmByConn[id] = make(map[domain.ChannelID]struct{})
	}
	rs.dmByConn[id][ch] = struct{}{}
}

func (rs *rooms) leaveDM(ch domain.ChannelID, id core.ConnID) {
	rs.dropFromGroup(rs.dm, ch, id)
	if set, ok := rs.dmByConn[id]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(rs.dmByConn, id)
		}
	}
}

// textGroup returns the live member set, nil when the group does not exist.
func (rs *rooms) textGroup(ch domain.ChannelID) map[core.ConnID]struct{} { return rs.text[ch] }
func (rs *rooms) dmGroup(ch domain.ChannelID) map[core.ConnID]struct{}  { return rs.dm[ch] }

// liveRoom returns the room for a channel when anyone occupies it.
func (rs *rooms) liveRoom(ch domain.ChannelID) (*voiceRoom, bool) {
	room, ok := rs.voice[ch]
	return room, ok
}

// voiceRoomOf resolves the conn's current voice room, if any. A conn
// occupies at most one voice room.
func (rs *rooms) voiceRoomOf(id core.ConnID) (domain.ChannelID, *voiceRoom, bool) {
	ch, ok := rs.voiceByConn[id]
	if !ok {
		return 0, nil, false
	}
	return ch, rs.voice[ch], true
}

// addVoice places the conn into the channel's room, creating it on first
// join. The caller must have removed the conn from any previous room.
func (rs *rooms) addVoice(channel *domain.Channel, id core.ConnID) *voiceRoom {
	room, ok := rs.voice[channel.ID]
	if !ok {
		room = &voiceRoom{channel: channel, occupants: make(map[core.ConnID]struct{})}
		rs.voice[channel.ID] = room
		log.Debug().Str("module", "app.rooms").Int64("channel", int64(channel.ID)).Msg("voice room created")
	}
	room.occupants[id] = struct{}{}
	rs.voiceByConn[id] = channel.ID
	return room
}

// removeVoice takes the conn out of its room. It reports the room the conn
// left and whether that departure emptied and deleted it.
func (rs *rooms) removeVoice(id core.ConnID) (room *voiceRoom, emptied bool, ok bool) {
	ch, found := rs.voiceByConn[id]
	if !found {
		return nil, false, false
	}
	delete(rs.voiceByConn, id)
	room = rs.voice[ch]
	delete(room.occupants, id)
	if len(room.occupants) == 0 {
		delete(rs.voice, ch)
		log.Debug().Str("module", "app.rooms").Int64("channel", int64(ch)).Msg("voice room deleted")
		return room, true, true
	}
	return room, false, true
}

// dropConn clears the conn's text view and DM subscriptions. Voice rooms
// are left to the hub, which owns the departure side effects.
func (rs *rooms) dropConn(id core.ConnID) {
	if ch, ok := rs.textByConn[id]; ok {
		rs.dropFromGroup(rs.text, ch, id)
		delete(rs.textByConn, id)
	}
	for ch := range rs.dmByConn[id] {
		rs.dropFromGroup(rs.dm, ch, id)
	}
	delete(rs.dmByConn, id)
}

func (rs *rooms) dropFromGroup(groups map[domain.ChannelID]map[core.ConnID]struct{}, ch domain.ChannelID, id core.ConnID) {
	set, ok := groups[ch]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(groups, ch)
	}
}

func (rs *rooms) voiceRoomCount() int { return len(rs.voice) }
