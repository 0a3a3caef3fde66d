package app

import (
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/core"
)

// Dispatch applies one inbound frame under the hub lock. Unparseable frames
// and unknown types are logged and dropped; frames from connections that
// have not authenticated are ignored except for auth itself.
func (h *Hub) Dispatch(id core.ConnID, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		log.Warn().Str("module", "app.hub").Uint64("conn", uint64(id)).Msg("bad frame")
		return
	}
	eventsTotal.WithLabelValues(string(env.Type)).Inc()

	c, ok := h.reg.get(id)
	if !ok {
		// The transport raced its own close; nothing to apply the frame to.
		return
	}

	if env.Type == EvAuth {
		h.handleAuth(c, data)
		return
	}

	c, b, ok := h.reg.bound(id)
	if !ok {
		log.Debug().Str("module", "app.hub").
			Uint64("conn", uint64(id)).
			Str("type", string(env.Type)).
			Msg("event before auth ignored")
		return
	}

	switch env.Type {
	case EvChatMessage:
		h.handleChatMessage(c, b, data)
	case EvDMMessage:
		h.handleDMMessage(c, b, data)
	case EvJoinChannel:
		h.handleJoinChannel(c, data)
	case EvLeaveChannel:
		h.handleLeaveChannel(c, data)
	case EvJoinDM:
		h.handleJoinDM(c, b, data)
	case EvLeaveDM:
		h.handleLeaveDM(c, data)
	case EvTyping:
		h.handleTyping(c, b, data, false)
	case EvDMTyping:
		h.handleTyping(c, b, data, true)
	case EvJoinVoice:
		h.handleJoinVoice(c, b, data)
	case EvJoinDMVoice:
		h.handleJoinDMVoice(c, b, data)
	case EvLeaveVoice:
		h.handleLeaveVoice(c)
	case EvForceDisconnect:
		h.handleForceDisconnect(c, b, data)
	case EvPlaySound:
		h.handlePlaySound(c, b, data)
	case EvSpeaking:
		h.handleSpeaking(c, b, data)
	case EvCameraState:
		h.handleCameraState(c, b, data)
	case EvScreenShareState:
		h.handleScreenShare(c, b, data)
	case EvWebRTCOffer, EvWebRTCAnswer, EvWebRTCICE:
		h.handleWebRTC(c, b, env.Type, data)
	case EvFriendRequest:
		h.handleFriendRequest(c, b, data)
	case EvFriendResponse:
		h.handleFriendResponse(c, b, data)
	case EvDMCallInvite:
		h.handleCallInvite(c, b, data)
	case EvDMCallResponse:
		h.handleCallResponse(c, b, data)
	default:
		log.Warn().Str("module", "app.hub").
			Uint64("conn", uint64(id)).
			Str("type", string(env.Type)).
			Msg("unknown event type")
	}
}

// decode unmarshals and validates an inbound payload. Failures are a
// client protocol bug; the frame is dropped without a reply.
func decode[T any](v *validator.Validate, data []byte) (*T, bool) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Str("module", "app.hub").Err(err).Msg("payload unmarshal")
		return nil, false
	}
	if err := v.Struct(&p); err != nil {
		log.Warn().Str("module", "app.hub").Err(err).Msg("payload validation")
		return nil, false
	}
	return &p, true
}
