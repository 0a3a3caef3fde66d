package app

import (
	json "github.com/goccy/go-json"

	"github.com/nasty-codes-software/resonance/internal/domain"
)

// EventType is the closed set of frame types spoken over the socket.
// Adding a client event means adding a constant here and a case to Dispatch.
type EventType string

// Client-to-server events.
const (
	EvAuth             EventType = "auth"
	EvChatMessage      EventType = "chat_message"
	EvDMMessage        EventType = "dm_message"
	EvJoinChannel      EventType = "join_channel"
	EvLeaveChannel     EventType = "leave_channel"
	EvJoinDM           EventType = "join_dm"
	EvLeaveDM          EventType = "leave_dm"
	EvJoinVoice        EventType = "join_voice"
	EvJoinDMVoice      EventType = "join_dm_voice"
	EvLeaveVoice       EventType = "leave_voice"
	EvForceDisconnect  EventType = "force_disconnect_voice"
	EvWebRTCOffer      EventType = "webrtc_offer"
	EvWebRTCAnswer     EventType = "webrtc_answer"
	EvWebRTCICE        EventType = "webrtc_ice"
	EvPlaySound        EventType = "play_sound"
	EvTyping           EventType = "typing"
	EvDMTyping         EventType = "dm_typing"
	EvSpeaking         EventType = "speaking"
	EvCameraState      EventType = "camera_state"
	EvScreenShareState EventType = "screen_share_state"
	EvFriendRequest    EventType = "friend_request"
	EvFriendResponse   EventType = "friend_request_response"
	EvDMCallInvite     EventType = "dm_call_invite"
	EvDMCallResponse   EventType = "dm_call_response"
)

// Server-to-client events. The webrtc_* types are reused verbatim on the
// way out, rewritten from target_user_id to from_user_id.
const (
	OutAuthSuccess            EventType = "auth_success"
	OutAuthError              EventType = "auth_error"
	OutError                  EventType = "error"
	OutUserOnline             EventType = "user_online"
	OutUserOffline            EventType = "user_offline"
	OutFriendStatusUpdate     EventType = "friend_status_update"
	OutNewMessage             EventType = "new_message"
	OutDMNewMessage           EventType = "dm_new_message"
	OutUserTyping             EventType = "user_typing"
	OutDMUserTyping           EventType = "dm_user_typing"
	OutChannelJoined          EventType = "channel_joined"
	OutDMJoined               EventType = "dm_joined"
	OutVoiceJoined            EventType = "voice_joined"
	OutVoiceUserJoined        EventType = "voice_user_joined"
	OutVoiceUserLeft          EventType = "voice_user_left"
	OutVoiceStateUpdate       EventType = "voice_state_update"
	OutVoiceForceDisconnected EventType = "voice_force_disconnected"
	OutPlaySound              EventType = "play_sound"
	OutUserSpeaking           EventType = "user_speaking"
	OutUserCameraState        EventType = "user_camera_state"
	OutUserScreenShare        EventType = "user_screen_share_state"
	OutFriendRequestReceived  EventType = "friend_request_received"
	OutFriendRequestAccepted  EventType = "friend_request_accepted"
	OutDMCallIncoming         EventType = "dm_call_incoming"
	OutDMCallAccepted         EventType = "dm_call_accepted"
	OutDMCallDeclined         EventType = "dm_call_declined"
	OutDMCallUnavailable      EventType = "dm_call_unavailable"
	OutDMCallEnded            EventType = "dm_call_ended"
)

// envelope is the minimal sniff of any inbound frame.
type envelope struct {
	Type EventType `json:"type"`
}

type authPayload struct {
	Token string `json:"token" validate:"required"`
}

type channelPayload struct {
	ChannelID domain.ChannelID `json:"channel_id" validate:"required"`
}

type messagePayload struct {
	ChannelID domain.ChannelID `json:"channel_id" validate:"required"`
	Content   string           `json:"content" validate:"required,max=4000"`
}

// relayPayload covers webrtc_offer, webrtc_answer and webrtc_ice. Payload is
// forwarded byte-for-byte; the hub never parses SDP or candidates.
type relayPayload struct {
	TargetUserID domain.UserID   `json:"target_user_id" validate:"required"`
	Payload      json.RawMessage `json:"payload" validate:"required"`
}

type targetPayload struct {
	TargetUserID domain.UserID `json:"target_user_id" validate:"required"`
}

type friendResponsePayload struct {
	TargetUserID domain.UserID `json:"target_user_id" validate:"required"`
	Accepted     bool          `json:"accepted"`
}

type soundPayload struct {
	Sound string `json:"sound" validate:"required,max=64"`
}

type speakingPayload struct {
	Speaking bool `json:"speaking"`
}

type cameraPayload struct {
	Enabled bool `json:"enabled"`
}

type screenSharePayload struct {
	Active bool `json:"active"`
}

type callInvitePayload struct {
	TargetUserID   domain.UserID    `json:"target_user_id" validate:"required"`
	VoiceChannelID domain.ChannelID `json:"voice_channel_id" validate:"required"`
	HasVideo       bool             `json:"has_video"`
}

type callResponsePayload struct {
	TargetUserID   domain.UserID    `json:"target_user_id" validate:"required"`
	VoiceChannelID domain.ChannelID `json:"voice_channel_id" validate:"required"`
	Accepted       bool             `json:"accepted"`
}
