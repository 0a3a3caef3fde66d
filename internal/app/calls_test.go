package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nasty-codes-software/resonance/internal/domain"
)

// callPair provisions two friends with their DM channel pair and logs both in.
func callPair(t *testing.T, env *testEnv) (alice, bob *domain.User, call *domain.Channel) {
	t.Helper()
	req := require.New(t)
	alice = env.user("alice")
	bob = env.user("bob")
	req.NoError(env.st.AddFriend(alice.ID, bob.ID))
	_, call, err := env.st.CreateDM(alice.ID, bob.ID)
	req.NoError(err)
	return alice, bob, call
}

func TestCallInvite_Rings_Online_Friend(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice, bob, call := callPair(t, env)

	aliceID, aliceSC := env.login(alice)
	bobID, bobSC := env.login(bob)
	aliceSC.reset()
	bobSC.reset()

	// When alice rings bob
	env.send(aliceID, map[string]any{
		"type":             EvDMCallInvite,
		"target_user_id":   bob.ID,
		"voice_channel_id": call.ID,
		"has_video":        true,
	})

	// Then bob's client rings with the caller profile and the room to join
	incoming := bobSC.ofType(t, OutDMCallIncoming)
	req.Len(incoming, 1)
	req.Equal(int64(call.ID), asID(incoming[0]["voice_channel_id"]))
	req.Equal(int64(alice.ID), asID(incoming[0]["from_user"].(map[string]any)["id"]))
	req.Equal(true, incoming[0]["has_video"])
	req.Empty(aliceSC.ofType(t, OutDMCallUnavailable))

	// When bob accepts and both sides enter the room
	env.send(bobID, map[string]any{
		"type":             EvDMCallResponse,
		"target_user_id":   alice.ID,
		"voice_channel_id": call.ID,
		"accepted":         true,
	})
	accepted := aliceSC.ofType(t, OutDMCallAccepted)
	req.Len(accepted, 1)
	req.Equal(int64(bob.ID), asID(accepted[0]["from_user_id"]))

	env.send(aliceID, map[string]any{"type": EvJoinDMVoice, "channel_id": call.ID})
	env.send(bobID, map[string]any{"type": EvJoinDMVoice, "channel_id": call.ID})

	// Then the pair sees each other and media can flow
	bobJoined := bobSC.ofType(t, OutVoiceJoined)
	req.Len(bobJoined, 1)
	members := bobJoined[0]["members"].([]any)
	req.Len(members, 1)
	req.Equal(int64(alice.ID), asID(members[0].(map[string]any)["id"]))
	req.Len(aliceSC.ofType(t, OutVoiceUserJoined), 1)
}

func TestCallInvite_Rejected_For_Stranger(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	mallory := env.user("mallory")
	_, call, err := env.st.CreateDM(alice.ID, mallory.ID)
	req.NoError(err)

	// The channel pair exists but they never became friends
	malloryID, mallorySC := env.login(mallory)
	_, aliceSC := env.login(alice)
	mallorySC.reset()
	aliceSC.reset()

	env.send(malloryID, map[string]any{
		"type":             EvDMCallInvite,
		"target_user_id":   alice.ID,
		"voice_channel_id": call.ID,
	})

	evts := mallorySC.ofType(t, OutError)
	req.Len(evts, 1)
	req.Equal("you can only call friends", evts[0]["message"])
	req.Empty(aliceSC.frames)
}

func TestCallInvite_Offline_Friend_Unavailable(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice, bob, call := callPair(t, env)

	aliceID, aliceSC := env.login(alice)
	aliceSC.reset()

	// Bob never connected
	env.send(aliceID, map[string]any{
		"type":             EvDMCallInvite,
		"target_user_id":   bob.ID,
		"voice_channel_id": call.ID,
	})

	evts := aliceSC.ofType(t, OutDMCallUnavailable)
	req.Len(evts, 1)
	req.Equal(int64(call.ID), asID(evts[0]["voice_channel_id"]))
}

func TestCallResponse_Decline_Relayed_To_Caller(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice, bob, call := callPair(t, env)

	_, aliceSC := env.login(alice)
	bobID, _ := env.login(bob)
	aliceSC.reset()

	env.send(bobID, map[string]any{
		"type":             EvDMCallResponse,
		"target_user_id":   alice.ID,
		"voice_channel_id": call.ID,
		"accepted":         false,
	})

	declined := aliceSC.ofType(t, OutDMCallDeclined)
	req.Len(declined, 1)
	req.Equal(int64(bob.ID), asID(declined[0]["from_user_id"]))
	req.Empty(aliceSC.ofType(t, OutDMCallAccepted))
}

func TestCall_Ends_Once_When_Last_Participant_Leaves(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice, bob, call := callPair(t, env)

	aliceID, aliceSC := env.login(alice)
	bobID, bobSC := env.login(bob)
	env.send(aliceID, map[string]any{"type": EvJoinDMVoice, "channel_id": call.ID})
	env.send(bobID, map[string]any{"type": EvJoinDMVoice, "channel_id": call.ID})
	aliceSC.reset()
	bobSC.reset()

	// When alice hangs up first, the call is still alive
	env.send(aliceID, map[string]any{"type": EvLeaveVoice})
	req.Len(bobSC.ofType(t, OutVoiceUserLeft), 1)
	req.Empty(aliceSC.ofType(t, OutDMCallEnded))
	req.Empty(bobSC.ofType(t, OutDMCallEnded))

	// When bob leaves too, the room empties and the call ends for both
	env.send(bobID, map[string]any{"type": EvLeaveVoice})
	aliceEnded := aliceSC.ofType(t, OutDMCallEnded)
	bobEnded := bobSC.ofType(t, OutDMCallEnded)
	req.Len(aliceEnded, 1)
	req.Len(bobEnded, 1)
	req.Equal(int64(call.ID), asID(aliceEnded[0]["channel_id"]))

	// And a later stray leave does not replay the signal
	env.send(bobID, map[string]any{"type": EvLeaveVoice})
	req.Len(aliceSC.ofType(t, OutDMCallEnded), 1)
}

func TestCall_Ends_When_Last_Participant_Disconnects(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice, bob, call := callPair(t, env)

	aliceID, aliceSC := env.login(alice)
	bobID, bobSC := env.login(bob)
	env.send(aliceID, map[string]any{"type": EvJoinDMVoice, "channel_id": call.ID})
	env.send(bobID, map[string]any{"type": EvJoinDMVoice, "channel_id": call.ID})
	aliceSC.reset()
	bobSC.reset()

	// When alice's transport dies mid-call
	env.hub.OnClose(aliceID)

	// Then bob sees the departure but the call room stays alive
	req.Len(bobSC.ofType(t, OutVoiceUserLeft), 1)
	req.Empty(bobSC.ofType(t, OutDMCallEnded))

	// When bob hangs up the call is over, delivered to whoever is reachable
	env.send(bobID, map[string]any{"type": EvLeaveVoice})
	req.Len(bobSC.ofType(t, OutDMCallEnded), 1)
	req.Empty(aliceSC.ofType(t, OutDMCallEnded))
}

func TestCall_Survives_Temporary_Leave(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice, bob, call := callPair(t, env)

	aliceID, aliceSC := env.login(alice)
	bobID, bobSC := env.login(bob)
	env.send(aliceID, map[string]any{"type": EvJoinDMVoice, "channel_id": call.ID})
	env.send(bobID, map[string]any{"type": EvJoinDMVoice, "channel_id": call.ID})
	aliceSC.reset()
	bobSC.reset()

	// When alice drops out and rejoins while bob holds the room
	env.send(aliceID, map[string]any{"type": EvLeaveVoice})
	env.send(aliceID, map[string]any{"type": EvJoinDMVoice, "channel_id": call.ID})

	// Then nobody heard the call end and both are back together
	req.Empty(aliceSC.ofType(t, OutDMCallEnded))
	req.Empty(bobSC.ofType(t, OutDMCallEnded))
	joined := aliceSC.ofType(t, OutVoiceJoined)
	req.Len(joined, 1)
	req.Len(joined[0]["members"].([]any), 1)
	room, live := env.hub.rooms.liveRoom(call.ID)
	req.True(live)
	req.Len(room.occupants, 2)
}
