package app

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestWebRTC_Relay_Rewrites_Sender_And_Keeps_Payload(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	bob := env.user("bob")

	aliceID, aliceSC := env.login(alice)
	_, bobSC := env.login(bob)
	aliceSC.reset()
	bobSC.reset()

	offer := map[string]any{"sdp": "v=0 o=- 42 2 IN IP4 127.0.0.1", "type": "offer"}
	env.send(aliceID, map[string]any{
		"type":           EvWebRTCOffer,
		"target_user_id": bob.ID,
		"payload":        offer,
	})

	// The frame arrives readdressed from target to sender, same type name
	evts := bobSC.ofType(t, EvWebRTCOffer)
	req.Len(evts, 1)
	req.Equal(int64(alice.ID), asID(evts[0]["from_user_id"]))
	req.NotContains(evts[0], "target_user_id")

	// And the payload crossed untouched
	got, err := json.Marshal(evts[0]["payload"])
	req.NoError(err)
	want, err := json.Marshal(offer)
	req.NoError(err)
	req.JSONEq(string(want), string(got))

	// The sender hears nothing back
	req.Empty(aliceSC.frames)
}

func TestWebRTC_Answer_And_ICE_Use_Same_Relay(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	bob := env.user("bob")

	aliceID, _ := env.login(alice)
	_, bobSC := env.login(bob)
	bobSC.reset()

	env.send(aliceID, map[string]any{
		"type":           EvWebRTCAnswer,
		"target_user_id": bob.ID,
		"payload":        map[string]any{"sdp": "answer"},
	})
	env.send(aliceID, map[string]any{
		"type":           EvWebRTCICE,
		"target_user_id": bob.ID,
		"payload":        map[string]any{"candidate": "candidate:1 1 UDP 2122252543 .."},
	})

	req.Len(bobSC.ofType(t, EvWebRTCAnswer), 1)
	ice := bobSC.ofType(t, EvWebRTCICE)
	req.Len(ice, 1)
	req.Equal(int64(alice.ID), asID(ice[0]["from_user_id"]))
}

func TestWebRTC_Offline_Target_Dropped_Silently(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	ghost := env.user("ghost")

	aliceID, aliceSC := env.login(alice)
	aliceSC.reset()

	env.send(aliceID, map[string]any{
		"type":           EvWebRTCOffer,
		"target_user_id": ghost.ID,
		"payload":        map[string]any{"sdp": "x"},
	})

	// No error frame: a vanished peer is a normal race during call teardown
	req.Empty(aliceSC.frames)
}

func TestFriendRequest_Relayed_With_Profile(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	bob := env.user("bob")

	aliceID, aliceSC := env.login(alice)
	_, bobSC := env.login(bob)
	aliceSC.reset()
	bobSC.reset()

	env.send(aliceID, map[string]any{"type": EvFriendRequest, "target_user_id": bob.ID})

	evts := bobSC.ofType(t, OutFriendRequestReceived)
	req.Len(evts, 1)
	from := evts[0]["from_user"].(map[string]any)
	req.Equal(int64(alice.ID), asID(from["id"]))
	req.Equal("alice", from["username"])
	req.Empty(aliceSC.frames)
}

func TestFriendResponse_Accept_Relayed(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	bob := env.user("bob")

	_, aliceSC := env.login(alice)
	bobID, _ := env.login(bob)
	aliceSC.reset()

	env.send(bobID, map[string]any{
		"type":           EvFriendResponse,
		"target_user_id": alice.ID,
		"accepted":       true,
	})

	evts := aliceSC.ofType(t, OutFriendRequestAccepted)
	req.Len(evts, 1)
	req.Equal(int64(bob.ID), asID(evts[0]["from_user"].(map[string]any)["id"]))
}

func TestFriendResponse_Decline_Relays_Nothing(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	bob := env.user("bob")

	_, aliceSC := env.login(alice)
	bobID, bobSC := env.login(bob)
	aliceSC.reset()
	bobSC.reset()

	env.send(bobID, map[string]any{
		"type":           EvFriendResponse,
		"target_user_id": alice.ID,
		"accepted":       false,
	})

	// The requester's client times out on its own; no rejection leaks
	req.Empty(aliceSC.frames)
	req.Empty(bobSC.frames)
}
