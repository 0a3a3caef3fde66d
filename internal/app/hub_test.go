package app

import (
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nasty-codes-software/resonance/internal/adapters/auth"
	"github.com/nasty-codes-software/resonance/internal/adapters/store"
	"github.com/nasty-codes-software/resonance/internal/core"
	"github.com/nasty-codes-software/resonance/internal/domain"
	"github.com/nasty-codes-software/resonance/internal/mocks"
)

// fakeSignal records every frame the hub pushes at it, standing in for a
// live websocket.
type fakeSignal struct {
	frames    []core.Frame
	closed    bool
	saturated bool
}

func (f *fakeSignal) TrySend(frame core.Frame) error {
	if f.saturated {
		return errors.New("send queue full")
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSignal) Close() { f.closed = true }

func (f *fakeSignal) reset() { f.frames = nil }

// events decodes every recorded frame into a generic map.
func (f *fakeSignal) events(t *testing.T) []map[string]any {
	t.Helper()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(fr, &m))
		out = append(out, m)
	}
	return out
}

// ofType filters the decoded frames down to one event type.
func (f *fakeSignal) ofType(t *testing.T, et EventType) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range f.events(t) {
		if m["type"] == string(et) {
			out = append(out, m)
		}
	}
	return out
}

// asID reads a numeric id out of a decoded JSON value.
func asID(v any) int64 { return int64(v.(float64)) }

// testEnv wires a hub to an in-memory store and a real token service, the
// same collaborators main assembles, minus the transport.
type testEnv struct {
	t      *testing.T
	hub    *Hub
	st     *store.Store
	tokens *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	tokens := auth.NewTokenService("test-secret", time.Hour)
	hub := NewHub(Deps{
		Identity:   st,
		Social:     st,
		Messages:   st,
		Voice:      st,
		Authz:      st,
		Tokens:     tokens,
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.example.org:3478"}}},
	})
	return &testEnv{t: t, hub: hub, st: st, tokens: tokens}
}

func (e *testEnv) user(name string) *domain.User {
	e.t.Helper()
	u, err := e.st.CreateUser(name, "")
	require.NoError(e.t, err)
	return u
}

func (e *testEnv) connect() (core.ConnID, *fakeSignal) {
	sc := &fakeSignal{}
	return e.hub.OnOpen(sc), sc
}

func (e *testEnv) send(id core.ConnID, v map[string]any) {
	e.t.Helper()
	data, err := json.Marshal(v)
	require.NoError(e.t, err)
	e.hub.Dispatch(id, data)
}

// login opens a connection and completes auth for the user.
func (e *testEnv) login(u *domain.User) (core.ConnID, *fakeSignal) {
	e.t.Helper()
	id, sc := e.connect()
	tok, err := e.tokens.Issue(u.ID)
	require.NoError(e.t, err)
	e.send(id, map[string]any{"type": EvAuth, "token": tok})
	require.Len(e.t, sc.ofType(e.t, OutAuthSuccess), 1)
	return id, sc
}

func TestAuth_Binds_Identity_And_Returns_ICE_Servers(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	id, sc := env.connect()

	tok, err := env.tokens.Issue(alice.ID)
	req.NoError(err)

	// When the connection authenticates
	env.send(id, map[string]any{"type": EvAuth, "token": tok})

	// Then it gets its profile and the ICE configuration back
	evts := sc.ofType(t, OutAuthSuccess)
	req.Len(evts, 1)
	user := evts[0]["user"].(map[string]any)
	req.Equal(int64(alice.ID), asID(user["id"]))
	req.Equal("alice", user["username"])
	req.NotEmpty(evts[0]["ice_servers"])

	// And the binding is installed
	_, b, ok := env.hub.reg.bound(id)
	req.True(ok)
	req.Equal(alice.ID, b.user.ID)

	// And the durable online flag is set
	online, err := env.st.IsOnline(alice.ID)
	req.NoError(err)
	req.True(online)
}

func TestAuth_Invalid_Token_Rejected(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	id, sc := env.connect()

	env.send(id, map[string]any{"type": EvAuth, "token": "garbage"})

	evts := sc.ofType(t, OutAuthError)
	req.Len(evts, 1)
	req.Equal("invalid token", evts[0]["message"])
	_, _, ok := env.hub.reg.bound(id)
	req.False(ok)
}

func TestAuth_Unknown_User_Rejected(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	id, sc := env.connect()

	// Given a valid token for a user that was never provisioned
	tok, err := env.tokens.Issue(domain.UserID(9999))
	req.NoError(err)

	env.send(id, map[string]any{"type": EvAuth, "token": tok})

	evts := sc.ofType(t, OutAuthError)
	req.Len(evts, 1)
	req.Equal("unknown user", evts[0]["message"])
}

func TestAuth_Repeated_On_Same_Connection_Replies_Again(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	id, sc := env.login(alice)

	tok, err := env.tokens.Issue(alice.ID)
	req.NoError(err)
	env.send(id, map[string]any{"type": EvAuth, "token": tok})

	// The reply repeats but the binding stays the same one
	req.Len(sc.ofType(t, OutAuthSuccess), 2)
	req.Equal(1, env.hub.reg.boundCount())
	req.False(sc.closed)
}

func TestAuth_Second_Connection_Evicts_First(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	observer := env.user("observer")
	_, obsSC := env.login(observer)

	voiceCh, err := env.st.CreateChannel("General", domain.ChannelVoice, 0)
	req.NoError(err)

	// Given alice is connected and sitting in a voice room
	id1, sc1 := env.login(alice)
	env.send(id1, map[string]any{"type": EvJoinVoice, "channel_id": voiceCh.ID})
	req.Len(sc1.ofType(t, OutVoiceJoined), 1)
	req.Len(obsSC.ofType(t, OutUserOnline), 1)
	obsSC.reset()

	// When alice reconnects, say after a page reload
	id2, sc2 := env.login(alice)

	// Then the stale transport is force closed and the identity moves over
	req.True(sc1.closed)
	req.Len(sc2.ofType(t, OutAuthSuccess), 1)
	c, ok := env.hub.reg.lookupUser(alice.ID)
	req.True(ok)
	req.Equal(id2, c.id)
	req.Equal(1, env.hub.reg.boundCount())

	// And the observer never saw a duplicate online announcement
	req.Empty(obsSC.ofType(t, OutUserOnline))
	req.Empty(obsSC.ofType(t, OutUserOffline))

	// And the old conn's voice seat was vacated on the way out
	states := obsSC.ofType(t, OutVoiceStateUpdate)
	req.NotEmpty(states)
	last := states[len(states)-1]
	req.Empty(last["members"])

	// And the new connection can use the identity right away
	env.send(id2, map[string]any{"type": EvJoinVoice, "channel_id": voiceCh.ID})
	req.Len(sc2.ofType(t, OutVoiceJoined), 1)
}

func TestDispatch_Ignores_Events_Before_Auth(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	id, sc := env.connect()

	// When an unauthenticated connection tries to act
	env.send(id, map[string]any{"type": EvChatMessage, "channel_id": 1, "content": "hi"})
	env.send(id, map[string]any{"type": EvJoinVoice, "channel_id": 1})
	env.send(id, map[string]any{"type": EvDMCallInvite, "target_user_id": 2, "voice_channel_id": 3})

	// Then nothing comes back, not even an error
	req.Empty(sc.frames)
}

func TestDispatch_Before_Auth_Touches_No_Storage(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Given a hub whose storage would fail the test on any call
	hub := NewHub(Deps{
		Identity: mocks.NewMockIdentityStore(ctrl),
		Social:   mocks.NewMockSocialGraph(ctrl),
		Messages: mocks.NewMockMessageStore(ctrl),
		Voice:    mocks.NewMockVoiceRoomStore(ctrl),
		Authz:    mocks.NewMockAuthorizer(ctrl),
		Tokens:   mocks.NewMockTokenVerifier(ctrl),
	})
	sc := &fakeSignal{}
	id := hub.OnOpen(sc)

	hub.Dispatch(id, []byte(`{"type":"chat_message","channel_id":1,"content":"hi"}`))
	hub.Dispatch(id, []byte(`{"type":"join_voice","channel_id":2}`))
	hub.Dispatch(id, []byte(`{"type":"webrtc_offer","target_user_id":3,"payload":{"sdp":"x"}}`))

	req.Empty(sc.frames)
}

func TestDispatch_Unknown_Type_Dropped(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	id, sc := env.login(alice)
	sc.reset()

	env.send(id, map[string]any{"type": "definitely_not_a_thing"})

	req.Empty(sc.frames)
}

func TestDispatch_Malformed_Frame_Dropped(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	id, sc := env.login(alice)
	sc.reset()

	env.hub.Dispatch(id, []byte(`{not json`))
	env.hub.Dispatch(id, []byte(`{"no_type":true}`))

	req.Empty(sc.frames)
	// The connection survives the protocol noise
	_, _, ok := env.hub.reg.bound(id)
	req.True(ok)
}

func TestDisconnect_Broadcasts_Offline(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	observer := env.user("observer")
	_, obsSC := env.login(observer)

	id, _ := env.login(alice)
	obsSC.reset()

	// When alice's transport dies
	env.hub.OnClose(id)

	// Then everyone hears it and the durable flag clears
	evts := obsSC.ofType(t, OutUserOffline)
	req.Len(evts, 1)
	req.Equal(int64(alice.ID), asID(evts[0]["user_id"]))
	online, err := env.st.IsOnline(alice.ID)
	req.NoError(err)
	req.False(online)
	req.Equal(0, env.hub.reg.boundCount())
}

func TestPresence_Friends_Get_Targeted_Status_Update(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	bob := env.user("bob")
	carol := env.user("carol")
	req.NoError(env.st.AddFriend(alice.ID, bob.ID))

	_, bobSC := env.login(bob)
	_, carolSC := env.login(carol)
	bobSC.reset()
	carolSC.reset()

	// When alice comes online
	env.login(alice)

	// Then the friend gets the targeted update
	evts := bobSC.ofType(t, OutFriendStatusUpdate)
	req.Len(evts, 1)
	req.Equal(int64(alice.ID), asID(evts[0]["user_id"]))
	req.Equal(string(domain.StatusOnline), evts[0]["status"])

	// And the stranger only sees the public announcement
	req.Empty(carolSC.ofType(t, OutFriendStatusUpdate))
	req.Len(carolSC.ofType(t, OutUserOnline), 1)
}

func TestBackpressure_Drops_Frame_Keeps_Connection(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	bob := env.user("bob")
	ch, err := env.st.CreateChannel("general", domain.ChannelText, 0)
	req.NoError(err)

	aliceID, aliceSC := env.login(alice)
	bobID, bobSC := env.login(bob)
	env.send(aliceID, map[string]any{"type": EvJoinChannel, "channel_id": ch.ID})
	env.send(bobID, map[string]any{"type": EvJoinChannel, "channel_id": ch.ID})

	// Given bob's send queue is saturated
	bobSC.saturated = true
	bobSC.reset()
	aliceSC.reset()

	env.send(aliceID, map[string]any{"type": EvChatMessage, "channel_id": ch.ID, "content": "hello"})

	// Then the frame is lost for bob but delivered to alice
	req.Empty(bobSC.frames)
	req.Len(aliceSC.ofType(t, OutNewMessage), 1)

	// And bob stays connected and bound
	_, _, ok := env.hub.reg.bound(bobID)
	req.True(ok)
	bobSC.saturated = false
	env.send(bobID, map[string]any{"type": EvChatMessage, "channel_id": ch.ID, "content": "still here"})
	req.Len(bobSC.ofType(t, OutNewMessage), 1)
}

func TestIdentity_Switch_On_Same_Connection_Releases_Old_User(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	alice := env.user("alice")
	bob := env.user("bob")
	observer := env.user("observer")
	_, obsSC := env.login(observer)

	id, sc := env.login(alice)
	obsSC.reset()

	// When the same connection authenticates as somebody else
	tok, err := env.tokens.Issue(bob.ID)
	req.NoError(err)
	env.send(id, map[string]any{"type": EvAuth, "token": tok})

	// Then alice went offline and bob came online, once each
	offline := obsSC.ofType(t, OutUserOffline)
	req.Len(offline, 1)
	req.Equal(int64(alice.ID), asID(offline[0]["user_id"]))
	online := obsSC.ofType(t, OutUserOnline)
	req.Len(online, 1)
	req.Equal(int64(bob.ID), asID(online[0]["user"].(map[string]any)["id"]))

	req.Len(sc.ofType(t, OutAuthSuccess), 2)
	c, ok := env.hub.reg.lookupUser(bob.ID)
	req.True(ok)
	req.Equal(id, c.id)
	_, ok = env.hub.reg.binding(alice.ID)
	req.False(ok)
}
