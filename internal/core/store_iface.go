package core

import (
	"errors"

	"github.com/nasty-codes-software/resonance/internal/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=store_iface.go -destination=../mocks/mock_store.go -package=mocks

// ErrNotFound is returned by every store when the requested record is absent.
var ErrNotFound = errors.New("not found")

// IdentityStore resolves user profiles and keeps the persisted online flag.
// Profiles returned here are already public; see domain.User.
type IdentityStore interface {
	FindUser(id domain.UserID) (*domain.User, error)
	SetOnline(id domain.UserID) error
	SetOffline(id domain.UserID) error
}

// SocialGraph answers friendship questions. Edges are symmetric.
type SocialGraph interface {
	FriendsOf(id domain.UserID) ([]domain.UserID, error)
	AreFriends(a, b domain.UserID) (bool, error)
}

// MessageStore persists chat lines and answers private-channel membership.
type MessageStore interface {
	CreateMessage(channelID domain.ChannelID, authorID domain.UserID, content string) (domain.MessageID, error)
	MessageWithAuthor(id domain.MessageID) (*domain.Message, error)
	IsParticipant(channelID domain.ChannelID, userID domain.UserID) (bool, error)
}

// VoiceRoomStore keeps the durable picture of voice occupancy so page loads
// can render rooms without asking the hub. The in-memory hub remains the
// authority for live fan-out.
type VoiceRoomStore interface {
	ChannelInfo(id domain.ChannelID) (*domain.Channel, error)
	AddMember(channelID domain.ChannelID, userID domain.UserID) error
	RemoveMember(userID domain.UserID) error
	Members(channelID domain.ChannelID) ([]domain.UserID, error)
	ParticipantsOf(channelID domain.ChannelID) ([]domain.UserID, error)
}

// Authorizer checks capabilities for privileged realtime operations.
type Authorizer interface {
	HasCapability(id domain.UserID, cap domain.Capability) (bool, error)
}

// TokenVerifier validates the opaque credential presented over the socket
// and yields the user it was minted for.
type TokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}
