package domain

type ChannelID int64

// ChannelKind discriminates the four channel flavors the relay serves.
// Text and voice are server-wide; dm and dm_voice are private pairs.
type ChannelKind string

const (
	ChannelText    ChannelKind = "text"
	ChannelVoice   ChannelKind = "voice"
	ChannelDM      ChannelKind = "dm"
	ChannelDMVoice ChannelKind = "dm_voice"
)

// Private reports whether membership is restricted to persisted participants.
func (k ChannelKind) Private() bool {
	return k == ChannelDM || k == ChannelDMVoice
}

type Channel struct {
	ID       ChannelID   `json:"id"`
	Name     string      `json:"name"`
	Kind     ChannelKind `json:"type"`
	MaxUsers int         `json:"max_users,omitempty"` // 0 means unlimited
}
