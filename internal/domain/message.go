package domain

import "time"

type MessageID string

// Message is a persisted chat line. Author is denormalized on read so the
// fan-out payload carries the profile without a second lookup at every client.
type Message struct {
	ID        MessageID `json:"id"`
	ChannelID ChannelID `json:"channel_id"`
	AuthorID  UserID    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Author    *User     `json:"author,omitempty"`
}
