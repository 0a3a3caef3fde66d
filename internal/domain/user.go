// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type UserID int64

// User is the public profile shared with other clients. Credentials and
// other private account data never leave the storage layer.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
// The storage layer assigns the ID on insert.
func NewUser(username, avatar string) (*User, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &User{Username: username, Avatar: avatar}, nil
}

// Capability gates privileged realtime operations.
type Capability string

const CapModerateVoice Capability = "voice.moderate"

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)
