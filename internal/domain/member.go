package domain

// VoiceMember is the snapshot of one occupant as shown to other clients.
// No transport or lifecycle logic here.
type VoiceMember struct {
	ID            UserID `json:"id"`
	Username      string `json:"username"`
	Avatar        string `json:"avatar,omitempty"`
	ScreenSharing bool   `json:"screen_sharing"`
}

// NewVoiceMember avoids raw literals in the hub and keeps construction obvious.
func NewVoiceMember(user *User, screenSharing bool) VoiceMember {
	return VoiceMember{
		ID:            user.ID,
		Username:      user.Username,
		Avatar:        user.Avatar,
		ScreenSharing: screenSharing,
	}
}
