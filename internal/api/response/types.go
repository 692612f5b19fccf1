package response

import (
	"time"

	"github.com/membergate/membergate/internal/model"
)

// Member represents a member in API responses
type Member struct {
	ID              string   `json:"id"`
	Username        string   `json:"username"`
	Unfilled        bool     `json:"unfilled,omitempty"`
	Permissions     []string `json:"permissions,omitempty"`
	PermissionGroup *int     `json:"permission_group,omitempty"`
}

// MemberFromModel converts a model.User to a response Member.
// Permission details are included only when the caller may see settings.
func MemberFromModel(u *model.User, includeSettings bool) Member {
	m := Member{
		ID:       string(u.ID),
		Username: u.Username,
		Unfilled: u.Unfilled,
	}
	if includeSettings {
		m.Permissions = u.Permissions.Names()
		group := u.PermissionGroup
		m.PermissionGroup = &group
	}
	return m
}

// MemberList is the response for listing members
type MemberList struct {
	Members []Member `json:"members"`
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Username     string `json:"username"`
	SessionToken string `json:"session_token"`
}

// Session represents an active session in API responses
type Session struct {
	Token       string    `json:"token"`
	CreatedAt   time.Time `json:"created_at"`
	DeviceLabel string    `json:"device_label,omitempty"`
}

// SessionFromModel converts a model.Session to a response Session
func SessionFromModel(s *model.Session) Session {
	return Session{
		Token:       string(s.Token),
		CreatedAt:   s.CreatedAt,
		DeviceLabel: s.DeviceLabel,
	}
}

// SessionList is the response for listing the caller's sessions
type SessionList struct {
	Sessions []Session `json:"sessions"`
}

// Me is the response for the current-session endpoint
type Me struct {
	Username        string   `json:"username"`
	Anonymous       bool     `json:"anonymous,omitempty"`
	Permissions     []string `json:"permissions"`
	PermissionGroup int      `json:"permission_group"`
}

// MeFromSession converts a session to a Me response
func MeFromSession(s *model.Session) Me {
	return Me{
		Username:        s.Username,
		Anonymous:       s.IsAnonymous(),
		Permissions:     s.Permissions.Names(),
		PermissionGroup: s.PermissionGroup,
	}
}

// Slot is the response after creating an invitation slot
type Slot struct {
	SlotID   string `json:"slot_id"`
	TempName string `json:"temp_name"`
}
